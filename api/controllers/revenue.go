package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/payoutcore-backend/api/responses"
	"github.com/angelmondragon/payoutcore-backend/api/validators"
	"github.com/angelmondragon/payoutcore-backend/internal/ledger"
	"github.com/angelmondragon/payoutcore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
)

// RevenueRecorder credits revenue for the sweeper to move.
type RevenueRecorder interface {
	RecordRevenue(ctx context.Context, input ledger.RecordRevenueInput) (*models.RevenueLedgerEntry, error)
}

type revenuePayload struct {
	AmountCents          int64  `json:"amountCents" validate:"required,min=1"`
	Currency             string `json:"currency" validate:"omitempty,len=3"`
	DestinationAccountID string `json:"destinationAccountId"`
	ExternalReferenceID  string `json:"externalReferenceId"`
}

// RecordRevenue adds a pending revenue row.
func RecordRevenue(recorder RevenueRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if recorder == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "revenue ledger unavailable"))
			return
		}

		var payload revenuePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		entry, err := recorder.RecordRevenue(ctx, ledger.RecordRevenueInput{
			AmountCents:          payload.AmountCents,
			Currency:             payload.Currency,
			DestinationAccountID: payload.DestinationAccountID,
			ExternalReferenceID:  payload.ExternalReferenceID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"entry": map[string]any{
				"id":          entry.ID.String(),
				"amountCents": entry.AmountCents,
				"currency":    entry.Currency,
				"status":      entry.Status,
				"createdAt":   entry.CreatedAt,
			},
		})
	}
}
