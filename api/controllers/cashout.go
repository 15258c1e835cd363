package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payoutcore-backend/api/middleware"
	"github.com/angelmondragon/payoutcore-backend/api/responses"
	"github.com/angelmondragon/payoutcore-backend/api/validators"
	"github.com/angelmondragon/payoutcore-backend/internal/payouts"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
	"github.com/angelmondragon/payoutcore-backend/pkg/stripe"
)

// Stripe rejects metadata keys over 40 characters and values over 500.
const (
	maxRequesterIDLen     = 128
	maxMetadataKeyLen     = 40
	maxMetadataValueLen   = 500
	maxMetadataEntryCount = 20
)

// CashOutService is the payouts surface used by the cash-out route.
type CashOutService interface {
	CashOut(ctx context.Context, input payouts.CashOutInput) (*payouts.CashOutResult, error)
}

type cashoutPayload struct {
	RequesterID          string            `json:"requesterId" validate:"required"`
	Units                *int64            `json:"units" validate:"required,min=0"`
	Amount               *decimal.Decimal  `json:"amount"`
	ChannelHint          string            `json:"channelHint"`
	DestinationAccountID string            `json:"destinationAccountId"`
	ContactEmail         string            `json:"contactEmail" validate:"omitempty,email"`
	Metadata             map[string]any    `json:"metadata"`
}

// CashOut converts units to currency and pays them out through the first
// channel that succeeds.
func CashOut(svc CashOutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout service unavailable"))
			return
		}

		correlationID := strings.TrimSpace(r.Header.Get(middleware.IdempotencyKeyHeader))
		if len(correlationID) > payouts.MaxCorrelationIDLength {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("%s header must be at most %d characters", middleware.IdempotencyKeyHeader, payouts.MaxCorrelationIDLength)))
			return
		}

		var payload cashoutPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.CashOut(ctx, payouts.CashOutInput{
			CorrelationID:        correlationID,
			RequesterID:          validators.SanitizeString(payload.RequesterID, maxRequesterIDLen),
			Units:                *payload.Units,
			Amount:               payload.Amount,
			ChannelHint:          payload.ChannelHint,
			DestinationAccountID: payload.DestinationAccountID,
			ContactEmail:         payload.ContactEmail,
			Metadata:             sanitizeMetadata(stripe.MetadataFromAny(payload.Metadata)),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"amount":      result.Amount,
			"channelUsed": result.ChannelUsed,
			"details":     result,
		})
	}
}

func sanitizeMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := validators.SanitizeString(k, maxMetadataKeyLen)
		if key == "" {
			continue
		}
		if len(out) == maxMetadataEntryCount {
			break
		}
		out[key] = validators.SanitizeString(v, maxMetadataValueLen)
	}
	return out
}
