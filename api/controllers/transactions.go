package controllers

import (
	"net/http"

	"github.com/angelmondragon/payoutcore-backend/api/responses"
	"github.com/angelmondragon/payoutcore-backend/api/validators"
	"github.com/angelmondragon/payoutcore-backend/internal/audit"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
)

const (
	defaultTransactionsLimit = 50
	maxTransactionsLimit     = 1000
)

// AuditReader is the read side of the audit ledger.
type AuditReader interface {
	List(limit int) []audit.Entry
	StatsByChannel() map[string]audit.ChannelStats
}

// Transactions lists recent cash-out audit entries, newest first.
func Transactions(reader AuditReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reader == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit ledger unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultTransactionsLimit, 1, maxTransactionsLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		entries := reader.List(limit)
		responses.WriteSuccess(w, map[string]any{
			"count":        len(entries),
			"transactions": entries,
		})
	}
}

// TransactionStats aggregates the held audit entries per channel.
func TransactionStats(reader AuditReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit ledger unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"stats": reader.StatsByChannel()})
	}
}
