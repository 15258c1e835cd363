package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/payoutcore-backend/api/middleware"
	"github.com/angelmondragon/payoutcore-backend/api/responses"
	"github.com/angelmondragon/payoutcore-backend/internal/sweeper"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
)

// SweepRunner is the operator surface of the sweeper.
type SweepRunner interface {
	Run(ctx context.Context, trigger string) (*sweeper.RunSummary, error)
	TransferMisroutedBalance(ctx context.Context) (*sweeper.MisroutedResult, error)
}

// USDSweep runs one sweep synchronously. Row failures are reported in the
// summary with success=false rather than as an HTTP error.
func USDSweep(runner SweepRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if runner == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sweeper unavailable"))
			return
		}
		if logg != nil {
			ctx = logg.WithField(ctx, "operator", middleware.OperatorFromContext(ctx))
		}

		summary, err := runner.Run(ctx, sweeper.TriggerManual)
		if errors.Is(err, sweeper.ErrRunInProgress) {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeSweepInProgress, err, "a sweep is already running"))
			return
		}
		if summary == nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err != nil && logg != nil {
			logg.Warn(logg.WithField(ctx, "errors", len(summary.Errors)), "manual sweep finished with errors")
		}

		responses.WriteJSON(w, http.StatusOK, map[string]any{
			"success": len(summary.Errors) == 0,
			"summary": summary,
		})
	}
}

// TransferAccounts runs only the misrouted balance transfer.
func TransferAccounts(runner SweepRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if runner == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sweeper unavailable"))
			return
		}

		result, err := runner.TransferMisroutedBalance(ctx)
		if err != nil {
			if errors.Is(err, sweeper.ErrRunInProgress) {
				err = pkgerrors.Wrap(pkgerrors.CodeSweepInProgress, err, "a sweep is already running")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"result": result})
	}
}
