package sweeper

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/payoutcore-backend/internal/ledger"
	"github.com/angelmondragon/payoutcore-backend/internal/payouts"
	"github.com/angelmondragon/payoutcore-backend/internal/processor"
	"github.com/angelmondragon/payoutcore-backend/pkg/db/models"
	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
)

const (
	stepMisrouted = "misrouted"
	stepPending   = "pending"
	stepRetries   = "retries"
	stepHolds     = "holds"
)

// transferMisrouted moves the available balance of the misrouted account to
// the destination when it clears the minimum.
func (s *Sweeper) transferMisrouted(ctx context.Context) (*MisroutedResult, error) {
	res := &MisroutedResult{AccountID: s.cfg.MisroutedAccountID}
	if !s.MisroutedConfigured() {
		res.Skipped = true
		res.Reason = "misrouted account not configured"
		return res, pkgerrors.New(pkgerrors.CodeConfiguration, res.Reason)
	}
	if s.cfg.DestinationAccountID == "" {
		res.Skipped = true
		res.Reason = "destination account not configured"
		return res, pkgerrors.New(pkgerrors.CodeConfiguration, res.Reason)
	}

	if err := s.wait(ctx); err != nil {
		return res, err
	}
	available, err := s.proc.AvailableBalance(ctx, s.cfg.MisroutedAccountID, s.cfg.Currency)
	if err != nil {
		s.metrics.AddRows(stepMisrouted, "failed", 1)
		return res, fmt.Errorf("misrouted balance: %w", err)
	}
	res.AvailableCents = available
	if available < s.cfg.MisroutedMinCents {
		res.Skipped = true
		res.Reason = fmt.Sprintf("available balance %d below minimum %d", available, s.cfg.MisroutedMinCents)
		s.info(ctx, res.Reason)
		return res, nil
	}

	if err := s.wait(ctx); err != nil {
		return res, err
	}
	transfer, err := s.proc.CreateTransfer(ctx, processor.TransferInput{
		AmountCents:    available,
		Currency:       s.cfg.Currency,
		Destination:    s.cfg.DestinationAccountID,
		SourceAccount:  s.cfg.MisroutedAccountID,
		Description:    "misrouted balance sweep",
		IdempotencyKey: fmt.Sprintf("sweep:misrouted:%s:%d:%s", s.cfg.MisroutedAccountID, available, s.now().UTC().Format("2006010215")),
	})
	if err != nil {
		s.metrics.AddRows(stepMisrouted, "failed", 1)
		return res, fmt.Errorf("misrouted transfer: %w", err)
	}
	res.TransferredCents = available
	res.TransferID = transfer.ID
	s.metrics.AddRows(stepMisrouted, "succeeded", 1)
	s.info(s.withFields(ctx, map[string]any{"transfer_id": transfer.ID, "amount_cents": available}), "misrouted balance transferred")
	return res, nil
}

// sweepPending transfers pending revenue rows at or above the minimum, one
// batch per run. TotalPending reports the whole eligible backlog, not just the
// batch. A failed row stays pending with its error recorded.
func (s *Sweeper) sweepPending(ctx context.Context) (PendingSummary, error) {
	summary := PendingSummary{TotalAmount: decimal.Zero}
	rows, err := s.repo.ListRevenueByStatus(ctx, enums.RevenueLedgerStatusPending, s.cfg.MinTransferCents, s.cfg.PendingBatch)
	if err != nil {
		return summary, fmt.Errorf("list pending revenue: %w", err)
	}

	var errs error
	summary.TotalPending = len(rows)
	if len(rows) == s.cfg.PendingBatch {
		total, err := s.repo.CountRevenueByStatus(ctx, enums.RevenueLedgerStatusPending, s.cfg.MinTransferCents)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("count pending revenue: %w", err))
		} else {
			summary.TotalPending = int(total)
		}
	}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		reference, rowErr := s.transferRevenue(ctx, row)
		if rowErr != nil {
			summary.Failed++
			errs = multierr.Append(errs, fmt.Errorf("revenue %s: %w", row.ID, rowErr))
			if recErr := s.repo.RecordRevenueError(ctx, row.ID, enums.RevenueLedgerStatusPending, rowErr.Error()); recErr != nil {
				errs = multierr.Append(errs, fmt.Errorf("record revenue %s error: %w", row.ID, recErr))
			}
			continue
		}

		ok, err := s.repo.TransitionRevenue(ctx, row.ID, enums.RevenueLedgerStatusPending, enums.RevenueLedgerStatusTransferred, ledger.RevenueUpdate{ExternalReferenceID: reference, ProcessedAt: s.now()})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mark revenue %s transferred: %w", row.ID, err))
			continue
		}
		if !ok {
			s.warn(s.withFields(ctx, map[string]any{"revenue_id": row.ID.String()}), "revenue row changed during sweep")
			continue
		}
		summary.Processed++
		summary.TotalAmount = summary.TotalAmount.Add(decimal.New(row.AmountCents, -2))
	}

	s.metrics.AddRows(stepPending, "succeeded", summary.Processed)
	s.metrics.AddRows(stepPending, "failed", summary.Failed)
	return summary, errs
}

func (s *Sweeper) transferRevenue(ctx context.Context, row models.RevenueLedgerEntry) (string, error) {
	destination := s.destinationFor(row.DestinationAccountID)
	if destination == "" {
		return "", pkgerrors.New(pkgerrors.CodeConfiguration, "destination account not configured")
	}
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	transfer, err := s.proc.CreateTransfer(ctx, processor.TransferInput{
		AmountCents:    row.AmountCents,
		Currency:       currencyOr(row.Currency, s.cfg.Currency),
		Destination:    destination,
		Description:    "revenue sweep",
		IdempotencyKey: "sweep:revenue:" + row.ID.String(),
		Metadata:       map[string]string{"revenue_entry_id": row.ID.String()},
	})
	if err != nil {
		return "", err
	}
	return transfer.ID, nil
}

// retryTransfers re-attempts failed or pending transfers below the retry
// ceiling. Rows at the ceiling are only counted.
func (s *Sweeper) retryTransfers(ctx context.Context) (RetrySummary, error) {
	var summary RetrySummary
	var errs error

	escalated, err := s.repo.CountEscalated(ctx, s.cfg.MaxRetryCount)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("count escalated retries: %w", err))
	} else {
		summary.Escalated = escalated
		s.metrics.SetEscalated(int(escalated))
		if escalated > 0 {
			s.warn(s.withFields(ctx, map[string]any{"escalated": escalated}), "transfer retries need manual intervention")
		}
	}

	rows, err := s.repo.ListRetryable(ctx, s.cfg.MaxRetryCount, s.cfg.RetryBatch)
	if err != nil {
		return summary, multierr.Append(errs, fmt.Errorf("list retryable transfers: %w", err))
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		summary.Attempted++
		reference, rowErr := s.retryTransfer(ctx, row)
		if rowErr != nil {
			summary.Failed++
			errs = multierr.Append(errs, fmt.Errorf("transfer retry %s: %w", row.ID, rowErr))
			if recErr := s.repo.RecordRetryFailure(ctx, row.ID, rowErr.Error(), s.now(), rotateRetryKey(rowErr)); recErr != nil {
				errs = multierr.Append(errs, fmt.Errorf("record retry %s failure: %w", row.ID, recErr))
			}
			continue
		}
		ok, err := s.repo.CompleteTransferRetry(ctx, row.ID, reference, s.now())
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("complete retry %s: %w", row.ID, err))
			continue
		}
		if ok {
			summary.Completed++
		}
	}

	s.metrics.AddRows(stepRetries, "succeeded", summary.Completed)
	s.metrics.AddRows(stepRetries, "failed", summary.Failed)
	return summary, errs
}

func (s *Sweeper) retryTransfer(ctx context.Context, row models.TransferRetry) (string, error) {
	destination := s.destinationFor(row.DestinationAccountID)
	if destination == "" {
		return "", pkgerrors.New(pkgerrors.CodeConfiguration, "destination account not configured")
	}
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	transfer, err := s.proc.CreateTransfer(ctx, processor.TransferInput{
		AmountCents:    row.AmountCents,
		Currency:       currencyOr(row.Currency, s.cfg.Currency),
		Destination:    destination,
		Description:    "transfer retry",
		IdempotencyKey: retryKey(row),
		Metadata:       map[string]string{"transfer_retry_id": row.ID.String()},
	})
	if err != nil {
		return "", err
	}
	return transfer.ID, nil
}

// retryKey is stable across attempts whose outcome is unknown, so a transfer
// the processor applied before a timeout is not sent twice.
func retryKey(row models.TransferRetry) string {
	attempt := row.KeyAttempt
	if attempt < 1 {
		attempt = 1
	}
	return fmt.Sprintf("sweep:retry:%s:%d", row.ID, attempt)
}

// rotateRetryKey reports whether the processor definitively rejected the
// transfer. Stripe replays a stored rejection for the same key, so only then
// does the next attempt need a new one.
func rotateRetryKey(err error) bool {
	class := payouts.Classify(err)
	return !class.IsTransient() && class != enums.ErrorClassRateLimited
}

// fulfilHolds checks outstanding payment holds, confirms the ones waiting on
// confirmation and fulfils the ones that captured funds.
func (s *Sweeper) fulfilHolds(ctx context.Context) (HoldSummary, error) {
	var summary HoldSummary
	rows, err := s.repo.ListRevenueByStatus(ctx, enums.RevenueLedgerStatusPaymentHoldCreated, 0, s.cfg.HoldBatch)
	if err != nil {
		return summary, fmt.Errorf("list payment holds: %w", err)
	}

	var errs error
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		summary.Checked++
		if row.HoldID == nil || *row.HoldID == "" {
			summary.Failed++
			errs = multierr.Append(errs, fmt.Errorf("revenue %s: payment hold id missing", row.ID))
			continue
		}
		holdID := *row.HoldID

		if err := s.wait(ctx); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		hold, err := s.proc.GetHold(ctx, holdID)
		if err != nil {
			summary.Failed++
			errs = multierr.Append(errs, fmt.Errorf("hold %s: %w", holdID, err))
			continue
		}

		if hold.Confirmable() {
			if err := s.wait(ctx); err != nil {
				errs = multierr.Append(errs, err)
				break
			}
			hold, err = s.proc.ConfirmHold(ctx, holdID, "sweep:hold-confirm:"+holdID)
			if err != nil {
				summary.Failed++
				errs = multierr.Append(errs, fmt.Errorf("confirm hold %s: %w", holdID, err))
				continue
			}
			summary.Confirmed++
		}

		if !hold.Succeeded() {
			summary.Skipped++
			continue
		}

		ok, err := s.ledger.FulfilHold(ctx, row, s.now())
		if err != nil {
			summary.Failed++
			errs = multierr.Append(errs, fmt.Errorf("fulfil hold %s: %w", holdID, err))
			continue
		}
		if ok {
			summary.Fulfilled++
		}
	}

	s.metrics.AddRows(stepHolds, "succeeded", summary.Fulfilled)
	s.metrics.AddRows(stepHolds, "failed", summary.Failed)
	return summary, errs
}

func (s *Sweeper) destinationFor(rowDestination *string) string {
	if rowDestination != nil && strings.TrimSpace(*rowDestination) != "" {
		return strings.TrimSpace(*rowDestination)
	}
	return s.cfg.DestinationAccountID
}

func currencyOr(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}
