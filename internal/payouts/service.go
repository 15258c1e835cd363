package payouts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/payoutcore-backend/internal/audit"
	"github.com/angelmondragon/payoutcore-backend/internal/verification"
	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
	"github.com/angelmondragon/payoutcore-backend/pkg/metrics"
)

// MaxCorrelationIDLength bounds caller supplied correlation ids. Processor
// idempotency keys are derived from them and the audit column holds 64.
const MaxCorrelationIDLength = 64

// AuditRecorder appends cash-out outcomes to the audit ledger.
type AuditRecorder interface {
	Append(ctx context.Context, entry audit.Entry) error
}

// Executor runs a request through the payout channels.
type Executor interface {
	Resolvable(req Request) []enums.PayoutChannel
	Execute(ctx context.Context, req Request) Result
}

// CashOutInput is a cash-out as received from the HTTP surface.
type CashOutInput struct {
	CorrelationID        string
	RequesterID          string
	Units                int64
	Amount               *decimal.Decimal
	ChannelHint          string
	DestinationAccountID string
	ContactEmail         string
	Metadata             map[string]string
}

// CashOutResult is returned for every cash-out that reached the orchestrator.
type CashOutResult struct {
	Success              bool                `json:"success"`
	CorrelationID        string              `json:"correlationId"`
	Amount               decimal.Decimal     `json:"amount"`
	AmountCents          int64               `json:"amountCents"`
	ChannelUsed          enums.PayoutChannel `json:"channelUsed,omitempty"`
	ExternalReferenceIDs []string            `json:"externalReferenceIds,omitempty"`
	Verification         verification.Result `json:"verification"`
	Attempts             []Attempt           `json:"attempts"`
	ErrorMessage         string              `json:"errorMessage,omitempty"`
	TransferReference    string              `json:"transferReference,omitempty"`
	Warnings             []string            `json:"warnings,omitempty"`
}

// ServiceConfig carries the cash-out limits and defaults.
type ServiceConfig struct {
	MinUnits                  int64
	Currency                  string
	DefaultDestinationAccount string
	RequestTimeout            time.Duration
}

// Service validates, verifies, pays out and audits cash-outs.
type Service struct {
	cfg      ServiceConfig
	engine   *verification.Engine
	executor Executor
	audit    AuditRecorder
	metrics  *metrics.PayoutMetrics
	logg     *logger.Logger
}

// NewService wires the cash-out flow.
func NewService(cfg ServiceConfig, engine *verification.Engine, executor Executor, recorder AuditRecorder, payoutMetrics *metrics.PayoutMetrics, logg *logger.Logger) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("verification engine required")
	}
	if executor == nil {
		return nil, fmt.Errorf("payout executor required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &Service{
		cfg:      cfg,
		engine:   engine,
		executor: executor,
		audit:    recorder,
		metrics:  payoutMetrics,
		logg:     logg,
	}, nil
}

// CashOut runs one cash-out end to end. Validation and configuration problems
// are returned before any processor call. When every channel fails the
// result is returned together with a PAYOUT_FAILED error.
func (s *Service) CashOut(ctx context.Context, input CashOutInput) (*CashOutResult, error) {
	started := time.Now()
	input.CorrelationID = strings.TrimSpace(input.CorrelationID)
	if input.CorrelationID == "" {
		input.CorrelationID = uuid.NewString()
	}
	if len(input.CorrelationID) > MaxCorrelationIDLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("correlation id must be at most %d characters", MaxCorrelationIDLength)).
			WithDetails(map[string]any{"maxLength": MaxCorrelationIDLength})
	}
	if s.logg != nil {
		ctx = s.logg.WithCorrelationID(ctx, input.CorrelationID)
		ctx = s.logg.WithRequesterID(ctx, input.RequesterID)
	}

	hint, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	amount := s.engine.Amount(input.Units)
	supplied := amount
	if input.Amount != nil {
		supplied = *input.Amount
	}
	check := s.engine.Verify(input.Units, supplied)
	if !check.IsValid {
		s.appendAudit(ctx, input, amount, audit.ChannelNone, enums.AuditStatusRejected, "amount does not match units", &check)
		s.metrics.ObserveResult("", string(enums.AuditStatusRejected), 0, time.Since(started))
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount does not match units at the conversion rate").
			WithDetails(map[string]any{"verification": check})
	}

	req := Request{
		CorrelationID:        input.CorrelationID,
		RequesterID:          strings.TrimSpace(input.RequesterID),
		Units:                input.Units,
		AmountCents:          s.engine.AmountCents(input.Units),
		Currency:             s.cfg.Currency,
		ChannelHint:          hint,
		DestinationAccountID: s.destinationFor(input),
		ContactEmail:         strings.TrimSpace(input.ContactEmail),
		Metadata:             input.Metadata,
	}

	if len(s.executor.Resolvable(req)) == 0 {
		msg := "payout destination not configured"
		s.appendAudit(ctx, input, amount, audit.ChannelNone, enums.AuditStatusRejected, msg, &check)
		s.metrics.ObserveResult("", string(enums.AuditStatusRejected), 0, time.Since(started))
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, msg).
			WithDetails(map[string]any{"channelHint": hint.String()})
	}

	execCtx := ctx
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	outcome := s.executor.Execute(execCtx, req)

	result := &CashOutResult{
		Success:              outcome.Success,
		CorrelationID:        input.CorrelationID,
		Amount:               amount,
		AmountCents:          req.AmountCents,
		ChannelUsed:          outcome.ChannelUsed,
		ExternalReferenceIDs: outcome.ExternalReferenceIDs,
		Verification:         check,
		Attempts:             outcome.Attempts,
		ErrorMessage:         outcome.ErrorMessage,
		TransferReference:    outcome.TransferReference,
	}

	channel := outcome.ChannelUsed.String()
	if channel == "" {
		channel = outcome.LastAttempted().String()
	}
	if channel == "" {
		channel = audit.ChannelNone
	}
	status := enums.AuditStatusSuccess
	if !outcome.Success {
		status = enums.AuditStatusFailed
	}
	if err := s.appendAudit(ctx, input, amount, channel, status, outcome.ErrorMessage, &check); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("audit ledger: %v", err))
	}
	s.metrics.ObserveResult(outcome.ChannelUsed.String(), string(status), req.AmountCents, time.Since(started))

	if !outcome.Success {
		details := map[string]any{
			"correlationId": input.CorrelationID,
			"attempts":      outcome.Attempts,
		}
		if outcome.TransferReference != "" {
			details["transferReference"] = outcome.TransferReference
		}
		return result, pkgerrors.New(pkgerrors.CodePayoutFailed, outcome.ErrorMessage).WithDetails(details)
	}
	return result, nil
}

func (s *Service) validate(input CashOutInput) (enums.PayoutChannel, error) {
	if strings.TrimSpace(input.RequesterID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "requesterId is required")
	}
	minUnits := s.cfg.MinUnits
	if input.Units < 0 || input.Units < minUnits {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("units must be at least %d", minUnits)).
			WithDetails(map[string]any{"minUnits": minUnits})
	}

	var hint enums.PayoutChannel
	if raw := strings.ToLower(strings.TrimSpace(input.ChannelHint)); raw != "" {
		parsed, err := enums.ParsePayoutChannel(raw)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown channelHint")
		}
		hint = parsed
	}
	if hint.RequiresContact() && strings.TrimSpace(input.ContactEmail) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("contactEmail is required for channel %s", hint))
	}
	if hint != "" && !hint.RequiresContact() && s.destinationFor(input) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("destinationAccountId is required for channel %s", hint))
	}
	return hint, nil
}

func (s *Service) destinationFor(input CashOutInput) string {
	if dest := strings.TrimSpace(input.DestinationAccountID); dest != "" {
		return dest
	}
	return strings.TrimSpace(s.cfg.DefaultDestinationAccount)
}

func (s *Service) appendAudit(ctx context.Context, input CashOutInput, amount decimal.Decimal, channel string, status enums.AuditStatus, errMsg string, check *verification.Result) error {
	err := s.audit.Append(ctx, audit.Entry{
		Timestamp:     time.Now().UTC(),
		CorrelationID: input.CorrelationID,
		RequesterID:   strings.TrimSpace(input.RequesterID),
		Amount:        amount,
		Units:         input.Units,
		Channel:       channel,
		Status:        status,
		Error:         errMsg,
		Verification:  check,
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "audit append failed", err)
	}
	return err
}
