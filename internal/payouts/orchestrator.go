package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/payoutcore-backend/internal/processor"
	"github.com/angelmondragon/payoutcore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/payoutcore-backend/pkg/errors"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
	"github.com/angelmondragon/payoutcore-backend/pkg/metrics"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
)

// DefaultOrder is the channel order used when a request carries no hint.
// Extra rails such as paypal are appended when a handler exists for them.
var DefaultOrder = []enums.PayoutChannel{
	enums.PayoutChannelInstant,
	enums.PayoutChannelStandard,
	enums.PayoutChannelContactHold,
	enums.PayoutChannelPayPal,
}

// OrchestratorOptions tunes retries and wires the optional collaborators.
type OrchestratorOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	HintOnly   bool
	Policy     *PolicyEnforcer
	Metrics    *metrics.PayoutMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

// Orchestrator walks the channel plan for a request, retrying transient
// failures with linear backoff and falling through to the next channel on
// terminal ones.
type Orchestrator struct {
	handlers   Handlers
	maxRetries int
	baseDelay  time.Duration
	hintOnly   bool
	policy     *PolicyEnforcer
	metrics    *metrics.PayoutMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewOrchestrator validates the handler table and applies option defaults.
func NewOrchestrator(handlers Handlers, opts OrchestratorOptions) (*Orchestrator, error) {
	if len(handlers) == 0 {
		return nil, fmt.Errorf("at least one payout channel handler is required")
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		handlers:   handlers,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		hintOnly:   opts.HintOnly,
		policy:     opts.Policy,
		metrics:    opts.Metrics,
		logg:       opts.Logger,
		now:        opts.Now,
	}, nil
}

// Channels lists the channels that have a handler, in default order.
func (o *Orchestrator) Channels() []enums.PayoutChannel {
	out := make([]enums.PayoutChannel, 0, len(DefaultOrder))
	for _, ch := range DefaultOrder {
		if _, ok := o.handlers[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// Plan returns the channels Execute will try, in order. A hint goes first and
// the remaining defaults follow unless hint-only mode is on.
func (o *Orchestrator) Plan(req Request) []enums.PayoutChannel {
	defaults := o.Channels()
	hint := req.ChannelHint
	if hint == "" || !hint.IsValid() {
		return defaults
	}
	if o.hintOnly {
		return []enums.PayoutChannel{hint}
	}
	plan := make([]enums.PayoutChannel, 0, len(defaults)+1)
	plan = append(plan, hint)
	for _, ch := range defaults {
		if ch != hint {
			plan = append(plan, ch)
		}
	}
	return plan
}

// Resolvable returns the planned channels that have a handler, are enabled by
// policy, and can resolve the request's identity.
func (o *Orchestrator) Resolvable(req Request) []enums.PayoutChannel {
	var out []enums.PayoutChannel
	for _, ch := range o.Plan(req) {
		handler, ok := o.handlers[ch]
		if !ok || !o.policy.Enabled(ch) {
			continue
		}
		if _, ok := handler.Identity(req); ok {
			out = append(out, ch)
		}
	}
	return out
}

// Execute runs the plan. It never returns a partial state: the result either
// names the channel that paid or carries the last error. Once a transfer has
// reached the destination account, only channels funded by that same
// transfer are tried.
func (o *Orchestrator) Execute(ctx context.Context, req Request) Result {
	result := Result{CorrelationID: req.CorrelationID, Attempts: []Attempt{}}
	var lastErr error

	for _, channel := range o.Plan(req) {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		handler, ok := o.handlers[channel]
		var skipErr error
		skipClass := enums.ErrorClassConfiguration
		switch {
		case !ok:
			skipErr = pkgerrors.Wrap(pkgerrors.CodeConfiguration, errIdentityMissing, fmt.Sprintf("channel %s is not configured", channel))
		case result.TransferReference != "" && !fundedByTransfer(handler):
			skipErr = pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("channel %s would fund the cash-out a second time after transfer %s", channel, result.TransferReference))
			skipClass = enums.ErrorClassInvalidRequest
		default:
			if _, resolved := handler.Identity(req); !resolved {
				skipErr = pkgerrors.Wrap(pkgerrors.CodeConfiguration, errIdentityMissing, fmt.Sprintf("channel %s has no destination for this request", channel))
			}
		}
		if skipErr != nil {
			o.record(ctx, &result, channel, 1, Outcome{Err: skipErr}, skipClass)
			result.Attempts[len(result.Attempts)-1].Skipped = true
			if lastErr == nil {
				lastErr = skipErr
			}
			continue
		}

		paid, abort, err := o.runChannel(ctx, &result, handler, channel, req)
		if paid {
			return result
		}
		if err != nil {
			lastErr = err
		}
		if abort {
			break
		}
	}

	result.Success = false
	result.ChannelUsed = ""
	result.ExternalReferenceIDs = nil
	result.ErrorMessage = describe(lastErr)
	if result.TransferReference != "" {
		result.ErrorMessage = fmt.Sprintf("%s; transfer %s reached the destination account but was not paid out", result.ErrorMessage, result.TransferReference)
	}
	return result
}

// runChannel attempts one channel up to maxRetries times. abort is set when
// the caller's context ended and no further channel should be tried.
func (o *Orchestrator) runChannel(ctx context.Context, result *Result, handler ChannelHandler, channel enums.PayoutChannel, req Request) (paid, abort bool, err error) {
	for attempt := 1; attempt <= o.maxRetries; attempt++ {
		release, capErr := o.policy.Reserve(channel, req.AmountCents, o.now())
		if capErr != nil {
			o.record(ctx, result, channel, attempt, Outcome{Err: capErr}, enums.ErrorClassPolicyLimit)
			return false, false, capErr
		}

		out := handler.Attempt(ctx, req)
		if out.TransferID != "" {
			result.TransferReference = out.TransferID
		}
		if out.Succeeded() {
			o.record(ctx, result, channel, attempt, out, enums.ErrorClassNone)
			result.Success = true
			result.ChannelUsed = channel
			result.ExternalReferenceIDs = out.ExternalReferenceIDs
			return true, false, nil
		}

		release()
		class := Classify(out.Err)
		o.record(ctx, result, channel, attempt, out, class)
		if ctx.Err() != nil {
			return false, true, out.Err
		}
		if !class.IsTransient() {
			return false, false, out.Err
		}
		if attempt == o.maxRetries {
			return false, false, out.Err
		}
		if err := o.wait(ctx, time.Duration(attempt)*o.baseDelay); err != nil {
			return false, true, err
		}
	}
	return false, false, nil
}

func (o *Orchestrator) wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (o *Orchestrator) record(ctx context.Context, result *Result, channel enums.PayoutChannel, attempt int, out Outcome, class enums.ErrorClass) {
	entry := Attempt{
		Channel:              channel,
		AttemptNumber:        attempt,
		ExternalReferenceIDs: out.ExternalReferenceIDs,
		ErrorClass:           class,
	}
	switch {
	case out.Err == nil:
		entry.Outcome = enums.AttemptOutcomeSuccess
	case class.IsTransient():
		entry.Outcome = enums.AttemptOutcomeRetryableFailure
		entry.Error = describe(out.Err)
	default:
		entry.Outcome = enums.AttemptOutcomeTerminalFailure
		entry.Error = describe(out.Err)
	}
	result.Attempts = append(result.Attempts, entry)
	o.metrics.ObserveAttempt(channel.String(), entry.Outcome.String(), class.String())

	if o.logg == nil {
		return
	}
	logCtx := o.logg.WithFields(ctx, map[string]any{
		"correlation_id": result.CorrelationID,
		"channel":        channel.String(),
		"attempt":        attempt,
		"outcome":        entry.Outcome.String(),
		"error_class":    class.String(),
	})
	if out.Err != nil {
		o.logg.Warn(logCtx, fmt.Sprintf("payout attempt failed: %s", entry.Error))
		return
	}
	o.logg.Info(logCtx, "payout attempt succeeded")
}

// describe renders the most specific message available for an attempt error.
func describe(err error) string {
	if err == nil {
		return "no payout channel available"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "payout timed out before a channel succeeded"
	}
	if errors.Is(err, context.Canceled) {
		return "payout canceled before a channel succeeded"
	}
	var perr *processor.Error
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return err.Error()
}
