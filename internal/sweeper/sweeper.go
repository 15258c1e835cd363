// Package sweeper reconciles the revenue ledger with the payment processor:
// it moves misrouted balances, transfers pending revenue, retries failed
// transfers and fulfils confirmed payment holds.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/angelmondragon/payoutcore-backend/internal/ledger"
	"github.com/angelmondragon/payoutcore-backend/internal/processor"
	"github.com/angelmondragon/payoutcore-backend/pkg/config"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
	"github.com/angelmondragon/payoutcore-backend/pkg/metrics"
)

// ErrRunInProgress is returned when a trigger arrives while a run is active.
var ErrRunInProgress = errors.New("sweep already running")

// Trigger names used in logs and metrics.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

const (
	defaultPendingBatch  = 100
	defaultRetryBatch    = 10
	defaultHoldBatch     = 20
	defaultMaxRetryCount = 5
	defaultMinCents      = 100
)

// Lock is an optional cross-process guard held for the duration of a run.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Config holds the sweep thresholds and batch sizes.
type Config struct {
	DestinationAccountID string
	MisroutedAccountID   string
	MisroutedMinCents    int64
	MinTransferCents     int64
	PendingBatch         int
	RetryBatch           int
	HoldBatch            int
	MaxRetryCount        int
	Currency             string
	ProcessorRPS         float64
}

// Params wires a Sweeper.
type Params struct {
	Config     Config
	Processor  processor.Processor
	Repository ledger.Repository
	Ledger     ledger.Service
	State      *State
	Lock       Lock
	Metrics    *metrics.SweepMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

// Sweeper runs the reconciliation steps.
type Sweeper struct {
	cfg     Config
	proc    processor.Processor
	repo    ledger.Repository
	ledger  ledger.Service
	state   *State
	lock    Lock
	metrics *metrics.SweepMetrics
	logg    *logger.Logger
	limiter *rate.Limiter
	now     func() time.Time
}

// MisroutedResult reports step 1.
type MisroutedResult struct {
	AccountID        string `json:"accountId"`
	AvailableCents   int64  `json:"availableCents"`
	TransferredCents int64  `json:"transferredCents"`
	TransferID       string `json:"transferId,omitempty"`
	Skipped          bool   `json:"skipped"`
	Reason           string `json:"reason,omitempty"`
}

// PendingSummary reports step 2. TotalPending counts every eligible pending
// row, including those left for later batches.
type PendingSummary struct {
	Processed    int             `json:"processed"`
	TotalPending int             `json:"total_pending"`
	Failed       int             `json:"failed"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// RetrySummary reports step 3.
type RetrySummary struct {
	Attempted int   `json:"attempted"`
	Completed int   `json:"completed"`
	Failed    int   `json:"failed"`
	Escalated int64 `json:"escalated"`
}

// HoldSummary reports step 4.
type HoldSummary struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Fulfilled int `json:"fulfilled"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// RunSummary is the outcome of one run.
type RunSummary struct {
	Trigger    string           `json:"trigger"`
	Skipped    bool             `json:"skipped"`
	Reason     string           `json:"reason,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	DurationMs int64            `json:"durationMs"`
	Misrouted  *MisroutedResult `json:"misrouted,omitempty"`
	Pending    PendingSummary   `json:"pending"`
	Retries    RetrySummary     `json:"retries"`
	Holds      HoldSummary      `json:"holds"`
	Errors     []string         `json:"errors,omitempty"`
}

// New validates params and applies defaults.
func New(params Params) (*Sweeper, error) {
	if params.Processor == nil {
		return nil, fmt.Errorf("processor required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	cfg := params.Config
	if cfg.PendingBatch <= 0 {
		cfg.PendingBatch = defaultPendingBatch
	}
	if cfg.RetryBatch <= 0 {
		cfg.RetryBatch = defaultRetryBatch
	}
	if cfg.HoldBatch <= 0 {
		cfg.HoldBatch = defaultHoldBatch
	}
	if cfg.MaxRetryCount <= 0 {
		cfg.MaxRetryCount = defaultMaxRetryCount
	}
	if cfg.MisroutedMinCents <= 0 {
		cfg.MisroutedMinCents = defaultMinCents
	}
	if cfg.MinTransferCents <= 0 {
		cfg.MinTransferCents = defaultMinCents
	}
	cfg.Currency = strings.ToLower(strings.TrimSpace(cfg.Currency))
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}

	state := params.State
	if state == nil {
		state = NewState()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	limit := rate.Inf
	if cfg.ProcessorRPS > 0 {
		limit = rate.Limit(cfg.ProcessorRPS)
	}

	return &Sweeper{
		cfg:     cfg,
		proc:    params.Processor,
		repo:    params.Repository,
		ledger:  params.Ledger,
		state:   state,
		lock:    params.Lock,
		metrics: params.Metrics,
		logg:    params.Logger,
		limiter: rate.NewLimiter(limit, 1),
		now:     now,
	}, nil
}

// State exposes the shared run guard.
func (s *Sweeper) State() *State {
	return s.state
}

// MisroutedConfigured reports whether step 1 has an account to drain.
func (s *Sweeper) MisroutedConfigured() bool {
	return strings.TrimSpace(s.cfg.MisroutedAccountID) != ""
}

// Run executes all four steps. Row failures never stop a batch; they are
// combined into the returned error and listed in the summary. A trigger that
// arrives during another run gets a skipped summary and ErrRunInProgress.
func (s *Sweeper) Run(ctx context.Context, trigger string) (*RunSummary, error) {
	if trigger == "" {
		trigger = TriggerManual
	}
	started := s.now()
	if !s.state.TryStart(started) {
		s.metrics.ObserveRun(trigger, "skipped")
		return &RunSummary{Trigger: trigger, Skipped: true, Reason: ErrRunInProgress.Error(), StartedAt: started, FinishedAt: started}, ErrRunInProgress
	}
	summary := &RunSummary{Trigger: trigger, StartedAt: started}
	defer func() {
		s.state.Finish(s.now(), summary)
	}()

	release, err := s.acquireLock(ctx)
	if err != nil {
		summary.Skipped = true
		summary.Reason = err.Error()
		summary.FinishedAt = s.now()
		s.metrics.ObserveRun(trigger, "skipped")
		return summary, err
	}
	defer release()

	ctx = s.withFields(ctx, map[string]any{"trigger": trigger, "event": "sweep.run"})
	s.info(ctx, "sweep starting")

	var errs error
	if s.MisroutedConfigured() {
		res, stepErr := s.transferMisrouted(ctx)
		summary.Misrouted = res
		errs = multierr.Append(errs, stepErr)
	}

	pending, stepErr := s.sweepPending(ctx)
	summary.Pending = pending
	errs = multierr.Append(errs, stepErr)

	retries, stepErr := s.retryTransfers(ctx)
	summary.Retries = retries
	errs = multierr.Append(errs, stepErr)

	holds, stepErr := s.fulfilHolds(ctx)
	summary.Holds = holds
	errs = multierr.Append(errs, stepErr)

	for _, e := range multierr.Errors(errs) {
		summary.Errors = append(summary.Errors, e.Error())
	}
	summary.FinishedAt = s.now()
	summary.DurationMs = summary.FinishedAt.Sub(started).Milliseconds()

	result := "success"
	if errs != nil {
		result = "partial"
	}
	s.metrics.ObserveRun(trigger, result)
	s.info(s.withFields(ctx, map[string]any{
		"pending_processed": summary.Pending.Processed,
		"pending_failed":    summary.Pending.Failed,
		"retries_completed": summary.Retries.Completed,
		"retries_escalated": summary.Retries.Escalated,
		"holds_fulfilled":   summary.Holds.Fulfilled,
		"errors":            len(summary.Errors),
		"duration_ms":       summary.DurationMs,
	}), "sweep complete")
	return summary, errs
}

// TransferMisroutedBalance runs step 1 on its own under the same guard.
func (s *Sweeper) TransferMisroutedBalance(ctx context.Context) (*MisroutedResult, error) {
	if !s.state.TryStart(s.now()) {
		return nil, ErrRunInProgress
	}
	defer s.state.Finish(s.now(), nil)

	release, err := s.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.transferMisrouted(s.withFields(ctx, map[string]any{"event": "sweep.misrouted"}))
}

func (s *Sweeper) acquireLock(ctx context.Context) (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}
	ok, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		s.info(ctx, "another sweeper instance holds the lock; skipping")
		return nil, ErrRunInProgress
	}
	return func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.error(ctx, "release sweep lock", err)
		}
	}, nil
}

func (s *Sweeper) wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

func (s *Sweeper) withFields(ctx context.Context, fields map[string]any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *Sweeper) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *Sweeper) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

func (s *Sweeper) error(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Error(ctx, msg, err)
	}
}

// ConfigFrom maps the environment sections onto a sweeper Config.
func ConfigFrom(sweep config.SweepConfig, stripe config.StripeConfig) Config {
	return Config{
		DestinationAccountID: stripe.DestinationAccount,
		MisroutedAccountID:   sweep.MisroutedAccountID,
		MisroutedMinCents:    sweep.MisroutedMinCents,
		MinTransferCents:     sweep.MinTransferCents,
		PendingBatch:         sweep.PendingBatch,
		RetryBatch:           sweep.RetryBatch,
		HoldBatch:            sweep.HoldBatch,
		MaxRetryCount:        sweep.MaxRetryCount,
		Currency:             stripe.Currency,
		ProcessorRPS:         sweep.ProcessorRPS,
	}
}
