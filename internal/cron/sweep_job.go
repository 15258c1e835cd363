package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/payoutcore-backend/internal/sweeper"
	"github.com/angelmondragon/payoutcore-backend/pkg/logger"
)

const sweepJobName = "usd-sweep"

type sweepRunner interface {
	Run(ctx context.Context, trigger string) (*sweeper.RunSummary, error)
}

// SweepJobParams wires the scheduled reconciliation sweep.
type SweepJobParams struct {
	Logger  *logger.Logger
	Sweeper sweepRunner
}

// NewSweepJob returns the job that runs the sweeper on the cron cadence.
func NewSweepJob(params SweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	return &sweepJob{logg: params.Logger, sweeper: params.Sweeper}, nil
}

type sweepJob struct {
	logg    *logger.Logger
	sweeper sweepRunner
}

func (j *sweepJob) Name() string { return sweepJobName }

func (j *sweepJob) Run(ctx context.Context) error {
	summary, err := j.sweeper.Run(ctx, sweeper.TriggerSchedule)
	if errors.Is(err, sweeper.ErrRunInProgress) {
		j.logg.Info(ctx, "sweep already running; skipping scheduled trigger")
		return nil
	}
	if summary != nil {
		ctx = j.logg.WithFields(ctx, map[string]any{
			"pending_processed": summary.Pending.Processed,
			"total_pending":     summary.Pending.TotalPending,
			"pending_failed":    summary.Pending.Failed,
			"retries_completed": summary.Retries.Completed,
			"holds_fulfilled":   summary.Holds.Fulfilled,
		})
	}
	if err != nil {
		return fmt.Errorf("usd sweep: %w", err)
	}
	j.logg.Info(ctx, "usd sweep finished")
	return nil
}
