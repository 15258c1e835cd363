package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SweepMetrics tracks reconciliation runs and per-row results.
type SweepMetrics struct {
	runs      *prometheus.CounterVec
	rows      *prometheus.CounterVec
	escalated prometheus.Gauge
}

// NewSweepMetrics registers the sweeper metrics on the provided registerer.
func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	if reg == nil {
		return &SweepMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payoutcore_sweep_runs_total",
		Help: "Sweeper runs by trigger and result.",
	}, []string{"trigger", "result"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payoutcore_sweep_rows_total",
		Help: "Ledger rows handled by sweeper step and result.",
	}, []string{"step", "result"})
	escalated := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "payoutcore_sweep_escalated_transfers",
		Help: "Transfer retries at the retry ceiling during the last run.",
	})
	reg.MustRegister(runs, rows, escalated)
	return &SweepMetrics{runs: runs, rows: rows, escalated: escalated}
}

// ObserveRun counts one sweeper run.
func (s *SweepMetrics) ObserveRun(trigger, result string) {
	if s == nil || s.runs == nil {
		return
	}
	s.runs.WithLabelValues(normalizeLabel(trigger), normalizeLabel(result)).Inc()
}

// AddRows counts rows handled by a step.
func (s *SweepMetrics) AddRows(step, result string, n int) {
	if s == nil || s.rows == nil || n <= 0 {
		return
	}
	s.rows.WithLabelValues(normalizeLabel(step), normalizeLabel(result)).Add(float64(n))
}

// SetEscalated records how many retries need manual intervention.
func (s *SweepMetrics) SetEscalated(n int) {
	if s == nil || s.escalated == nil {
		return
	}
	s.escalated.Set(float64(n))
}
