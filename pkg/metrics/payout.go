package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PayoutMetrics tracks channel attempts and final cash-out outcomes.
type PayoutMetrics struct {
	attempts *prometheus.CounterVec
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	amount   *prometheus.CounterVec
}

// NewPayoutMetrics registers the payout metrics on the provided registerer.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payoutcore_payout_attempts_total",
		Help: "Payout channel attempts by outcome and error class.",
	}, []string{"channel", "outcome", "error_class"})
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payoutcore_cashout_results_total",
		Help: "Cash-out requests by final status and channel used.",
	}, []string{"channel", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payoutcore_cashout_duration_seconds",
		Help:    "End-to-end cash-out orchestration time.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	amount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payoutcore_cashout_amount_cents_total",
		Help: "Cents paid out by channel.",
	}, []string{"channel"})
	reg.MustRegister(attempts, results, duration, amount)
	return &PayoutMetrics{
		attempts: attempts,
		results:  results,
		duration: duration,
		amount:   amount,
	}
}

// ObserveAttempt counts one channel attempt.
func (p *PayoutMetrics) ObserveAttempt(channel, outcome, errorClass string) {
	if p == nil || p.attempts == nil {
		return
	}
	if errorClass == "" {
		errorClass = "none"
	}
	p.attempts.WithLabelValues(normalizeLabel(channel), normalizeLabel(outcome), errorClass).Inc()
}

// ObserveResult records the final outcome of a cash-out.
func (p *PayoutMetrics) ObserveResult(channel, status string, amountCents int64, elapsed time.Duration) {
	if p == nil || p.results == nil {
		return
	}
	if channel == "" {
		channel = "none"
	}
	status = normalizeLabel(status)
	p.results.WithLabelValues(channel, status).Inc()
	p.duration.WithLabelValues(status).Observe(elapsed.Seconds())
	if status == "success" && amountCents > 0 {
		p.amount.WithLabelValues(channel).Add(float64(amountCents))
	}
}
