package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromotionMetrics records calls to the external promotion evaluator.
type PromotionMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewPromotionMetrics registers the evaluator metrics on the provided registerer.
func NewPromotionMetrics(reg prometheus.Registerer) *PromotionMetrics {
	if reg == nil {
		return &PromotionMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "promotion_evaluator_duration_seconds",
		Help:    "Duration of promotion evaluator calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promotion_evaluations_total",
		Help: "Promotion evaluator calls by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, outcomes)
	return &PromotionMetrics{duration: duration, outcomes: outcomes}
}

// ObserveEvaluation records a completed evaluator call.
func (p *PromotionMetrics) ObserveEvaluation(outcome string, elapsed time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	label := normalizeLabel(outcome)
	p.duration.WithLabelValues(label).Observe(elapsed.Seconds())
	p.outcomes.WithLabelValues(label).Inc()
}
