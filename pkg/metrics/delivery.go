package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeInactive  = "inactive"
)

// DeliveryMetrics tracks outbound webhook delivery attempts.
type DeliveryMetrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewDeliveryMetrics registers the delivery metrics on the provided registerer.
func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	if reg == nil {
		return &DeliveryMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_delivery_attempts_total",
		Help: "Outbound delivery attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_delivery_duration_seconds",
		Help:    "Duration of outbound delivery attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(attempts, duration)
	return &DeliveryMetrics{attempts: attempts, duration: duration}
}

// Observe records one delivery attempt with its outcome and duration.
func (d *DeliveryMetrics) Observe(outcome string, duration time.Duration) {
	if d == nil || d.attempts == nil {
		return
	}
	label := normalizeLabel(outcome)
	d.attempts.WithLabelValues(label).Inc()
	d.duration.WithLabelValues(label).Observe(duration.Seconds())
}
