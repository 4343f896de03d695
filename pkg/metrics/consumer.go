package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConsumerMetrics records processing metadata for event consumers.
type ConsumerMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	skipped  *prometheus.CounterVec
}

// NewConsumerMetrics registers the consumer metrics on the provided registerer.
func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "consumer_event_duration_seconds",
		Help:    "Duration of event handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"consumer"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_event_success",
		Help: "Successfully handled events.",
	}, []string{"consumer"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_event_failure",
		Help: "Event handling failures.",
	}, []string{"consumer"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_event_skipped",
		Help: "Events skipped by the idempotency guard.",
	}, []string{"consumer"})
	reg.MustRegister(duration, success, failure, skipped)
	return &ConsumerMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		skipped:  skipped,
	}
}

// ObserveDuration records the handling duration for the named consumer.
func (c *ConsumerMetrics) ObserveDuration(consumer string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(consumer)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named consumer.
func (c *ConsumerMetrics) IncSuccess(consumer string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(consumer)).Inc()
}

// IncFailure increments the failure counter for the named consumer.
func (c *ConsumerMetrics) IncFailure(consumer string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(consumer)).Inc()
}

// IncSkipped increments the skipped counter for the named consumer.
func (c *ConsumerMetrics) IncSkipped(consumer string) {
	if c == nil || c.skipped == nil {
		return
	}
	c.skipped.WithLabelValues(normalizeLabel(consumer)).Inc()
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
