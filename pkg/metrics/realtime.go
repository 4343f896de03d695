package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RealtimeMetrics tracks subscription channel health.
type RealtimeMetrics struct {
	channels   *prometheus.GaugeVec
	retries    *prometheus.CounterVec
	heartbeats *prometheus.CounterVec
}

// NewRealtimeMetrics registers realtime channel metrics on the provided registerer.
func NewRealtimeMetrics(reg prometheus.Registerer) *RealtimeMetrics {
	if reg == nil {
		return &RealtimeMetrics{}
	}
	channels := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "realtime_channels",
		Help: "Subscription channels by connection status.",
	}, []string{"status"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_channel_retries",
		Help: "Subscription retry attempts per channel.",
	}, []string{"channel"})
	heartbeats := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_heartbeat_failures",
		Help: "Heartbeat failures per channel.",
	}, []string{"channel"})
	reg.MustRegister(channels, retries, heartbeats)
	return &RealtimeMetrics{
		channels:   channels,
		retries:    retries,
		heartbeats: heartbeats,
	}
}

// SetChannelCount records how many channels sit in the given status.
func (r *RealtimeMetrics) SetChannelCount(status string, count int) {
	if r == nil || r.channels == nil {
		return
	}
	r.channels.WithLabelValues(normalizeLabel(status)).Set(float64(count))
}

// IncRetry increments the retry counter for the named channel.
func (r *RealtimeMetrics) IncRetry(channel string) {
	if r == nil || r.retries == nil {
		return
	}
	r.retries.WithLabelValues(normalizeLabel(channel)).Inc()
}

// IncHeartbeatFailure increments the heartbeat failure counter for the named channel.
func (r *RealtimeMetrics) IncHeartbeatFailure(channel string) {
	if r == nil || r.heartbeats == nil {
		return
	}
	r.heartbeats.WithLabelValues(normalizeLabel(channel)).Inc()
}
