// internal/videodating/metrics.go

package videodating

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "videodating_active_connections",
		Help: "Number of connected websocket clients",
	})

	eventsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videodating_events_sent_total",
		Help: "Server events delivered to clients, by event type",
	}, []string{"type"})

	signalsForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videodating_signals_forwarded_total",
		Help: "Signaling messages relayed between session participants",
	}, []string{"type"})

	signalsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videodating_signals_dropped_total",
		Help: "Signaling messages dropped instead of relayed, by cause",
	}, []string{"cause"})

	callsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videodating_calls_ended_total",
		Help: "Sessions ended, by reason",
	}, []string{"reason"})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "videodating_session_duration_seconds",
		Help:    "Lifetime of ended sessions",
		Buckets: prometheus.ExponentialBuckets(5, 2, 10),
	})

	revealRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videodating_reveal_requests_total",
		Help: "Blind date reveal requests",
	})

	revealAccepts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videodating_reveal_accepts_total",
		Help: "Blind date reveals accepted",
	})
)
