package matchmaking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueSizeGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videodating_queue_size",
			Help: "Current number of waiting tickets",
		},
	)

	matchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videodating_matches_total",
			Help: "Total number of sessions created from matched pairs",
		},
	)

	matchWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "videodating_match_wait_seconds",
			Help:    "Time tickets waited in the queue before matching",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)
