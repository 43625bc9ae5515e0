package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminder_dispatch_attempts_total",
		Help: "Total delivery attempts against the messaging gateway.",
	}, []string{"outcome"})

	dispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reminder_dispatch_latency_seconds",
		Help:    "Latency of a full dispatch including retries.",
		Buckets: prometheus.DefBuckets,
	})

	deadLettersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reminder_dispatch_dead_letters_total",
		Help: "Terminal delivery failures published to the dead-letter queue.",
	})
)
