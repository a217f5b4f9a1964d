package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// clientsActive gauges the number of connected clients held by the registry.
	clientsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tg_clients_active",
			Help: "Number of platform clients currently held by the registry.",
		},
	)

	// clientEvents counts registry lifecycle events
	// (created, reused, recreated, discarded, connect_failed, logged_out).
	clientEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tg_client_events_total",
			Help: "Platform client lifecycle events by kind.",
		},
		[]string{"event"},
	)

	// connectDuration records how long connect attempts take, including failures.
	connectDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tg_client_connect_duration_seconds",
			Help:    "Duration of platform connect attempts in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
	)

	// batchItems counts batch analytics items by outcome
	// (fetched, absent, failed, skipped).
	batchItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tg_analytics_batch_items_total",
			Help: "Batch analytics items by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(clientsActive, clientEvents, connectDuration, batchItems)
}
