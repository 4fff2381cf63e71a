package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// StorageOperationsTotal counts store operations by backend and operation.
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinflip_storage_operations_total",
			Help: "Total number of wager storage operations",
		},
		[]string{"backend", "op"},
	)

	// StorageErrorsTotal counts failed store operations.
	StorageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinflip_storage_errors_total",
			Help: "Total number of failed wager storage operations",
		},
		[]string{"backend", "op"},
	)

	// StorageDurationSeconds tracks SQL round-trip latency.
	StorageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coinflip_storage_duration_seconds",
			Help:    "Duration of wager storage operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)
)
