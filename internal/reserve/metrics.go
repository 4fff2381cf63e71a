package reserve

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	ReserveHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinflip_reserve_healthy",
		Help: "Whether available reserve is above the low watermark (1=healthy, 0=low)",
	})

	ReserveBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinflip_reserve_balance",
		Help: "Last observed house reserve balance",
	})

	ReserveAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinflip_reserve_available",
		Help: "Last observed reserve not encumbered by pending wagers",
	})

	ReserveLowWatermark = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinflip_reserve_low_watermark",
		Help: "Configured low watermark for available reserve",
	})

	ReserveStateChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinflip_reserve_state_changes_total",
		Help: "Total number of healthy/low transitions",
	})

	ReserveCheckErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinflip_reserve_check_errors_total",
		Help: "Total number of failed reserve reads",
	})

	ReserveCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coinflip_reserve_check_duration_seconds",
		Help:    "Duration of reserve checks",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)
