package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	WagersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_wagers_placed_total",
		Help: "Total number of wagers accepted",
	}, []string{"mode"})

	WagersSettledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_wagers_settled_total",
		Help: "Total number of wagers reaching a terminal state",
	}, []string{"mode", "status"})

	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_rejections_total",
		Help: "Total number of rejected engine operations",
	}, []string{"op", "code"})

	PayoutVolumeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinflip_payout_volume_total",
		Help: "Sum of payouts transferred to players",
	})

	PayoutFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinflip_payout_failures_total",
		Help: "Total number of payouts the ledger refused after settlement",
	})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coinflip_operation_duration_seconds",
		Help:    "Duration of engine operations",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"op"})
)
