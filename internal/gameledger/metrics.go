package gameledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	PendingWagersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinflip_pending_wagers",
		Help: "Number of wagers awaiting confirmation",
	})

	EncumberedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinflip_encumbered_reserve",
		Help: "Sum of potential payouts of pending wagers",
	})

	WagersRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_wagers_recorded_total",
		Help: "Total number of wagers recorded",
	}, []string{"mode"})
)
