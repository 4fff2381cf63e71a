package params

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// CoefficientGauge tracks the payout coefficient in hundredths.
	CoefficientGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinflip_params_coefficient",
		Help: "Current payout coefficient in hundredths (195 = 1.95x)",
	})

	// MinStakeGauge tracks the minimum accepted stake.
	MinStakeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinflip_params_min_stake",
		Help: "Current minimum stake",
	})

	// MaxStakeGauge tracks the maximum accepted stake.
	MaxStakeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinflip_params_max_stake",
		Help: "Current maximum stake",
	})

	// ParameterRejectionsTotal counts rejected parameter updates.
	ParameterRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinflip_params_rejections_total",
			Help: "Total number of rejected parameter updates",
		},
		[]string{"parameter"},
	)
)
