package oracle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ResolutionsTotal counts outcomes produced by the keccak oracle.
	ResolutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinflip_oracle_resolutions_total",
		Help: "Total number of outcomes resolved by the oracle",
	})
)
