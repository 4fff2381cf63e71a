package erc20

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	TxSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_erc20_tx_sent_total",
		Help: "Total number of token transactions submitted",
	}, []string{"method"})

	TxFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_erc20_tx_failures_total",
		Help: "Total number of token transactions that failed",
	}, []string{"method", "stage"})

	CallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coinflip_erc20_call_duration_seconds",
		Help:    "Duration of read-only token calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)
