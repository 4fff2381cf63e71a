package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_cache_hits_total",
		Help: "Total number of cache hits",
	}, []string{"cache"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_cache_misses_total",
		Help: "Total number of cache misses",
	}, []string{"cache"})

	CacheRejectedSetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinflip_cache_rejected_sets_total",
		Help: "Total number of values refused by the admission policy",
	}, []string{"cache"})
)
