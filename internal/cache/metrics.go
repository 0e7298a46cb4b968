package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts reads that found a value
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentforge_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses counts reads that found nothing, faults excluded
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentforge_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheErrors counts faults swallowed by the facade
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentforge_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "exists"
	)
)
