// Package metrics exposes prometheus counters for the caching tier.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xchangebot/ledger/internal/cache"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_cache_hits_total",
		Help: "Number of cache hits, per backend.",
	}, []string{"backend"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_cache_misses_total",
		Help: "Number of cache misses, per backend.",
	}, []string{"backend"})

	cacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_cache_invalidations_total",
		Help: "Number of cache entries invalidated (explicitly or by TTL expiry), per backend.",
	}, []string{"backend"})
)

// CacheHooks returns cache hooks that feed the prometheus counters for the
// named backend ("sheets" or "database").
func CacheHooks(backend string) cache.Hooks {
	hits := cacheHits.WithLabelValues(backend)
	misses := cacheMisses.WithLabelValues(backend)
	invalidations := cacheInvalidations.WithLabelValues(backend)
	return cache.Hooks{
		OnHit:        func() { hits.Inc() },
		OnMiss:       func() { misses.Inc() },
		OnInvalidate: func(n int) { invalidations.Add(float64(n)) },
	}
}
