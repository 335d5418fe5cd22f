package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_cache_lookups_total",
			Help: "Read-through cache lookups by namespace and result (hit, miss, error)",
		},
		[]string{"namespace", "result"},
	)

	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_cache_invalidations_total",
			Help: "Namespace generation bumps issued by the invalidation coordinator",
		},
		[]string{"namespace"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "review_cache_breaker_state",
			Help: "Current state of the cache circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
