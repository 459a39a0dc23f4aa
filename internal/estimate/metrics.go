package estimate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trip",
		Subsystem: "estimate",
		Name:      "outcomes_total",
		Help:      "Estimation outcomes by kind and reason.",
	}, []string{"kind", "reason"})

	routeFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trip",
		Subsystem: "estimate",
		Name:      "route_fallbacks_total",
		Help:      "Routing calls answered by the great-circle fallback.",
	})

	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trip",
		Subsystem: "estimate",
		Name:      "search_requests_total",
		Help:      "Outbound place-search requests by provider.",
	}, []string{"provider"})

	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trip",
		Subsystem: "estimate",
		Name:      "cache_lookups_total",
		Help:      "Geocode and route cache lookups by cache and result.",
	}, []string{"cache", "result"})

	estimateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "trip",
		Subsystem: "estimate",
		Name:      "pipeline_duration_seconds",
		Help:      "Wall time of a full geocode, route and price run.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)
