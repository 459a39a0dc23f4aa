package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/viagem-certa/service-trip/internal/config"
	"github.com/viagem-certa/service-trip/internal/estimate"
	"go.uber.org/zap"
)

// buildEstimator assembles the geocode, route and price pipeline. rdb may be
// nil, in which case lookups are not cached.
func buildEstimator(cfg *config.ServiceConfig, rdb *redis.Client, log *zap.Logger) (*estimate.Pipeline, error) {
	ec := cfg.EstimateConfig

	var searcher estimate.PlaceSearcher
	switch ec.Provider {
	case "google":
		gs, err := estimate.NewGoogleSearcher(ec.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("google geocoder: %w", err)
		}
		searcher = gs
	default:
		searcher = estimate.NewNominatimSearcher(ec.NominatimURL, ec.UserAgent, ec.RequestTimeout)
	}

	var router estimate.Router = estimate.NewOSRMRouter(ec.OSRMURL, ec.UserAgent, ec.RequestTimeout, log)

	if rdb != nil {
		store := estimate.NewRedisStore(rdb)
		searcher = estimate.NewCachedSearcher(searcher, store, cfg.RedisConfig.GeocodeTTL, log)
		router = estimate.NewCachedRouter(router, store, cfg.RedisConfig.RouteTTL, log)
		log.Info("estimate caches enabled", zap.String("redis_addr", cfg.RedisConfig.Addr))
	}

	return estimate.NewPipeline(
		estimate.NewPlaceGeocoder(searcher, log),
		router,
		estimate.NewFlatRatePricing(),
		log,
	), nil
}
