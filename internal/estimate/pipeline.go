package estimate

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Estimator produces an Outcome for a pair of trip endpoints.
type Estimator interface {
	Estimate(ctx context.Context, origin, dest PlaceQuery) Outcome
}

// Pipeline runs geocode(origin), geocode(destination), route and price in
// that order. Every stage failure is absorbed into an unavailable outcome.
type Pipeline struct {
	geocoder Geocoder
	router   Router
	pricing  PricingStrategy
	logger   *zap.Logger
}

// NewPipeline creates a Pipeline from its three stages.
func NewPipeline(geocoder Geocoder, router Router, pricing PricingStrategy, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		geocoder: geocoder,
		router:   router,
		pricing:  pricing,
		logger:   logger,
	}
}

// Estimate runs the full pipeline. Incomplete endpoints yield Pending without
// any network call.
func (p *Pipeline) Estimate(ctx context.Context, origin, dest PlaceQuery) Outcome {
	if !origin.Complete() || !dest.Complete() {
		return record(Pending())
	}

	start := time.Now()
	defer func() { estimateDuration.Observe(time.Since(start).Seconds()) }()

	originCoord, err := p.geocoder.Locate(ctx, origin)
	if err != nil {
		p.logger.Info("origin not found", zap.Error(&GeocodeError{Endpoint: EndpointOrigin, Err: err}))
		return record(Unavailable(ReasonOriginNotFound))
	}

	destCoord, err := p.geocoder.Locate(ctx, dest)
	if err != nil {
		p.logger.Info("destination not found", zap.Error(&GeocodeError{Endpoint: EndpointDestination, Err: err}))
		return record(Unavailable(ReasonDestinationNotFound))
	}

	route, err := p.router.RouteDistance(ctx, originCoord, destCoord)
	if err != nil {
		p.logger.Info("distance unavailable",
			zap.String("origin", originCoord.String()),
			zap.String("destination", destCoord.String()),
			zap.Error(err),
		)
		return record(Unavailable(ReasonDistanceFailed))
	}

	price, err := p.pricing.Price(route.DistanceKm)
	if err != nil {
		p.logger.Info("pricing failed", zap.Float64("distance_km", route.DistanceKm), zap.Error(err))
		return record(Unavailable(ReasonDistanceFailed))
	}

	p.logger.Debug("estimate ready",
		zap.Float64("distance_km", route.DistanceKm),
		zap.Float64("price", price),
		zap.Bool("fallback", route.IsFallback),
	)
	return record(Ready(route.DistanceKm, price, route.IsFallback))
}

func record(o Outcome) Outcome {
	outcomesTotal.WithLabelValues(string(o.Kind), o.Reason).Inc()
	return o
}
