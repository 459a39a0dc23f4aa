package estimate

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// PlaceSearcher runs a free-text place search and returns the first hit only.
// A search with no hits returns ErrNoResults.
type PlaceSearcher interface {
	Search(ctx context.Context, phrase string) (Coordinate, error)
}

// Geocoder resolves a PlaceQuery to a Coordinate.
type Geocoder interface {
	Locate(ctx context.Context, q PlaceQuery) (Coordinate, error)
}

// PlaceGeocoder tries the precise phrase first and falls back to the city
// center once. It holds no state between calls.
type PlaceGeocoder struct {
	searcher PlaceSearcher
	logger   *zap.Logger
}

// NewPlaceGeocoder creates a PlaceGeocoder backed by searcher.
func NewPlaceGeocoder(searcher PlaceSearcher, logger *zap.Logger) *PlaceGeocoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlaceGeocoder{searcher: searcher, logger: logger}
}

// Locate returns the coordinate of q, or ErrNotFound when both the precise and
// the city-center searches fail. Transport errors count as misses.
func (g *PlaceGeocoder) Locate(ctx context.Context, q PlaceQuery) (Coordinate, error) {
	if !q.Complete() {
		return Coordinate{}, fmt.Errorf("%w: incomplete query", ErrNotFound)
	}

	precise := q.precisePhrase()
	coord, err := g.searcher.Search(ctx, precise)
	if err == nil {
		return coord, nil
	}
	g.logger.Warn("precise search missed, trying city center",
		zap.String("phrase", precise),
		zap.Error(err),
	)

	center := q.cityCenterPhrase()
	coord, err = g.searcher.Search(ctx, center)
	if err == nil {
		return coord, nil
	}
	g.logger.Warn("city center search missed",
		zap.String("phrase", center),
		zap.Error(err),
	)

	return Coordinate{}, fmt.Errorf("%w: %s", ErrNotFound, center)
}
