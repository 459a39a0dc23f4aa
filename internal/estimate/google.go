package estimate

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

// GoogleSearcher implements PlaceSearcher with the Google Geocoding API.
type GoogleSearcher struct {
	client *maps.Client
}

// NewGoogleSearcher creates a searcher for the given API key.
func NewGoogleSearcher(apiKey string, opts ...maps.ClientOption) (*GoogleSearcher, error) {
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("estimate: google: new client: %w", err)
	}
	return &GoogleSearcher{client: client}, nil
}

// Search geocodes phrase biased to Brazil and returns the first result.
func (g *GoogleSearcher) Search(ctx context.Context, phrase string) (Coordinate, error) {
	searchRequestsTotal.WithLabelValues("google").Inc()

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  phrase,
		Region:   "br",
		Language: "pt-BR",
	})
	if err != nil {
		return Coordinate{}, fmt.Errorf("estimate: google: geocode: %w", err)
	}
	if len(results) == 0 {
		return Coordinate{}, ErrNoResults
	}

	loc := results[0].Geometry.Location
	return NewCoordinate(loc.Lat, loc.Lng)
}
