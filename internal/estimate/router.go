package estimate

import (
	"context"
	"fmt"
	"math"
)

const (
	earthRadiusKm = 6371.0

	// roadInflation scales a straight-line distance to an approximate road distance.
	roadInflation = 1.3
)

// RouteResult is a road-distance estimate between two coordinates.
type RouteResult struct {
	DistanceKm float64 `json:"distance_km"`

	// IsFallback is true when the distance came from the great-circle
	// approximation instead of the routing service.
	IsFallback bool `json:"is_fallback"`
}

// Router estimates the driving distance between two coordinates.
type Router interface {
	RouteDistance(ctx context.Context, origin, dest Coordinate) (RouteResult, error)
}

// GreatCircleDistance returns the haversine distance between a and b scaled by
// the road-inflation factor, rounded to 2 decimals. Equal points fail with
// ErrRouteUnavailable.
func GreatCircleDistance(a, b Coordinate) (float64, error) {
	for _, v := range []float64{a.lat, a.lon, b.lat, b.lon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: non-finite input", ErrInvalidCoordinate)
		}
	}

	km := round2(haversineKm(a.lat, a.lon, b.lat, b.lon) * roadInflation)
	if math.IsNaN(km) || math.IsInf(km, 0) {
		return 0, fmt.Errorf("%w: non-finite distance", ErrInvalidCoordinate)
	}
	if km <= 0 {
		return 0, fmt.Errorf("%w: zero distance between %s and %s", ErrRouteUnavailable, a, b)
	}
	return km, nil
}

// haversineKm computes the great-circle distance in kilometers.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	lat1Rad := degreesToRadians(lat1)
	lat2Rad := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1Rad)*math.Cos(lat2Rad)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// round2 rounds half away from zero to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
