package estimate

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a Geocoder when neither the precise nor the
	// city-center search produced a result.
	ErrNotFound = errors.New("estimate: place not found")

	// ErrNoResults is returned by a PlaceSearcher when the search came back empty.
	ErrNoResults = errors.New("estimate: search returned no results")

	// ErrRouteUnavailable is returned when neither the routing service nor the
	// great-circle fallback produced a positive distance.
	ErrRouteUnavailable = errors.New("estimate: route unavailable")

	// ErrInvalidCoordinate reports a non-finite or out-of-range coordinate.
	ErrInvalidCoordinate = errors.New("estimate: invalid coordinate")
)

// Endpoint names a side of the trip.
type Endpoint string

const (
	// EndpointOrigin is where the trip starts.
	EndpointOrigin Endpoint = "origin"
	// EndpointDestination is where the trip ends.
	EndpointDestination Endpoint = "destination"
)

// GeocodeError ties a geocoding failure to the trip endpoint it happened on.
type GeocodeError struct {
	Endpoint Endpoint
	Err      error
}

// Error names the endpoint and the underlying failure.
func (e *GeocodeError) Error() string {
	return fmt.Sprintf("geocode %s: %v", e.Endpoint, e.Err)
}

// Unwrap returns the geocoder error.
func (e *GeocodeError) Unwrap() error { return e.Err }
