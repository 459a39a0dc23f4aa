package estimate

import (
	"fmt"
	"math"
	"strconv"
)

// Coordinate is a validated WGS84 point in decimal degrees.
// The zero value is not a valid coordinate; build one with NewCoordinate.
type Coordinate struct {
	lat float64
	lon float64
}

// NewCoordinate validates lat/lon and returns a Coordinate.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return Coordinate{}, fmt.Errorf("%w: non-finite value (%v, %v)", ErrInvalidCoordinate, lat, lon)
	}
	if lat < -90 || lat > 90 {
		return Coordinate{}, fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, lat)
	}
	if lon < -180 || lon > 180 {
		return Coordinate{}, fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, lon)
	}
	return Coordinate{lat: lat, lon: lon}, nil
}

// Lat returns the latitude.
func (c Coordinate) Lat() float64 { return c.lat }

// Lon returns the longitude.
func (c Coordinate) Lon() float64 { return c.lon }

// String renders the point as "lat,lon".
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.lon, 'f', -1, 64)
}

// osrmPair renders the point in the "lon,lat" order the OSRM path expects.
// It is the only place a coordinate is written into a routing URL.
func (c Coordinate) osrmPair() string {
	return strconv.FormatFloat(c.lon, 'f', -1, 64) + "," + strconv.FormatFloat(c.lat, 'f', -1, 64)
}
