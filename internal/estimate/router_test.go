package estimate

import (
	"context"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	recife = [2]float64{-8.0476, -34.8770}
	olinda = [2]float64{-8.0089, -34.8553}
)

func TestNewCoordinate(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		wantErr  bool
	}{
		{"valid", -8.05, -34.9, false},
		{"poles and antimeridian", 90, -180, false},
		{"latitude too high", 90.01, 0, true},
		{"longitude too low", 0, -180.5, true},
		{"NaN", math.NaN(), 0, true},
		{"infinite", 0, math.Inf(-1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCoordinate(tt.lat, tt.lon)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCoordinate)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGreatCircleDistance(t *testing.T) {
	// Recife Marco Zero to Olinda, about 4.9 km straight line.
	a := mustCoord(t, recife[0], recife[1])
	b := mustCoord(t, olinda[0], olinda[1])

	km, err := GreatCircleDistance(a, b)
	require.NoError(t, err)

	want := round2(haversineKm(recife[0], recife[1], olinda[0], olinda[1]) * 1.3)
	assert.Equal(t, want, km)
	assert.Greater(t, km, 0.0)
	assert.InDelta(t, 6.4, km, 0.1)

	back, err := GreatCircleDistance(b, a)
	require.NoError(t, err)
	assert.Equal(t, km, back)
}

func TestGreatCircleDistance_EqualPointsFail(t *testing.T) {
	a := mustCoord(t, recife[0], recife[1])
	_, err := GreatCircleDistance(a, a)
	assert.ErrorIs(t, err, ErrRouteUnavailable)
}

func TestGreatCircleDistance_NonFinite(t *testing.T) {
	bad := Coordinate{lat: math.NaN(), lon: 0}
	_, err := GreatCircleDistance(bad, mustCoord(t, 0, 1))
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestOSRMRouter_UsesRoutedDistance(t *testing.T) {
	srv, calls := newOSRMServer(t, http.StatusOK, osrmOK(42195))
	r := NewOSRMRouter(srv.URL, "", time.Second, nil)

	res, err := r.RouteDistance(context.Background(),
		mustCoord(t, recife[0], recife[1]),
		mustCoord(t, olinda[0], olinda[1]))
	require.NoError(t, err)
	assert.Equal(t, 42.20, res.DistanceKm)
	assert.False(t, res.IsFallback)

	// The path carries lon,lat pairs, the reverse of the search order.
	require.Equal(t, 1, calls.count())
	assert.Equal(t,
		"/route/v1/driving/-34.877,-8.0476;-34.8553,-8.0089?overview=false",
		calls.all()[0])
}

func TestOSRMRouter_FallsBack(t *testing.T) {
	a := mustCoord(t, recife[0], recife[1])
	b := mustCoord(t, olinda[0], olinda[1])
	want, err := GreatCircleDistance(a, b)
	require.NoError(t, err)

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`},
		{"no route", http.StatusOK, `{"code":"NoRoute","message":"Impossible route","routes":[]}`},
		{"empty routes", http.StatusOK, `{"code":"Ok","routes":[]}`},
		{"malformed body", http.StatusOK, `{"code":`},
		{"zero distance", http.StatusOK, osrmOK(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newOSRMServer(t, tt.status, tt.body)
			r := NewOSRMRouter(srv.URL, "", time.Second, nil)

			res, err := r.RouteDistance(context.Background(), a, b)
			require.NoError(t, err)
			assert.True(t, res.IsFallback)
			assert.Equal(t, want, res.DistanceKm)
		})
	}
}

func TestOSRMRouter_UnreachableFallsBack(t *testing.T) {
	r := NewOSRMRouter("http://127.0.0.1:1", "", 200*time.Millisecond, nil)
	res, err := r.RouteDistance(context.Background(),
		mustCoord(t, recife[0], recife[1]),
		mustCoord(t, olinda[0], olinda[1]))
	require.NoError(t, err)
	assert.True(t, res.IsFallback)
}

func TestOSRMRouter_SamePointFails(t *testing.T) {
	srv, _ := newOSRMServer(t, http.StatusOK, osrmOK(0))
	r := NewOSRMRouter(srv.URL, "", time.Second, nil)

	a := mustCoord(t, recife[0], recife[1])
	_, err := r.RouteDistance(context.Background(), a, a)
	assert.ErrorIs(t, err, ErrRouteUnavailable)
}
