package estimate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceQuery_Complete(t *testing.T) {
	tests := []struct {
		name string
		q    PlaceQuery
		want bool
	}{
		{"bus station needs no street", PlaceQuery{Kind: KindBusStation, City: "Recife", State: "PE"}, true},
		{"address with street", PlaceQuery{Kind: KindAddress, Street: "Rua da Aurora, 100", City: "Recife", State: "PE"}, true},
		{"address without street", PlaceQuery{Kind: KindAddress, City: "Recife", State: "PE"}, false},
		{"empty kind counts as address", PlaceQuery{City: "Recife", State: "PE"}, false},
		{"missing state", PlaceQuery{Kind: KindBusStation, City: "Recife"}, false},
		{"blank city", PlaceQuery{Kind: KindBusStation, City: "   ", State: "PE"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.Complete())
		})
	}
}

func TestPlaceQuery_Phrases(t *testing.T) {
	bus := PlaceQuery{Kind: KindBusStation, City: " Caruaru ", State: "PE"}
	assert.Equal(t, "Rodoviária, Caruaru, PE, Brasil", bus.precisePhrase())
	assert.Equal(t, "Caruaru, PE, Brasil", bus.cityCenterPhrase())

	addr := PlaceQuery{Kind: KindAddress, Street: "Av. Agamenon Magalhães, 500", City: "Caruaru", State: "PE"}
	assert.Equal(t, "Av. Agamenon Magalhães, 500, Caruaru, PE, Brasil", addr.precisePhrase())
	assert.Equal(t, "Caruaru, PE, Brasil", addr.cityCenterPhrase())
}

func TestNominatimSearcher_Search(t *testing.T) {
	got := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"-8.0476","lon":"-34.877"},{"lat":"1","lon":"1"}]`))
	}))
	defer srv.Close()

	s := NewNominatimSearcher(srv.URL, "", time.Second)
	c, err := s.Search(context.Background(), "Recife, PE, Brasil")
	require.NoError(t, err)

	assert.Equal(t, -8.0476, c.Lat())
	assert.Equal(t, -34.877, c.Lon())
	req := <-got
	assert.Equal(t, DefaultUserAgent, req.Header.Get("User-Agent"))
	assert.Equal(t, "1", req.URL.Query().Get("limit"))
	assert.Equal(t, "json", req.URL.Query().Get("format"))
}

func TestNominatimSearcher_NumericCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":-23.5505,"lon":-46.6333}]`))
	}))
	defer srv.Close()

	c, err := NewNominatimSearcher(srv.URL, "", time.Second).Search(context.Background(), "São Paulo, SP, Brasil")
	require.NoError(t, err)
	assert.Equal(t, -23.5505, c.Lat())
	assert.Equal(t, -46.6333, c.Lon())
}

func TestNominatimSearcher_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"empty array", http.StatusOK, `[]`, ErrNoResults},
		{"server error", http.StatusServiceUnavailable, `busy`, nil},
		{"malformed", http.StatusOK, `{"lat":`, nil},
		{"out of range", http.StatusOK, `[{"lat":"123","lon":"0"}]`, ErrInvalidCoordinate},
		{"missing fields", http.StatusOK, `[{}]`, ErrNoResults},
		{"null coordinates", http.StatusOK, `[{"lat":null,"lon":null}]`, ErrNoResults},
		{"missing lon", http.StatusOK, `[{"lat":"-8.05"}]`, ErrNoResults},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewNominatimSearcher(srv.URL, "", time.Second).Search(context.Background(), "x")
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestPlaceGeocoder_NullCoordinatesFallBackToCityCenter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("q") == "Recife, PE, Brasil" {
			_, _ = w.Write([]byte(`[{"lat":"-8.0476","lon":"-34.877"}]`))
			return
		}
		_, _ = w.Write([]byte(`[{"lat":null,"lon":null}]`))
	}))
	defer srv.Close()
	g := NewPlaceGeocoder(NewNominatimSearcher(srv.URL, "", time.Second), nil)

	c, err := g.Locate(context.Background(), PlaceQuery{Kind: KindBusStation, City: "Recife", State: "PE"})
	require.NoError(t, err)
	assert.Equal(t, recife[0], c.Lat())
	assert.Equal(t, recife[1], c.Lon())
}

func TestPlaceGeocoder_PreciseHit(t *testing.T) {
	srv, calls := newNominatimServer(t, map[string][2]float64{
		"Rodoviária, Recife, PE, Brasil": {-8.1300, -34.9590},
		"Recife, PE, Brasil":             recife,
	})
	g := NewPlaceGeocoder(NewNominatimSearcher(srv.URL, "", time.Second), nil)

	c, err := g.Locate(context.Background(), PlaceQuery{Kind: KindBusStation, City: "Recife", State: "PE"})
	require.NoError(t, err)
	assert.Equal(t, -8.13, c.Lat())
	assert.Equal(t, []string{"Rodoviária, Recife, PE, Brasil"}, calls.all())
}

func TestPlaceGeocoder_FallsBackToCityCenter(t *testing.T) {
	srv, calls := newNominatimServer(t, map[string][2]float64{
		"Olinda, PE, Brasil": olinda,
	})
	g := NewPlaceGeocoder(NewNominatimSearcher(srv.URL, "", time.Second), nil)

	c, err := g.Locate(context.Background(), PlaceQuery{
		Kind: KindAddress, Street: "Rua Que Não Existe, 999", City: "Olinda", State: "PE",
	})
	require.NoError(t, err)
	assert.Equal(t, olinda[0], c.Lat())
	assert.Equal(t, olinda[1], c.Lon())
	assert.Equal(t, []string{
		"Rua Que Não Existe, 999, Olinda, PE, Brasil",
		"Olinda, PE, Brasil",
	}, calls.all())
}

func TestPlaceGeocoder_TransportErrorTriggersFallback(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[{"lat":"-8.0089","lon":"-34.8553"}]`))
	}))
	defer srv.Close()

	g := NewPlaceGeocoder(NewNominatimSearcher(srv.URL, "", time.Second), nil)
	c, err := g.Locate(context.Background(), PlaceQuery{Kind: KindBusStation, City: "Olinda", State: "PE"})
	require.NoError(t, err)
	assert.Equal(t, -8.0089, c.Lat())
	assert.Equal(t, int32(2), n.Load())
}

func TestPlaceGeocoder_NotFound(t *testing.T) {
	srv, calls := newNominatimServer(t, nil)
	g := NewPlaceGeocoder(NewNominatimSearcher(srv.URL, "", time.Second), nil)

	_, err := g.Locate(context.Background(), PlaceQuery{Kind: KindBusStation, City: "Atlântida", State: "XX"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, calls.count())
}

func TestPlaceGeocoder_IncompleteQueryMakesNoCall(t *testing.T) {
	srv, calls := newNominatimServer(t, nil)
	g := NewPlaceGeocoder(NewNominatimSearcher(srv.URL, "", time.Second), nil)

	_, err := g.Locate(context.Background(), PlaceQuery{Kind: KindAddress, City: "Recife", State: "PE"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, calls.count())
}
