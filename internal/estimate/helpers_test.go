package estimate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// callLog records the requests a fake upstream received.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

func (l *callLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

// newNominatimServer answers /search with the first matching entry of places,
// keyed by the exact q parameter. Unknown phrases get an empty array.
func newNominatimServer(t *testing.T, places map[string][2]float64) (*httptest.Server, *callLog) {
	t.Helper()
	log := &callLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		log.add(q)
		w.Header().Set("Content-Type", "application/json")
		if p, ok := places[q]; ok {
			fmt.Fprintf(w, `[{"lat":"%v","lon":"%v","display_name":%q}]`, p[0], p[1], q)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

// newOSRMServer answers every route request with status and body.
func newOSRMServer(t *testing.T, status int, body string) (*httptest.Server, *callLog) {
	t.Helper()
	log := &callLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.add(r.URL.Path + "?" + r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

func osrmOK(meters float64) string {
	return fmt.Sprintf(`{"code":"Ok","routes":[{"distance":%v,"duration":1800}]}`, meters)
}

func mustCoord(t *testing.T, lat, lon float64) Coordinate {
	t.Helper()
	c, err := NewCoordinate(lat, lon)
	if err != nil {
		t.Fatalf("NewCoordinate(%v, %v): %v", lat, lon, err)
	}
	return c
}

// memStore is an in-memory Store.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
	err  error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, false, s.err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sets++
	s.data[key] = value
	return nil
}

// stubEstimator returns a fixed outcome after an optional delay and counts calls.
type stubEstimator struct {
	mu      sync.Mutex
	calls   []Form
	delay   time.Duration
	outcome Outcome
	block   chan struct{}
}

func (s *stubEstimator) Estimate(ctx context.Context, origin, dest PlaceQuery) Outcome {
	s.mu.Lock()
	s.calls = append(s.calls, Form{Origin: origin, Destination: dest})
	delay, block, out := s.delay, s.block, s.outcome
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Unavailable(ReasonDistanceFailed)
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Unavailable(ReasonDistanceFailed)
		}
	}
	return out
}

func (s *stubEstimator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubEstimator) lastCall() Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}
