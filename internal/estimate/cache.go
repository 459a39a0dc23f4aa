package estimate

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/mmcloughlin/geohash"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// geohashPrecision 7 is a cell of roughly 150m, finer than any two
	// addresses a customer would expect to price differently.
	geohashPrecision = 7

	// cacheQueryTimeout is the deadline for each cache write.
	cacheQueryTimeout = 2 * time.Second
)

// Store is the key/value backend shared by the geocode and route caches.
// Get reports a miss with ok=false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStore implements Store on a go-redis client.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps rdb.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Get returns the value for key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set stores value under key for ttl.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

type cachedPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CachedSearcher wraps a PlaceSearcher with a read-through cache. Concurrent
// lookups of the same phrase share one upstream call. Misses are not cached.
type CachedSearcher struct {
	inner         PlaceSearcher
	store         Store
	ttl           time.Duration
	flightTimeout time.Duration
	group         singleflight.Group
	logger        *zap.Logger
}

// NewCachedSearcher caches inner's hits in store for ttl.
func NewCachedSearcher(inner PlaceSearcher, store Store, ttl time.Duration, logger *zap.Logger) *CachedSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSearcher{
		inner:         inner,
		store:         store,
		ttl:           ttl,
		flightTimeout: DefaultRequestTimeout,
		logger:        logger,
	}
}

// Search satisfies PlaceSearcher. The shared upstream call is detached from
// any single caller's context; each caller still stops waiting when its own
// ctx is done.
func (c *CachedSearcher) Search(ctx context.Context, phrase string) (Coordinate, error) {
	key := "geocode:" + normalizePhrase(phrase)

	if coord, ok := c.lookup(ctx, key); ok {
		cacheLookupsTotal.WithLabelValues("geocode", "hit").Inc()
		return coord, nil
	}
	cacheLookupsTotal.WithLabelValues("geocode", "miss").Inc()

	ch := c.group.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout)
		defer cancel()

		coord, err := c.inner.Search(flightCtx, phrase)
		if err != nil {
			return nil, err
		}
		c.save(flightCtx, key, coord)
		return coord, nil
	})

	select {
	case <-ctx.Done():
		return Coordinate{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Coordinate{}, res.Err
		}
		return res.Val.(Coordinate), nil
	}
}

func (c *CachedSearcher) save(ctx context.Context, key string, coord Coordinate) {
	data, err := json.Marshal(cachedPoint{Lat: coord.Lat(), Lon: coord.Lon()})
	if err != nil {
		return
	}
	storeCtx, cancel := context.WithTimeout(ctx, cacheQueryTimeout)
	defer cancel()
	if err := c.store.Set(storeCtx, key, data, c.ttl); err != nil {
		c.logger.Warn("geocode cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedSearcher) lookup(ctx context.Context, key string) (Coordinate, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("geocode cache read failed", zap.String("key", key), zap.Error(err))
		return Coordinate{}, false
	}
	if !ok {
		return Coordinate{}, false
	}
	var p cachedPoint
	if err := json.Unmarshal(data, &p); err != nil {
		return Coordinate{}, false
	}
	coord, err := NewCoordinate(p.Lat, p.Lon)
	if err != nil {
		return Coordinate{}, false
	}
	return coord, true
}

// CachedRouter wraps a Router with a cache keyed by the geohash cells of both
// endpoints. Fallback distances are never cached so a recovered routing
// service gets a chance to answer next time.
type CachedRouter struct {
	inner  Router
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedRouter caches inner's routed distances in store for ttl.
func NewCachedRouter(inner Router, store Store, ttl time.Duration, logger *zap.Logger) *CachedRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRouter{inner: inner, store: store, ttl: ttl, logger: logger}
}

// RouteDistance satisfies Router.
func (r *CachedRouter) RouteDistance(ctx context.Context, origin, dest Coordinate) (RouteResult, error) {
	key := routeKey(origin, dest)

	data, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.Warn("route cache read failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		var cached RouteResult
		if err := json.Unmarshal(data, &cached); err == nil && cached.DistanceKm > 0 {
			cacheLookupsTotal.WithLabelValues("route", "hit").Inc()
			return cached, nil
		}
	}
	cacheLookupsTotal.WithLabelValues("route", "miss").Inc()

	result, err := r.inner.RouteDistance(ctx, origin, dest)
	if err != nil {
		return RouteResult{}, err
	}
	if result.IsFallback {
		return result, nil
	}

	if data, err := json.Marshal(result); err == nil {
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheQueryTimeout)
		defer cancel()
		if err := r.store.Set(storeCtx, key, data, r.ttl); err != nil {
			r.logger.Warn("route cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return result, nil
}

func routeKey(origin, dest Coordinate) string {
	return "route:" +
		geohash.EncodeWithPrecision(origin.Lat(), origin.Lon(), geohashPrecision) + ":" +
		geohash.EncodeWithPrecision(dest.Lat(), dest.Lon(), geohashPrecision)
}

// normalizePhrase folds case, accents and whitespace so "Rodoviária,  Recife"
// and "rodoviaria, recife" share a cache entry.
func normalizePhrase(phrase string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, phrase)
	if err != nil {
		folded = phrase
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
