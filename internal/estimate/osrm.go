package estimate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultOSRMURL is the public OSRM demo server.
const DefaultOSRMURL = "https://router.project-osrm.org"

// OSRMRouter implements Router with the OSRM route service and falls back to
// GreatCircleDistance whenever the service cannot answer.
type OSRMRouter struct {
	client *resty.Client
	logger *zap.Logger
}

// NewOSRMRouter creates a router for baseURL.
func NewOSRMRouter(baseURL, userAgent string, timeout time.Duration, logger *zap.Logger) *OSRMRouter {
	if baseURL == "" {
		baseURL = DefaultOSRMURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
	return &OSRMRouter{client: client, logger: logger}
}

// RouteDistance returns the driving distance from OSRM. Any service failure is
// logged and answered with the great-circle fallback.
func (r *OSRMRouter) RouteDistance(ctx context.Context, origin, dest Coordinate) (RouteResult, error) {
	km, err := r.callAPI(ctx, origin, dest)
	if err == nil {
		return RouteResult{DistanceKm: km}, nil
	}

	r.logger.Warn("routing service failed, using great-circle fallback",
		zap.String("origin", origin.String()),
		zap.String("destination", dest.String()),
		zap.Error(err),
	)
	routeFallbacksTotal.Inc()

	km, err = GreatCircleDistance(origin, dest)
	if err != nil {
		return RouteResult{}, err
	}
	return RouteResult{DistanceKm: km, IsFallback: true}, nil
}

// callAPI performs the HTTP call and returns the first route in kilometers.
func (r *OSRMRouter) callAPI(ctx context.Context, origin, dest Coordinate) (float64, error) {
	path := fmt.Sprintf("/route/v1/driving/%s;%s", origin.osrmPair(), dest.osrmPair())

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("overview", "false").
		Get(path)
	if err != nil {
		return 0, fmt.Errorf("estimate: osrm: http: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("estimate: osrm: status %d: %s", resp.StatusCode(), resp.String())
	}

	var body osrmResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return 0, fmt.Errorf("estimate: osrm: unmarshal response: %w", err)
	}
	if body.Code != "Ok" {
		return 0, fmt.Errorf("estimate: osrm: code %q: %s", body.Code, body.Message)
	}
	if len(body.Routes) == 0 {
		return 0, errors.New("estimate: osrm: no routes returned")
	}

	meters := body.Routes[0].Distance
	if math.IsNaN(meters) || math.IsInf(meters, 0) || meters <= 0 {
		return 0, fmt.Errorf("estimate: osrm: invalid distance %v", meters)
	}

	km := round2(meters / 1000)
	if km <= 0 {
		return 0, fmt.Errorf("estimate: osrm: distance %vm rounds to zero", meters)
	}
	return km, nil
}

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}
