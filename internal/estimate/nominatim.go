package estimate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultNominatimURL is the public OpenStreetMap search endpoint.
	DefaultNominatimURL = "https://nominatim.openstreetmap.org"

	// DefaultUserAgent identifies this service; Nominatim rejects anonymous clients.
	DefaultUserAgent = "Viagem Certa Transport System"

	// DefaultRequestTimeout bounds every outbound geocoding or routing call.
	DefaultRequestTimeout = 10 * time.Second
)

// NominatimSearcher implements PlaceSearcher against the Nominatim search API.
type NominatimSearcher struct {
	client *resty.Client
}

// NewNominatimSearcher creates a searcher for baseURL sending userAgent on every request.
func NewNominatimSearcher(baseURL, userAgent string, timeout time.Duration) *NominatimSearcher {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Language", "pt-BR")
	return &NominatimSearcher{client: client}
}

// Search queries Nominatim with limit=1 and returns the first result.
func (n *NominatimSearcher) Search(ctx context.Context, phrase string) (Coordinate, error) {
	searchRequestsTotal.WithLabelValues("nominatim").Inc()

	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      phrase,
			"format": "json",
			"limit":  "1",
		}).
		Get("/search")
	if err != nil {
		return Coordinate{}, fmt.Errorf("estimate: nominatim: http: %w", err)
	}
	if resp.IsError() {
		return Coordinate{}, fmt.Errorf("estimate: nominatim: status %d: %s", resp.StatusCode(), resp.String())
	}

	var results []nominatimResult
	if err := json.Unmarshal(resp.Body(), &results); err != nil {
		return Coordinate{}, fmt.Errorf("estimate: nominatim: unmarshal response: %w", err)
	}
	if len(results) == 0 {
		return Coordinate{}, ErrNoResults
	}

	first := results[0]
	if first.Lat == nil || first.Lon == nil {
		return Coordinate{}, fmt.Errorf("estimate: nominatim: malformed result: %w", ErrNoResults)
	}
	return NewCoordinate(float64(*first.Lat), float64(*first.Lon))
}

type nominatimResult struct {
	Lat         *flexFloat `json:"lat"`
	Lon         *flexFloat `json:"lon"`
	DisplayName string     `json:"display_name"`
}

// flexFloat accepts both 12.5 and "12.5"; Nominatim sends strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parse %q: %w", s, err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}
