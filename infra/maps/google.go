// Package maps implements travel oracles backed by external routing services.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	corelogger "ambuplan/core/logger"
	"ambuplan/core/model"
	"ambuplan/core/travel"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/directions/json"

// GoogleOptions configure the directions client.
type GoogleOptions struct {
	// BaseURL overrides the API endpoint, mainly for tests and proxies.
	BaseURL string
	// RequestsPerSecond throttles outgoing calls. Zero means 10 rps.
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client
	Logger            corelogger.Logger
}

// Google resolves driving distance and duration through the Google Directions
// API. Failures and empty route sets are reported as travel.ErrUnavailable so
// the cache can fall back to the haversine estimate.
type Google struct {
	key     string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	log     corelogger.Logger
}

// NewGoogle creates a rate-limited directions client.
func NewGoogle(apiKey string, opts GoogleOptions) *Google {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		log = corelogger.Nop{}
	}
	return &Google{
		key:     apiKey,
		baseURL: opts.BaseURL,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		log:     log,
	}
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		Legs []struct {
			Distance struct {
				Value float64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value float64 `json:"value"`
			} `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

// DistanceDuration implements travel.Oracle.
func (g *Google) DistanceDuration(ctx context.Context, from, to model.Location) (travel.Estimate, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return travel.Estimate{}, err
	}
	q := url.Values{}
	q.Set("origin", string(from))
	q.Set("destination", string(to))
	q.Set("mode", "driving")
	q.Set("key", g.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return travel.Estimate{}, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return travel.Estimate{}, fmt.Errorf("%w: %s", travel.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return travel.Estimate{}, fmt.Errorf("%w: directions api returned %s", travel.ErrUnavailable, resp.Status)
	}

	var body directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return travel.Estimate{}, fmt.Errorf("%w: decoding response: %s", travel.ErrUnavailable, err)
	}
	if body.Status != "OK" || len(body.Routes) == 0 || len(body.Routes[0].Legs) == 0 {
		g.log.Warnf("no route from %s to %s (status %s)", from, to, body.Status)
		return travel.Estimate{}, fmt.Errorf("%w: no route found (status %s)", travel.ErrUnavailable, body.Status)
	}
	leg := body.Routes[0].Legs[0]
	return travel.Estimate{
		Meters:   leg.Distance.Value,
		Duration: time.Duration(leg.Duration.Value * float64(time.Second)),
	}, nil
}
