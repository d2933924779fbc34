// Package enrich resolves item titles to poster image URLs via an external metadata service.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/metrics"
)

// notAvailable is the metadata service's sentinel for a missing poster.
const notAvailable = "N/A"

// maxResponseBytes bounds how much of a metadata response is decoded.
const maxResponseBytes = 1 << 20

// Lookup failure kinds. Every one of them maps to the fallback poster.
var (
	ErrNoImage   = errors.New("no poster available")
	ErrBadStatus = errors.New("unexpected response status")
	ErrMalformed = errors.New("malformed metadata response")
)

// LookupError describes a failed poster lookup for one title.
type LookupError struct {
	Title string
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("poster lookup %q: %v", e.Title, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// PosterLookup resolves a single title to a poster URL.
type PosterLookup interface {
	Poster(ctx context.Context, title string) (string, error)
}

// metadataResponse is the subset of the metadata service's JSON body we rely on.
type metadataResponse struct {
	Poster   string `json:"Poster"`
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

// Client queries an OMDb-style API: GET base?t=<title>&apikey=<key>.
// Calls go through a circuit breaker shared by all requests.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[string]
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets a logger for breaker transitions.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a metadata client from cfg.
func NewClient(cfg *config.EnrichmentConfig, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        cfg.MaxInFlight,
				MaxIdleConnsPerHost: cfg.MaxInFlight,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	const cbName = "metadata-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)
	threshold := cfg.BreakerFailures
	c.cb = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A missing poster or a caller that went away says nothing about service health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoImage) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return c
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Poster returns the poster URL for title. The call is bounded by the configured timeout.
// When the circuit is open it fails immediately with gobreaker.ErrOpenState.
func (c *Client) Poster(ctx context.Context, title string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	poster, err := c.cb.Execute(func() (string, error) {
		return c.fetch(ctx, title)
	})
	if err != nil {
		return "", &LookupError{Title: title, Err: err}
	}
	return poster, nil
}

func (c *Client) fetch(ctx context.Context, title string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("t", title)
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	var body metadataResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).DecodeContext(ctx, &body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if body.Response == "False" {
		return "", fmt.Errorf("%w: %s", ErrNoImage, body.Error)
	}
	if body.Poster == "" || body.Poster == notAvailable {
		return "", ErrNoImage
	}
	if _, err := url.ParseRequestURI(body.Poster); err != nil {
		return "", fmt.Errorf("%w: poster is not a URL: %v", ErrMalformed, err)
	}
	return body.Poster, nil
}
