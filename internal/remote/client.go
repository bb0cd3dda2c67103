// Package remote fetches the category listing from the HTTP endpoint.
package remote

import (
	"context"
	"net/http"
	"time"

	"github.com/lepinkainen/listado/internal/config"
	apperrors "github.com/lepinkainen/listado/internal/errors"
	"github.com/lepinkainen/listado/internal/ratelimit"
	"github.com/lepinkainen/listado/internal/record"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultMaxAttempts   = 3
	defaultRatePerSecond = 2
	userAgent            = "listado/1.0"
)

// Source returns the full remote collection.
type Source interface {
	FetchAll(ctx context.Context) ([]record.Record, error)
}

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client fetches the listing over HTTP.
type Client struct {
	url           string
	payload       Payload
	httpClient    HTTPDoer
	rateLimiter   *ratelimit.Limiter
	retryAttempts int
	backoff       func(attempt int) time.Duration
}

// NewClient creates a client for the listing at url.
func NewClient(url string, opts ...Option) *Client {
	client := &Client{
		url:           url,
		payload:       PayloadArray,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		rateLimiter:   ratelimit.New("remote", defaultRatePerSecond),
		retryAttempts: defaultMaxAttempts,
		backoff:       backoffDelay,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithTimeout replaces the HTTP client with one using the given timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		if d > 0 {
			client.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithPayload sets the expected response shape.
func WithPayload(p Payload) Option {
	return func(client *Client) {
		client.payload = p
	}
}

// WithRetryAttempts configures how many attempts are made for retryable errors.
func WithRetryAttempts(attempts int) Option {
	return func(client *Client) {
		if attempts > 0 {
			client.retryAttempts = attempts
		}
	}
}

// WithRateLimiter replaces the request limiter. A nil limiter disables limiting.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(client *Client) {
		client.rateLimiter = l
	}
}

// WithBackoff overrides the delay between retry attempts.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(client *Client) {
		if fn != nil {
			client.backoff = fn
		}
	}
}

// URL returns the listing endpoint.
func (c *Client) URL() string {
	return c.url
}

// FetchAll downloads and decodes the whole listing.
// Every failure is returned as a FetchFailedError.
func (c *Client) FetchAll(ctx context.Context) ([]record.Record, error) {
	body, err := c.get(ctx)
	if err != nil {
		return nil, apperrors.NewFetchFailedError(c.url, err)
	}

	records, err := decodePayload(body, c.payload)
	if err != nil {
		return nil, apperrors.NewFetchFailedError(c.url, err)
	}
	return records, nil
}

// FromSettings builds client options from loaded configuration.
func FromSettings(settings config.Settings) ([]Option, error) {
	payload, err := ParsePayload(settings.RemotePayload)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithPayload(payload),
		WithTimeout(settings.RemoteTimeout),
		WithRateLimiter(ratelimit.New("remote", settings.RemoteRatePerSecond)),
	}, nil
}
