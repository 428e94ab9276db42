// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/lkmcompany/gorgone/internal/config"
)

// ResilientClient wraps a single provider's outbound HTTP client with a
// circuit breaker and a token-bucket rate limiter, constructed once at
// startup per provider; worker pools never share mutable limiter state.
type ResilientClient struct {
	name    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	limiter *rate.Limiter
	timeout time.Duration
}

// NewResilientClient builds a ResilientClient for one provider from the
// shared provider-resilience settings in config.ProviderConfig.
func NewResilientClient(name string, cfg config.ProviderConfig) *ResilientClient {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.CircuitBreakerMaxRequests,
		Interval:    cfg.CircuitBreakerInterval,
		Timeout:     cfg.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.CircuitBreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.CircuitBreakerFailureRatio
		},
	}

	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &ResilientClient{
		name:    name,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), burst),
		timeout: cfg.RequestTimeout,
	}
}

// Do waits for a rate-limiter token (up to the request's deadline), then
// executes req through the circuit breaker. A rate-limiter wait timeout or
// an open breaker are both treated as retryable failures by the caller.
func (c *ResilientClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("%s: rate limiter wait: %w", c.name, err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%s: %w", c.name, ErrProviderRateLimited)
		}
		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%s: server error %d", c.name, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Get issues a GET request with the client's configured timeout and
// returns the response body, handling 404 as ErrItemNotFound.
func (c *ResilientClient) Get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrItemNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s: unexpected status %d", c.name, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// BreakerState reports the circuit breaker's current state name, exposed
// by the health endpoint.
func (c *ResilientClient) BreakerState() string {
	return c.breaker.State().String()
}

// Name returns the provider name this client was constructed for.
func (c *ResilientClient) Name() string { return c.name }

// ErrProviderRateLimited signals a 429 from the provider; the job
// scheduler retries the enclosing job with backoff.
var ErrProviderRateLimited = fmt.Errorf("provider: rate limited")
