// Package httpclient provides a bounded-concurrency HTTP client with
// retries and exponential backoff, shared by every outbound data fetch.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Config controls pool behavior.
type Config struct {
	MaxConcurrency int
	RequestTimeout time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	UserAgent      string
}

// DefaultConfig returns conservative settings suitable for free-tier
// market data APIs.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		RequestTimeout: 10 * time.Second,
		MaxRetries:     2,
		BackoffBase:    500 * time.Millisecond,
		BackoffMax:     15 * time.Second,
		UserAgent:      "nearboard/1.0",
	}
}

// Pool is a shared HTTP client with a concurrency semaphore and retry
// handling for transient failures.
type Pool struct {
	config    Config
	semaphore chan struct{}
	client    *http.Client

	totalRequests  atomic.Int64
	failedRequests atomic.Int64
	retries        atomic.Int64
}

// New creates a pool from config. Zero-value fields fall back to defaults.
func New(config Config) *Pool {
	def := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = def.MaxConcurrency
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = def.RequestTimeout
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = def.BackoffBase
	}
	if config.BackoffMax <= 0 {
		config.BackoffMax = def.BackoffMax
	}

	return &Pool{
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrency),
		client:    &http.Client{Timeout: config.RequestTimeout},
	}
}

// Do executes req with concurrency limiting and retries on retryable
// network errors and HTTP statuses (429, 502, 503, 504).
func (p *Pool) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	select {
	case p.semaphore <- struct{}{}:
		defer func() { <-p.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	p.totalRequests.Add(1)

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			p.retries.Add(1)
			backoff := p.backoff(attempt)
			log.Debug().
				Dur("backoff", backoff).
				Int("attempt", attempt).
				Str("url", req.URL.Redacted()).
				Msg("retrying HTTP request")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := p.client.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			if isRetryableError(err) {
				continue
			}
			break
		}

		if isRetryableStatus(resp.StatusCode) && attempt < p.config.MaxRetries {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			continue
		}

		return resp, nil
	}

	p.failedRequests.Add(1)
	return nil, lastErr
}

// Stats returns cumulative request counters.
func (p *Pool) Stats() (total, failed, retried int64) {
	return p.totalRequests.Load(), p.failedRequests.Load(), p.retries.Load()
}

func (p *Pool) backoff(attempt int) time.Duration {
	backoff := p.config.BackoffBase * time.Duration(1<<uint(attempt))
	if backoff > p.config.BackoffMax {
		backoff = p.config.BackoffMax
	}
	jitter := time.Duration(rand.Float64() * 0.1 * float64(backoff))
	return backoff + jitter
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Connection-level failures surface as *url.Error wrapping *net.OpError.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
