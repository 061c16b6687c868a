// Package ratelimit throttles outbound market data calls with per-endpoint
// token buckets so one hot endpoint (quotes during a scan) cannot starve
// the rest of the vendor budget.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter provides per-endpoint rate limiting using token buckets.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewLimiter creates a limiter where each endpoint gets its own bucket
// with the specified refill rate and burst capacity.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *Limiter) getLimiter(endpoint string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[endpoint]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists := l.limiters[endpoint]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[endpoint] = limiter
	return limiter
}

// Allow reports whether a call to endpoint may proceed right now.
func (l *Limiter) Allow(endpoint string) bool {
	return l.getLimiter(endpoint).Allow()
}

// Wait blocks until a call to endpoint is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, endpoint string) error {
	return l.getLimiter(endpoint).Wait(ctx)
}

// SetRPS updates the refill rate for all endpoint buckets.
func (l *Limiter) SetRPS(rps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rps = rps
	for _, limiter := range l.limiters {
		limiter.SetLimit(rate.Limit(rps))
	}
}

// Tokens returns the tokens currently available for endpoint.
func (l *Limiter) Tokens(endpoint string) float64 {
	return l.getLimiter(endpoint).Tokens()
}
