// Package provider abstracts the market data vendor behind the narrow
// surface the scan pipeline consumes. Every call can fail transiently;
// failures are reported as ErrUnavailable-wrapped errors and never panic.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable marks a transient per-call provider failure: network
// error, rate limit, malformed payload, or missing data. Callers convert
// it into a per-symbol rejection, never a crash.
var ErrUnavailable = errors.New("market data unavailable")

// Unavailable wraps err as an ErrUnavailable for the given operation.
func Unavailable(op, symbol string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, op, symbol, err)
}

// IsUnavailable reports whether err is a transient provider failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Quote is a per-symbol price snapshot. Quotes are fetched fresh on every
// gate evaluation; they are never cached within a scan.
type Quote struct {
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
}

// Profile is slow-changing company metadata. SharesOutstanding and
// FloatShares are absolute share counts; FloatShares is zero when the
// vendor does not expose true float.
type Profile struct {
	Name              string  `json:"name"`
	Industry          string  `json:"industry"`
	Country           string  `json:"country"`
	Exchange          string  `json:"exchange"`
	SharesOutstanding float64 `json:"shares_outstanding"`
	FloatShares       float64 `json:"float_shares"`
}

// FloatProxy returns the best available free-float approximation: true
// float when the vendor exposes it, otherwise shares outstanding.
func (p Profile) FloatProxy() float64 {
	if p.FloatShares > 0 {
		return p.FloatShares
	}
	return p.SharesOutstanding
}

// Headline is one news item title with its publication time.
type Headline struct {
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
}

// MarketData is the capability the scan pipeline consumes. Implementations
// must honor ctx cancellation and report failures via ErrUnavailable.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	GetProfile(ctx context.Context, symbol string) (Profile, error)

	// GetRecentVolume15m returns the most recent completed 15-minute bar's
	// share volume. A missing bar (pre-market, thin trading) is an
	// ErrUnavailable, distinct from a bar with zero volume.
	GetRecentVolume15m(ctx context.Context, symbol string) (int64, error)

	// GetRecentHeadlines returns headlines published within the last
	// sinceDays days, most recent first.
	GetRecentHeadlines(ctx context.Context, symbol string, sinceDays int) ([]Headline, error)

	// ListTradableSymbols returns the raw ticker directory for an
	// exchange. Callers normalize and filter.
	ListTradableSymbols(ctx context.Context, exchange string) ([]string, error)
}
