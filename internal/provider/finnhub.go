package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/nearboard/nearboard/internal/httpclient"
	"github.com/nearboard/nearboard/internal/metrics"
	"github.com/nearboard/nearboard/internal/ratelimit"
)

// FinnhubConfig holds the REST adapter settings.
type FinnhubConfig struct {
	APIKey         string
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	RateLimitRPS   float64
	RateLimitBurst int
}

// Finnhub adapts the Finnhub REST API to the MarketData interface. All
// calls share one pooled HTTP client, per-endpoint token buckets, and a
// circuit breaker that sheds load after consecutive failures.
type Finnhub struct {
	baseURL string
	apiKey  string
	client  *httpclient.Pool
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewFinnhub creates a Finnhub market data adapter.
func NewFinnhub(cfg FinnhubConfig) *Finnhub {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://finnhub.io/api/v1"
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "finnhub",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit breaker state change")
		},
	})

	return &Finnhub{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: httpclient.New(httpclient.Config{
			RequestTimeout: cfg.RequestTimeout,
			MaxRetries:     cfg.MaxRetries,
			UserAgent:      "nearboard/1.0",
		}),
		limiter: ratelimit.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		breaker: breaker,
	}
}

type finnhubQuote struct {
	Current       float64 `json:"c"`
	PreviousClose float64 `json:"pc"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
}

// GetQuote fetches the current price snapshot for symbol.
func (f *Finnhub) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	var raw finnhubQuote
	if err := f.get(ctx, "quote", "/quote", url.Values{"symbol": {symbol}}, &raw); err != nil {
		return Quote{}, Unavailable("quote", symbol, err)
	}
	return Quote{
		Price:         raw.Current,
		PreviousClose: raw.PreviousClose,
		DayHigh:       raw.High,
		DayLow:        raw.Low,
	}, nil
}

type finnhubProfile struct {
	Name string `json:"name"`
	// Finnhub reports shares outstanding in millions.
	ShareOutstanding float64 `json:"shareOutstanding"`
	Industry         string  `json:"finnhubIndustry"`
	Country          string  `json:"country"`
	Exchange         string  `json:"exchange"`
}

// GetProfile fetches company metadata for symbol.
func (f *Finnhub) GetProfile(ctx context.Context, symbol string) (Profile, error) {
	var raw finnhubProfile
	if err := f.get(ctx, "profile", "/stock/profile2", url.Values{"symbol": {symbol}}, &raw); err != nil {
		return Profile{}, Unavailable("profile", symbol, err)
	}
	return Profile{
		Name:              raw.Name,
		Industry:          raw.Industry,
		Country:           raw.Country,
		Exchange:          raw.Exchange,
		SharesOutstanding: raw.ShareOutstanding * 1e6,
	}, nil
}

type finnhubCandles struct {
	Status  string  `json:"s"`
	Volumes []int64 `json:"v"`
	Times   []int64 `json:"t"`
}

// GetRecentVolume15m fetches the most recent completed 15-minute bar's
// share volume from today's intraday candles.
func (f *Finnhub) GetRecentVolume15m(ctx context.Context, symbol string) (int64, error) {
	now := time.Now()
	from := now.Add(-24 * time.Hour)
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {"15"},
		"from":       {fmt.Sprintf("%d", from.Unix())},
		"to":         {fmt.Sprintf("%d", now.Unix())},
	}

	var raw finnhubCandles
	if err := f.get(ctx, "candle", "/stock/candle", params, &raw); err != nil {
		return 0, Unavailable("candle", symbol, err)
	}
	if raw.Status != "ok" || len(raw.Volumes) == 0 {
		return 0, Unavailable("candle", symbol, fmt.Errorf("no intraday bars (status %q)", raw.Status))
	}
	return raw.Volumes[len(raw.Volumes)-1], nil
}

type finnhubNews struct {
	Headline string `json:"headline"`
	Datetime int64  `json:"datetime"`
}

// GetRecentHeadlines fetches headlines published within sinceDays days.
func (f *Finnhub) GetRecentHeadlines(ctx context.Context, symbol string, sinceDays int) ([]Headline, error) {
	if sinceDays <= 0 {
		sinceDays = 14
	}
	now := time.Now()
	params := url.Values{
		"symbol": {symbol},
		"from":   {now.AddDate(0, 0, -sinceDays).Format("2006-01-02")},
		"to":     {now.Format("2006-01-02")},
	}

	var raw []finnhubNews
	if err := f.get(ctx, "news", "/company-news", params, &raw); err != nil {
		return nil, Unavailable("news", symbol, err)
	}

	headlines := make([]Headline, 0, len(raw))
	for _, n := range raw {
		if n.Headline == "" {
			continue
		}
		headlines = append(headlines, Headline{
			Title:       n.Headline,
			PublishedAt: time.Unix(n.Datetime, 0),
		})
	}
	return headlines, nil
}

type finnhubSymbol struct {
	Symbol string `json:"symbol"`
	Type   string `json:"type"`
}

// ListTradableSymbols fetches the full ticker directory for an exchange.
// Only common stock entries are returned; warrants, units, and preferred
// share listings are dropped here, and the universe builder filters again
// on ticker shape.
func (f *Finnhub) ListTradableSymbols(ctx context.Context, exchange string) ([]string, error) {
	var raw []finnhubSymbol
	if err := f.get(ctx, "directory", "/stock/symbol", url.Values{"exchange": {exchange}}, &raw); err != nil {
		return nil, Unavailable("directory", exchange, err)
	}

	symbols := make([]string, 0, len(raw))
	for _, s := range raw {
		if s.Type != "" && s.Type != "Common Stock" {
			continue
		}
		symbols = append(symbols, s.Symbol)
	}
	return symbols, nil
}

// get performs one rate-limited, breaker-guarded GET and decodes the JSON
// body into out.
func (f *Finnhub) get(ctx context.Context, endpoint, path string, params url.Values, out interface{}) error {
	if err := f.limiter.Wait(ctx, endpoint); err != nil {
		return err
	}

	_, err := f.breaker.Execute(func() (interface{}, error) {
		start := time.Now()
		err := f.doGet(ctx, path, params, out)
		metrics.ObserveProviderRequest(endpoint, err == nil, time.Since(start))
		return nil, err
	})
	return err
}

func (f *Finnhub) doGet(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := f.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Finnhub-Token", f.apiKey)

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
