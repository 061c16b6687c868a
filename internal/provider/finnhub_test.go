package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFinnhub(t *testing.T, handler http.HandlerFunc) *Finnhub {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFinnhub(FinnhubConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		RequestTimeout: 2 * time.Second,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
}

func TestFinnhub_GetQuote(t *testing.T) {
	f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "ACME", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.Header.Get("X-Finnhub-Token"))
		w.Write([]byte(`{"c": 19.87, "pc": 19.10, "h": 20.05, "l": 18.90}`))
	})

	quote, err := f.GetQuote(context.Background(), "ACME")
	require.NoError(t, err)
	assert.InDelta(t, 19.87, quote.Price, 1e-9)
	assert.InDelta(t, 19.10, quote.PreviousClose, 1e-9)
	assert.InDelta(t, 20.05, quote.DayHigh, 1e-9)
	assert.InDelta(t, 18.90, quote.DayLow, 1e-9)
}

func TestFinnhub_GetProfile_SharesInMillions(t *testing.T) {
	f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/profile2", r.URL.Path)
		w.Write([]byte(`{"name": "Acme Corp", "shareOutstanding": 52.3, "finnhubIndustry": "Software", "country": "US", "exchange": "NASDAQ NMS - GLOBAL MARKET"}`))
	})

	profile, err := f.GetProfile(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", profile.Name)
	assert.Equal(t, "Software", profile.Industry)
	assert.InDelta(t, 52.3e6, profile.SharesOutstanding, 1, "vendor reports millions, callers get absolute counts")
}

func TestFinnhub_GetRecentVolume15m(t *testing.T) {
	t.Run("returns the latest bar", func(t *testing.T) {
		f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/stock/candle", r.URL.Path)
			assert.Equal(t, "15", r.URL.Query().Get("resolution"))
			w.Write([]byte(`{"s": "ok", "v": [100000, 250000, 900000], "t": [1, 2, 3]}`))
		})

		vol, err := f.GetRecentVolume15m(context.Background(), "ACME")
		require.NoError(t, err)
		assert.Equal(t, int64(900000), vol)
	})

	t.Run("no data is unavailable", func(t *testing.T) {
		f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"s": "no_data"}`))
		})

		_, err := f.GetRecentVolume15m(context.Background(), "ACME")
		require.Error(t, err)
		assert.True(t, IsUnavailable(err))
	})
}

func TestFinnhub_GetRecentHeadlines(t *testing.T) {
	f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company-news", r.URL.Path)
		w.Write([]byte(`[
			{"headline": "Acme beats on earnings", "datetime": 1756100000},
			{"headline": "", "datetime": 1756100001},
			{"headline": "Acme expands factory", "datetime": 1756100002}
		]`))
	})

	headlines, err := f.GetRecentHeadlines(context.Background(), "ACME", 14)
	require.NoError(t, err)
	require.Len(t, headlines, 2, "empty titles are dropped")
	assert.Equal(t, "Acme beats on earnings", headlines[0].Title)
	assert.Equal(t, time.Unix(1756100000, 0), headlines[0].PublishedAt)
}

func TestFinnhub_ListTradableSymbols(t *testing.T) {
	f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/symbol", r.URL.Path)
		assert.Equal(t, "US", r.URL.Query().Get("exchange"))
		w.Write([]byte(`[
			{"symbol": "ACME", "type": "Common Stock"},
			{"symbol": "ACME.WS", "type": "Warrant"},
			{"symbol": "BETA", "type": "Common Stock"},
			{"symbol": "GAMM", "type": ""}
		]`))
	})

	symbols, err := f.ListTradableSymbols(context.Background(), "US")
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME", "BETA", "GAMM"}, symbols)
}

func TestFinnhub_HTTPErrorIsUnavailable(t *testing.T) {
	f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := f.GetQuote(context.Background(), "ACME")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestFinnhub_MalformedBodyIsUnavailable(t *testing.T) {
	f := newTestFinnhub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>rate limited</html>`))
	})

	_, err := f.GetQuote(context.Background(), "ACME")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}
