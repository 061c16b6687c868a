package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nearboard/nearboard/internal/board"
	"github.com/nearboard/nearboard/internal/catalyst"
	"github.com/nearboard/nearboard/internal/config"
	"github.com/nearboard/nearboard/internal/gates"
	"github.com/nearboard/nearboard/internal/provider"
	"github.com/nearboard/nearboard/internal/scan"
	"github.com/nearboard/nearboard/internal/universe"
)

// staticMarket serves one scripted symbol and an unreachable directory.
// With block set, quote calls hang until it closes; entered is closed when
// the first blocked call begins.
type staticMarket struct {
	block   chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (m *staticMarket) GetQuote(ctx context.Context, symbol string) (provider.Quote, error) {
	if m.block != nil {
		if m.entered != nil {
			m.once.Do(func() { close(m.entered) })
		}
		select {
		case <-m.block:
		case <-ctx.Done():
			return provider.Quote{}, provider.Unavailable("quote", symbol, ctx.Err())
		}
	}
	return provider.Quote{Price: 12.00, PreviousClose: 11.50}, nil
}

func (m *staticMarket) GetProfile(ctx context.Context, symbol string) (provider.Profile, error) {
	return provider.Profile{Industry: "Software", SharesOutstanding: 40e6}, nil
}

func (m *staticMarket) GetRecentVolume15m(ctx context.Context, symbol string) (int64, error) {
	return 2_500_000, nil
}

func (m *staticMarket) GetRecentHeadlines(ctx context.Context, symbol string, sinceDays int) ([]provider.Headline, error) {
	return nil, nil
}

func (m *staticMarket) ListTradableSymbols(ctx context.Context, exchange string) ([]string, error) {
	return nil, provider.Unavailable("directory", "", errors.New("offline"))
}

type fixture struct {
	handlers *Handlers
	board    *board.Cache
	router   *mux.Router
}

func newFixture(t *testing.T, market provider.MarketData) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Universe.Symbols = []string{"ACME"}

	classifier := catalyst.NewKeywordClassifier(cfg.Gates.HeadlineLookbackDays)
	evaluator := gates.NewEvaluator(market, classifier, cfg.Gates)
	boardCache := board.NewCache(cfg.Scan.StaleAfter)
	builder := universe.NewBuilder(market, cfg.Universe, cfg.Gates.PriceCeiling)
	scanner := scan.New(builder, evaluator, boardCache, cfg.Scan)

	handlers := NewHandlers(boardCache, scanner, builder)

	router := mux.NewRouter()
	router.HandleFunc("/health", handlers.Health).Methods("GET")
	router.HandleFunc("/board", handlers.Board).Methods("GET")
	router.HandleFunc("/scan", handlers.Scan).Methods("GET", "POST")
	router.HandleFunc("/universe", handlers.Universe).Methods("GET")
	router.NotFoundHandler = http.HandlerFunc(handlers.NotFound)

	return &fixture{handlers: handlers, board: boardCache, router: router}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t, &staticMarket{})

	rec := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBoard_EmptyBeforeFirstScan(t *testing.T) {
	f := newFixture(t, &staticMarket{})

	rec := f.get(t, "/board")
	require.Equal(t, http.StatusOK, rec.Code, "an empty board is a valid response, not an error")

	var body boardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Rows)
	assert.Zero(t, body.Count)
	assert.Nil(t, body.AsOf)
	assert.Nil(t, body.AgeMinutes)
	assert.True(t, body.Stale)
}

func TestScanThenBoard(t *testing.T) {
	f := newFixture(t, &staticMarket{})

	rec := f.get(t, "/scan")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary scan.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Scanned)
	assert.Equal(t, 1, summary.Kept)

	rec = f.get(t, "/board")
	require.Equal(t, http.StatusOK, rec.Code)

	var body boardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "ACME", body.Rows[0].Symbol)
	assert.False(t, body.Stale)
	require.NotNil(t, body.AgeMinutes)
}

func TestBoard_StaleAfterWindow(t *testing.T) {
	f := newFixture(t, &staticMarket{})

	committed := time.Now().Add(-30 * time.Minute)
	f.board.Commit([]board.Row{{Symbol: "OLD"}}, committed)

	rec := f.get(t, "/board")
	require.Equal(t, http.StatusOK, rec.Code)

	var body boardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Stale)
	require.NotNil(t, body.AgeMinutes)
	assert.Greater(t, *body.AgeMinutes, 15.0)
}

func TestScan_SymbolsOverride(t *testing.T) {
	f := newFixture(t, &staticMarket{})

	rec := f.get(t, "/scan?symbols=ACME,BETA")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary scan.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Scanned)
}

func TestScan_ConflictWhileInFlight(t *testing.T) {
	market := &staticMarket{block: make(chan struct{}), entered: make(chan struct{})}
	f := newFixture(t, market)

	done := make(chan int, 1)
	go func() {
		rec := f.get(t, "/scan")
		done <- rec.Code
	}()

	// The first scan is provably in flight once its quote call starts.
	<-market.entered
	rec := f.get(t, "/scan?symbols=BETA")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(market.block)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestUniverse(t *testing.T) {
	f := newFixture(t, &staticMarket{})

	rec := f.get(t, "/universe")
	require.Equal(t, http.StatusOK, rec.Code)

	var body universeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"ACME"}, body.Symbols)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "list", body.Source)
}

func TestUniverse_MalformedLimitFallsBack(t *testing.T) {
	f := newFixture(t, &staticMarket{})

	rec := f.get(t, "/universe?limit=banana")
	assert.Equal(t, http.StatusOK, rec.Code, "a malformed limit falls back to the default")

	rec = f.get(t, "/universe?limit=-3")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, &staticMarket{})

	rec := f.get(t, "/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Not Found", body.Error)
}
