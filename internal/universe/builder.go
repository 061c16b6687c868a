// Package universe builds and caches the ordered, deduplicated set of
// candidate symbols a scan pass walks. A build is atomic: the previous
// universe stays visible until a new one fully replaces it.
package universe

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nearboard/nearboard/internal/config"
	"github.com/nearboard/nearboard/internal/metrics"
	"github.com/nearboard/nearboard/internal/provider"
)

// Source tags where a universe came from.
type Source string

const (
	SourceList      Source = "list"      // explicit operator-supplied symbols
	SourceSeed      Source = "seed"      // bundled static seed list
	SourceDirectory Source = "directory" // provider tradable-symbol directory
)

// Universe is an immutable snapshot of candidate symbols.
type Universe struct {
	Symbols []string  `json:"symbols"`
	Source  Source    `json:"source"`
	BuiltAt time.Time `json:"built_at"`
}

// tickerRe keeps plain 1-5 letter common stock tickers, excluding
// preferred shares, warrants, and share classes with punctuation.
var tickerRe = regexp.MustCompile(`^[A-Z]{1,5}$`)

// Normalize uppercases, trims, drops malformed entries, and deduplicates
// preserving first-seen order.
func Normalize(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" || seen[sym] || !tickerRe.MatchString(sym) {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

// Builder constructs universes and reuses them across a freshness window.
type Builder struct {
	data         provider.MarketData
	cfg          config.Universe
	priceCeiling float64
	seed         []string

	mu      sync.RWMutex
	current *Universe

	now func() time.Time
}

// NewBuilder creates a universe builder. priceCeiling bounds the optional
// price pre-filter.
func NewBuilder(data provider.MarketData, cfg config.Universe, priceCeiling float64) *Builder {
	return &Builder{
		data:         data,
		cfg:          cfg,
		priceCeiling: priceCeiling,
		seed:         SeedSymbols(),
		now:          time.Now,
	}
}

// WithClock swaps the time source, used by tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Snapshot returns the current universe without building.
func (b *Builder) Snapshot() (Universe, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return Universe{}, false
	}
	return *b.current, true
}

// Build returns the current universe, rebuilding when the freshness window
// has lapsed or force is set. Freshness is wall-clock elapsed since the
// last successful build, not a schedule.
func (b *Builder) Build(ctx context.Context, force bool) (Universe, error) {
	b.mu.RLock()
	current := b.current
	b.mu.RUnlock()

	if !force && current != nil && b.now().Sub(current.BuiltAt) <= b.cfg.FreshnessWindow {
		return *current, nil
	}

	built := b.build(ctx)

	b.mu.Lock()
	b.current = &built
	b.mu.Unlock()

	metrics.UniverseSize.Set(float64(len(built.Symbols)))
	log.Info().
		Int("symbols", len(built.Symbols)).
		Str("source", string(built.Source)).
		Msg("universe built")

	return built, nil
}

// build selects the source by preference: explicit list, then the provider
// directory when enabled, then the bundled seed. Directory failure falls
// back to the seed; the universe is never empty by design defect.
func (b *Builder) build(ctx context.Context) Universe {
	builtAt := b.now()

	if symbols := Normalize(b.cfg.Symbols); len(symbols) > 0 {
		return Universe{Symbols: b.finish(ctx, symbols), Source: SourceList, BuiltAt: builtAt}
	}

	if b.cfg.DirectoryEnabled {
		raw, err := b.data.ListTradableSymbols(ctx, b.cfg.Exchange)
		if err != nil {
			log.Warn().Err(err).Msg("symbol directory unreachable, falling back to seed list")
		} else if symbols := Normalize(raw); len(symbols) > 0 {
			return Universe{Symbols: b.finish(ctx, symbols), Source: SourceDirectory, BuiltAt: builtAt}
		}
	}

	return Universe{Symbols: b.finish(ctx, Normalize(b.seed)), Source: SourceSeed, BuiltAt: builtAt}
}

// finish applies the optional price pre-filter and the hard size cap.
func (b *Builder) finish(ctx context.Context, symbols []string) []string {
	if b.cfg.PricePrefilter {
		symbols = b.prefilter(ctx, symbols)
	}
	if len(symbols) > b.cfg.MaxSize {
		symbols = symbols[:b.cfg.MaxSize]
	}
	return symbols
}

// prefilter keeps symbols quoting in (0, priceCeiling] and orders the
// survivors by an approximate dollar-volume liquidity rank so the size cap
// keeps the most liquid names. Best-effort: a provider failure for one
// symbol drops that symbol only.
func (b *Builder) prefilter(ctx context.Context, symbols []string) []string {
	// Bound the raw candidate list before spending a quote per symbol.
	rawCap := 2 * b.cfg.MaxSize
	if len(symbols) > rawCap {
		symbols = symbols[:rawCap]
	}

	type candidate struct {
		symbol    string
		dollarVol float64
	}

	sem := make(chan struct{}, 8)
	results := make(chan candidate, len(symbols))
	var wg sync.WaitGroup

	for _, symbol := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			quote, err := b.data.GetQuote(ctx, sym)
			if err != nil || quote.Price <= 0 || quote.Price > b.priceCeiling {
				return
			}

			// Liquidity proxy from the latest 15m bar; zero on failure
			// still keeps the symbol, just ranked last.
			var dollarVol float64
			if vol, err := b.data.GetRecentVolume15m(ctx, sym); err == nil {
				dollarVol = float64(vol) * quote.Price
			}
			results <- candidate{symbol: sym, dollarVol: dollarVol}
		}(symbol)
	}

	wg.Wait()
	close(results)

	candidates := make([]candidate, 0, len(symbols))
	for c := range results {
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dollarVol > candidates[j].dollarVol
	})

	kept := make([]string, 0, len(candidates))
	for _, c := range candidates {
		kept = append(kept, c.symbol)
	}
	return kept
}
