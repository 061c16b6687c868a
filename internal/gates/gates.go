// Package gates applies the per-symbol eligibility pipeline: price gate,
// sector exclusion, float gate, catalyst classification, volume gate, and
// the derived board fields. Gates run strictly in order and the first
// failure stops all further data fetching for that symbol.
package gates

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nearboard/nearboard/internal/board"
	"github.com/nearboard/nearboard/internal/catalyst"
	"github.com/nearboard/nearboard/internal/config"
	"github.com/nearboard/nearboard/internal/provider"
)

// Outcome is the result class of one symbol's evaluation.
type Outcome int

const (
	Kept        Outcome = iota // passed all gates, Row is valid
	Rejected                   // failed a gate, Reason names it
	Unavailable                // provider failure, Cause carries it
)

func (o Outcome) String() string {
	switch o {
	case Kept:
		return "kept"
	case Rejected:
		return "rejected"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Gate reason names reported on rejection.
const (
	ReasonPrice  = "price"
	ReasonSector = "sector"
	ReasonFloat  = "float"
	ReasonVolume = "volume"
)

// Result is the explicit per-symbol outcome, so callers and tests can
// assert why a symbol was dropped rather than just that it was dropped.
type Result struct {
	Symbol  string
	Outcome Outcome
	Row     board.Row
	Reason  string
	Cause   error
}

// ADRDetector reports whether a symbol looks like an American Depositary
// Receipt. Pluggable so the heuristic can be swapped or tested alone.
type ADRDetector func(symbol string, profile provider.Profile) bool

// DefaultADRDetector flags tickers ending in "Y" (length 4-5), company
// names containing "ADR", and foreign-domiciled companies on US exchanges.
func DefaultADRDetector(symbol string, profile provider.Profile) bool {
	if len(symbol) >= 4 && len(symbol) <= 5 && strings.HasSuffix(symbol, "Y") {
		return true
	}
	if strings.Contains(" "+strings.ToLower(profile.Name), " adr") {
		return true
	}
	exchange := strings.ToUpper(profile.Exchange)
	usListed := strings.Contains(exchange, "NASDAQ") ||
		strings.Contains(exchange, "NYSE") ||
		strings.Contains(exchange, "NEW YORK")
	return usListed && profile.Country != "" && !strings.EqualFold(profile.Country, "US")
}

// Evaluator runs the gate pipeline against a market data provider.
type Evaluator struct {
	data       provider.MarketData
	classifier catalyst.Classifier
	cfg        config.Gates
	isADR      ADRDetector
	now        func() time.Time
}

// NewEvaluator creates a gate evaluator with the default ADR heuristic.
func NewEvaluator(data provider.MarketData, classifier catalyst.Classifier, cfg config.Gates) *Evaluator {
	return &Evaluator{
		data:       data,
		classifier: classifier,
		cfg:        cfg,
		isADR:      DefaultADRDetector,
		now:        time.Now,
	}
}

// WithADRDetector swaps the ADR heuristic.
func (e *Evaluator) WithADRDetector(d ADRDetector) *Evaluator {
	e.isADR = d
	return e
}

// WithClock swaps the time source, used by tests.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Evaluate runs all gates for one symbol. It is a pure function of the
// provider's responses: evaluating the same snapshot twice yields the
// same result. Provider failures never propagate; they come back as an
// Unavailable result for this symbol only.
//
// Gate order: price, then catalyst classification (fetched early because
// a Real catalyst overrides both the sector and float gates), then sector
// exclusion, float, volume, then the derived fields. A rejection stops
// every later provider call.
func (e *Evaluator) Evaluate(ctx context.Context, symbol string) Result {
	quote, err := e.data.GetQuote(ctx, symbol)
	if err != nil {
		return Result{Symbol: symbol, Outcome: Unavailable, Cause: err}
	}

	// Gate 1: price ceiling. Missing and non-positive prices reject too.
	if quote.Price <= 0 || quote.Price > e.cfg.PriceCeiling {
		return Result{
			Symbol:  symbol,
			Outcome: Rejected,
			Reason:  ReasonPrice,
		}
	}

	profile, err := e.data.GetProfile(ctx, symbol)
	if err != nil {
		return Result{Symbol: symbol, Outcome: Unavailable, Cause: err}
	}

	// Catalyst classification feeds the sector and float overrides, so it
	// is computed before either gate is finalized. A headline fetch
	// failure downgrades to "no catalyst" rather than dropping the symbol.
	cat := catalyst.Result{Kind: catalyst.None}
	headlines, err := e.data.GetRecentHeadlines(ctx, symbol, e.cfg.HeadlineLookbackDays)
	if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("headlines unavailable, catalyst None")
	} else {
		cat = e.classifier.Classify(headlines, e.now())
	}

	// Gate 2: sector exclusion, overridden by a Real catalyst.
	if cat.Kind != catalyst.Real && e.sectorExcluded(profile.Industry) {
		return Result{Symbol: symbol, Outcome: Rejected, Reason: ReasonSector}
	}

	// Gate 3: float ceiling, overridden by a Real catalyst. An unknown
	// float (no shares data) cannot be judged and passes.
	floatProxy := profile.FloatProxy()
	if cat.Kind != catalyst.Real && floatProxy > e.cfg.FloatCeiling {
		return Result{Symbol: symbol, Outcome: Rejected, Reason: ReasonFloat}
	}

	// Gate 4: 15-minute volume.
	volume, volumeMet, err := e.volumeGate(ctx, symbol, floatProxy, cat.Kind)
	if err != nil {
		return Result{Symbol: symbol, Outcome: Unavailable, Cause: err}
	}
	if !volumeMet && e.cfg.VolumeGateFatal {
		return Result{Symbol: symbol, Outcome: Rejected, Reason: ReasonVolume}
	}

	return Result{
		Symbol:  symbol,
		Outcome: Kept,
		Row:     e.buildRow(symbol, quote, profile, cat, volume, volumeMet),
	}
}

// sectorExcluded matches the provider industry as a case-insensitive
// substring of the configured exclusion set.
func (e *Evaluator) sectorExcluded(industry string) bool {
	if industry == "" {
		return false
	}
	lower := strings.ToLower(industry)
	for _, excluded := range e.cfg.ExcludedSectors {
		if strings.Contains(lower, strings.ToLower(excluded)) {
			return true
		}
	}
	return false
}

// volumeGate fetches the latest completed 15-minute bar and judges it
// against the absolute floor or the float-percentage alternative. When no
// bar exists at all, the configured unavailable-volume policy decides.
func (e *Evaluator) volumeGate(ctx context.Context, symbol string, floatProxy float64, kind catalyst.Kind) (int64, bool, error) {
	volume, err := e.data.GetRecentVolume15m(ctx, symbol)
	if err != nil {
		if !provider.IsUnavailable(err) {
			return 0, false, err
		}
		switch e.cfg.VolumeUnavailable {
		case config.VolumePass:
			return 0, true, nil
		case config.VolumeFail:
			return 0, false, nil
		default: // VolumePassWithCatalyst
			return 0, kind == catalyst.Real, nil
		}
	}

	if volume >= e.cfg.VolumeFloor {
		return volume, true, nil
	}
	if floatProxy > 0 && float64(volume) >= floatProxy*e.cfg.VolumeFloatPct {
		return volume, true, nil
	}
	return volume, false, nil
}

// buildRow computes the derived fields for a surviving symbol. No gate can
// fail here; this is pure computation.
func (e *Evaluator) buildRow(symbol string, quote provider.Quote, profile provider.Profile, cat catalyst.Result, volume int64, volumeMet bool) board.Row {
	trigger := round2(quote.Price * 1.02)
	pctToTrigger := round2((trigger/quote.Price - 1) * 100)

	// The VWAP-relative status is an explicit approximation: previous
	// close stands in for a true tick-level VWAP.
	vwapStatus := board.VWAPBelow
	if quote.PreviousClose > 0 && quote.Price >= quote.PreviousClose {
		vwapStatus = board.VWAPAbove
	}

	isADR := e.isADR(symbol, profile)
	tierGrade := classifyTier(cat.Kind, isADR)

	var notes []string
	if cat.Kind == catalyst.Speculative {
		notes = append(notes, "Spec PR, tiny size only")
	}
	if isADR {
		notes = append(notes, "ADR (Tier-2+)")
	}

	return board.Row{
		Symbol:           symbol,
		TierGrade:        tierGrade,
		Price:            round3(quote.Price),
		Trigger:          trigger,
		PercentToTrigger: pctToTrigger,
		VWAPStatus:       vwapStatus,
		VolumeGateMet:    volumeMet,
		Volume15m:        volume,
		Catalyst:         string(cat.Kind),
		CatalystNote:     cat.Note,
		Notes:            strings.Join(notes, "; "),
	}
}

// classifyTier maps catalyst kind and ADR status to a tier/grade label.
// Speculative catalysts cap a symbol at Tier-3 regardless of ADR status.
func classifyTier(kind catalyst.Kind, isADR bool) string {
	switch {
	case kind == catalyst.Speculative:
		return "Tier-3/C"
	case isADR:
		return "Tier-2/B"
	default:
		return "Tier-1/A"
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
