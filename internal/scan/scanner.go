// Package scan orchestrates a full scan pass: universe, per-symbol gate
// evaluation over a bounded worker pool, ranking, and one atomic board
// commit at the end.
package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nearboard/nearboard/internal/board"
	"github.com/nearboard/nearboard/internal/config"
	"github.com/nearboard/nearboard/internal/gates"
	"github.com/nearboard/nearboard/internal/metrics"
	"github.com/nearboard/nearboard/internal/rank"
	"github.com/nearboard/nearboard/internal/universe"
)

// ErrScanInFlight is returned when a scan is requested while another is
// still running. Scans are serialized; overlapping generations never mix.
var ErrScanInFlight = errors.New("scan already in flight")

// Summary reports one completed scan pass.
type Summary struct {
	Scanned     int           `json:"scanned"`
	Kept        int           `json:"kept"`
	Rejected    int           `json:"rejected"`
	Unavailable int           `json:"unavailable"`
	Duration    time.Duration `json:"-"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Scanner runs scan passes and owns their serialization.
type Scanner struct {
	universe  *universe.Builder
	evaluator *gates.Evaluator
	board     *board.Cache
	cfg       config.Scan

	inFlight atomic.Bool
	now      func() time.Time
}

// New creates a scanner.
func New(u *universe.Builder, e *gates.Evaluator, b *board.Cache, cfg config.Scan) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Scanner{
		universe:  u,
		evaluator: e,
		board:     b,
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithClock swaps the time source, used by tests.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	s.now = now
	return s
}

// Run executes one scan pass. With override symbols the universe builder
// is bypassed (the override is still normalized). The board is replaced
// only when the whole pass completes inside the scan deadline; a pass cut
// short leaves the previous board intact.
func (s *Scanner) Run(ctx context.Context, override []string) (Summary, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return Summary{}, ErrScanInFlight
	}
	defer s.inFlight.Store(false)

	if s.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Deadline)
		defer cancel()
	}

	started := s.now()

	var symbols []string
	if len(override) > 0 {
		symbols = universe.Normalize(override)
	} else {
		u, err := s.universe.Build(ctx, false)
		if err != nil {
			return Summary{}, err
		}
		symbols = u.Symbols
	}

	results := s.evaluateAll(ctx, symbols)

	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Int("symbols", len(symbols)).Msg("scan pass cut short, board unchanged")
		return Summary{}, err
	}

	summary := Summary{Scanned: len(symbols)}
	rows := make([]board.Row, 0, len(results))
	for _, res := range results {
		metrics.SymbolOutcomes.WithLabelValues(res.Outcome.String()).Inc()
		switch res.Outcome {
		case gates.Kept:
			row := res.Row
			row.Score = rank.Score(row)
			rows = append(rows, row)
		case gates.Rejected:
			summary.Rejected++
			log.Debug().Str("symbol", res.Symbol).Str("gate", res.Reason).Msg("symbol rejected")
		case gates.Unavailable:
			summary.Unavailable++
			log.Debug().Str("symbol", res.Symbol).Err(res.Cause).Msg("symbol data unavailable")
		}
	}

	rank.Rank(rows)
	if s.cfg.BoardMaxRows > 0 && len(rows) > s.cfg.BoardMaxRows {
		rows = rows[:s.cfg.BoardMaxRows]
	}
	summary.Kept = len(rows)

	completedAt := s.now()
	s.board.Commit(rows, completedAt)

	summary.CompletedAt = completedAt
	summary.Duration = completedAt.Sub(started)

	metrics.ScansTotal.Inc()
	metrics.ScanDuration.Observe(summary.Duration.Seconds())
	metrics.BoardRows.Set(float64(summary.Kept))

	log.Info().
		Int("scanned", summary.Scanned).
		Int("kept", summary.Kept).
		Int("rejected", summary.Rejected).
		Int("unavailable", summary.Unavailable).
		Dur("duration", summary.Duration).
		Msg("scan complete")

	return summary, nil
}

// evaluateAll fans the gate pipeline out over a bounded worker pool.
// Symbols are independent, so ordering between workers does not matter;
// results land indexed so output is deterministic regardless of timing.
func (s *Scanner) evaluateAll(ctx context.Context, symbols []string) []gates.Result {
	results := make([]gates.Result, len(symbols))
	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup

	for i, symbol := range symbols {
		wg.Add(1)
		go func(idx int, sym string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = gates.Result{Symbol: sym, Outcome: gates.Unavailable, Cause: ctx.Err()}
				return
			}

			results[idx] = s.evaluator.Evaluate(ctx, sym)
		}(i, symbol)
	}

	wg.Wait()
	return results
}
