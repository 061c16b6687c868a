// Package catalyst classifies recent news flow into catalyst kinds. The
// classification is a keyword heuristic over headline text, kept behind an
// interface so it can be swapped or tested independently of the pipeline.
package catalyst

import (
	"strings"
	"time"

	"github.com/nearboard/nearboard/internal/provider"
)

// Kind is the catalyst classification for a symbol.
type Kind string

const (
	Real        Kind = "Real"        // institutional-grade news: earnings, M&A, buybacks
	Speculative Kind = "Speculative" // weak news: strategic reviews, "exploring options"
	None        Kind = "None"
)

// Result is a classification with an optional human-readable note.
// Results are recomputed per scan and never persisted.
type Result struct {
	Kind Kind
	Note string
}

// Classifier turns recent headlines into a catalyst classification.
type Classifier interface {
	Classify(headlines []provider.Headline, now time.Time) Result
}

// realKeywords and speculativeKeywords are checked in priority order: any
// Real match wins over any Speculative match.
var (
	realKeywords = []string{
		"earnings", "guidance", "m&a", "acquisition", "merger", "takeover",
		"13d", "13g", "insider", "buyback", "repurchase", "contract",
		"partnership", "deal",
	}
	speculativeKeywords = []string{
		"strategic review", "pipeline", "explore options",
	}
)

// KeywordClassifier matches headline text against fixed keyword sets
// within a lookback window.
type KeywordClassifier struct {
	real     []string
	spec     []string
	lookback time.Duration
}

// NewKeywordClassifier creates a classifier with the default keyword sets
// and a lookback window of lookbackDays.
func NewKeywordClassifier(lookbackDays int) *KeywordClassifier {
	if lookbackDays <= 0 {
		lookbackDays = 14
	}
	return &KeywordClassifier{
		real:     realKeywords,
		spec:     speculativeKeywords,
		lookback: time.Duration(lookbackDays) * 24 * time.Hour,
	}
}

// Classify scans headlines newer than the lookback window. Any Real match
// beats any Speculative match; no match is None. The note carries the
// matched keyword.
func (c *KeywordClassifier) Classify(headlines []provider.Headline, now time.Time) Result {
	cutoff := now.Add(-c.lookback)

	var blob strings.Builder
	for _, h := range headlines {
		if !h.PublishedAt.IsZero() && h.PublishedAt.Before(cutoff) {
			continue
		}
		blob.WriteString(strings.ToLower(h.Title))
		blob.WriteString(" ")
	}
	text := blob.String()
	if text == "" {
		return Result{Kind: None}
	}

	for _, kw := range c.real {
		if strings.Contains(text, kw) {
			return Result{Kind: Real, Note: kw}
		}
	}
	for _, kw := range c.spec {
		if strings.Contains(text, kw) {
			return Result{Kind: Speculative, Note: kw}
		}
	}
	return Result{Kind: None}
}
