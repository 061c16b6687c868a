package catalyst

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nearboard/nearboard/internal/provider"
)

func headlines(now time.Time, titles ...string) []provider.Headline {
	out := make([]provider.Headline, 0, len(titles))
	for _, t := range titles {
		out = append(out, provider.Headline{Title: t, PublishedAt: now.Add(-24 * time.Hour)})
	}
	return out
}

func TestClassify_RealCatalyst(t *testing.T) {
	c := NewKeywordClassifier(14)
	now := time.Now()

	tests := []struct {
		name  string
		title string
	}{
		{"earnings", "ACME reports Q3 earnings beat"},
		{"merger", "ACME agrees to merger with BigCo"},
		{"buyback", "ACME announces $50M buyback program"},
		{"13d", "Investor files 13D on ACME"},
		{"partnership", "ACME signs partnership with MegaCorp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(headlines(now, tt.title), now)
			assert.Equal(t, Real, result.Kind)
			assert.NotEmpty(t, result.Note)
		})
	}
}

func TestClassify_SpeculativeCatalyst(t *testing.T) {
	c := NewKeywordClassifier(14)
	now := time.Now()

	result := c.Classify(headlines(now, "ACME initiates strategic review of assets"), now)
	assert.Equal(t, Speculative, result.Kind)
	assert.Equal(t, "strategic review", result.Note)
}

func TestClassify_RealBeatsSpeculative(t *testing.T) {
	c := NewKeywordClassifier(14)
	now := time.Now()

	// Both keyword sets present: Real wins regardless of headline order.
	result := c.Classify(headlines(now,
		"ACME explores options for its pipeline",
		"ACME to be acquired in all-cash acquisition",
	), now)
	assert.Equal(t, Real, result.Kind)
}

func TestClassify_NoMatch(t *testing.T) {
	c := NewKeywordClassifier(14)
	now := time.Now()

	result := c.Classify(headlines(now, "ACME opens new office"), now)
	assert.Equal(t, None, result.Kind)
	assert.Empty(t, result.Note)
}

func TestClassify_NoHeadlines(t *testing.T) {
	c := NewKeywordClassifier(14)

	result := c.Classify(nil, time.Now())
	assert.Equal(t, None, result.Kind)
}

func TestClassify_LookbackWindow(t *testing.T) {
	c := NewKeywordClassifier(14)
	now := time.Now()

	old := []provider.Headline{{
		Title:       "ACME earnings beat expectations",
		PublishedAt: now.Add(-20 * 24 * time.Hour),
	}}
	result := c.Classify(old, now)
	assert.Equal(t, None, result.Kind, "headlines older than the lookback window are ignored")

	fresh := []provider.Headline{{
		Title:       "ACME earnings beat expectations",
		PublishedAt: now.Add(-2 * 24 * time.Hour),
	}}
	result = c.Classify(fresh, now)
	assert.Equal(t, Real, result.Kind)
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := NewKeywordClassifier(14)
	now := time.Now()

	result := c.Classify(headlines(now, "ACME ANNOUNCES MERGER AGREEMENT"), now)
	assert.Equal(t, Real, result.Kind)
}
