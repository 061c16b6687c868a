// Package board holds the ranked result of the most recent completed scan.
// The board is only ever replaced wholesale by a finished scan pass; reads
// never mutate it and compute age and staleness at read time.
package board

import (
	"sync"
	"time"
)

// VWAP-relative status values.
const (
	VWAPAbove = "Above"
	VWAPBelow = "Below"
)

// Row is the per-symbol scan outcome shown on the board. Score is used
// only for ordering and is never serialized to clients.
type Row struct {
	Symbol           string  `json:"symbol"`
	TierGrade        string  `json:"tier_grade"`
	Price            float64 `json:"price"`
	Trigger          float64 `json:"trigger"`
	PercentToTrigger float64 `json:"percent_to_trigger"`
	VWAPStatus       string  `json:"vwap_status"`
	VolumeGateMet    bool    `json:"volume_gate_met"`
	Volume15m        int64   `json:"volume_15m"`
	Catalyst         string  `json:"catalyst"`
	CatalystNote     string  `json:"catalyst_note,omitempty"`
	Notes            string  `json:"notes,omitempty"`

	Score float64 `json:"-"`
}

// Snapshot is a read of the board. AgeMinutes is nil until the first scan
// completes; a board that has never been scanned is distinct from one
// scanned long ago.
type Snapshot struct {
	Rows       []Row      `json:"rows"`
	AsOf       *time.Time `json:"as_of,omitempty"`
	AgeMinutes *float64   `json:"age_minutes,omitempty"`
	Stale      bool       `json:"stale"`
}

// Cache is the lock-guarded board store.
type Cache struct {
	mu          sync.RWMutex
	rows        []Row
	committedAt time.Time
	scanned     bool
	staleAfter  time.Duration
}

// NewCache creates an empty board. Before the first commit it reads as
// zero rows, unknown age, stale.
func NewCache(staleAfter time.Duration) *Cache {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &Cache{staleAfter: staleAfter}
}

// Commit atomically replaces the board with the rows of a completed scan.
// A commit carrying a timestamp older than the current board is dropped,
// so when two scan generations race, the later-started one wins.
func (c *Cache) Commit(rows []Row, completedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scanned && completedAt.Before(c.committedAt) {
		return
	}

	copied := make([]Row, len(rows))
	copy(copied, rows)
	c.rows = copied
	c.committedAt = completedAt
	c.scanned = true
}

// Snapshot reads the board, computing age and staleness against now.
// Exactly at the staleness boundary the board is still fresh.
func (c *Cache) Snapshot(now time.Time) Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.scanned {
		return Snapshot{Rows: []Row{}, Stale: true}
	}

	age := now.Sub(c.committedAt)
	ageMinutes := age.Minutes()
	asOf := c.committedAt

	rows := make([]Row, len(c.rows))
	copy(rows, c.rows)

	return Snapshot{
		Rows:       rows,
		AsOf:       &asOf,
		AgeMinutes: &ageMinutes,
		Stale:      age > c.staleAfter,
	}
}

// Len returns the current row count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}
