// Package rank scores surviving rows and totally orders the board.
package rank

import (
	"sort"

	"github.com/nearboard/nearboard/internal/board"
	"github.com/nearboard/nearboard/internal/catalyst"
)

// Scoring weights. A Real catalyst dominates; a None catalyst contributes
// nothing (some scanner variants gave None a base of 2, which would make
// it indistinguishable from Speculative, so it scores zero here).
const (
	realCatalystWeight = 5.0
	specCatalystWeight = 2.0
	volumeGateBonus    = 3.0
	vwapAboveBonus     = 2.0
)

// Score computes the desirability score for one row. Percent-to-trigger
// is subtracted: the closer a symbol sits to its trigger, the better.
func Score(row board.Row) float64 {
	score := 0.0

	switch catalyst.Kind(row.Catalyst) {
	case catalyst.Real:
		score += realCatalystWeight
	case catalyst.Speculative:
		score += specCatalystWeight
	}

	if row.VolumeGateMet {
		score += volumeGateBonus
	}
	if row.VWAPStatus == board.VWAPAbove {
		score += vwapAboveBonus
	}

	return score - row.PercentToTrigger
}

// Rank orders rows in place: descending by score, ties broken by ascending
// percent-to-trigger, then ascending symbol so results are reproducible.
func Rank(rows []board.Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		if rows[i].PercentToTrigger != rows[j].PercentToTrigger {
			return rows[i].PercentToTrigger < rows[j].PercentToTrigger
		}
		return rows[i].Symbol < rows[j].Symbol
	})
}
