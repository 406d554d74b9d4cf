// Package models defines the domain types for Tally.
package models

import "fmt"

// ScoreValue is a tri-state habit completion level.
type ScoreValue float64

// Allowed score levels.
const (
	ScoreNone    ScoreValue = 0
	ScorePartial ScoreValue = 0.5
	ScoreFull    ScoreValue = 1.0
)

// Valid reports whether v is one of the three allowed levels.
func (v ScoreValue) Valid() bool {
	return v == ScoreNone || v == ScorePartial || v == ScoreFull
}

// String returns the display symbol for the level.
func (v ScoreValue) String() string {
	switch v {
	case ScorePartial:
		return "◑"
	case ScoreFull:
		return "●"
	default:
		return "○"
	}
}

// ParseScore converts a raw number into a ScoreValue, rejecting anything else.
func ParseScore(f float64) (ScoreValue, error) {
	v := ScoreValue(f)
	if !v.Valid() {
		return 0, fmt.Errorf("score %v not in {0, 0.5, 1}", f)
	}
	return v, nil
}

// Scores maps metric ids to their level. Keys are sparse: an absent key
// means the metric has not been scored for that day.
type Scores map[string]ScoreValue

// Clone returns an independent copy; nil stays an empty map.
func (s Scores) Clone() Scores {
	out := make(Scores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Lookup returns the level for metricID and whether it was explicitly set.
func (s Scores) Lookup(metricID string) (ScoreValue, bool) {
	v, ok := s[metricID]
	return v, ok
}

// NextScore advances a cell along the tap cycle none → partial → full → none.
// An unscored cell advances exactly like an explicit zero.
func NextScore(current ScoreValue, scored bool) ScoreValue {
	if !scored || current == ScoreNone {
		return ScorePartial
	}
	if current == ScorePartial {
		return ScoreFull
	}
	return ScoreNone
}

// DailyEntry is one calendar day of tracking data. Date is the primary key
// and never changes once the row exists.
type DailyEntry struct {
	Date       string `json:"date"`
	Notes      string `json:"notes"`
	Scores     Scores `json:"scores"`
	IsArchived bool   `json:"is_archived"`
}

// Clone returns a deep copy of e.
func (e DailyEntry) Clone() DailyEntry {
	e.Scores = e.Scores.Clone()
	return e
}

// PeriodLabel renders the span of an ascending entry list for display.
func PeriodLabel(entries []DailyEntry) string {
	switch len(entries) {
	case 0:
		return "No entries"
	case 1:
		return entries[0].Date
	default:
		return entries[0].Date + "  →  " + entries[len(entries)-1].Date
	}
}
