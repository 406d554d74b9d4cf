// Package export sends the active period to the user's webhook and commits
// the archive transition once the remote side has accepted it.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/starford/tally/internal/models"
)

// Payload is the wire body POSTed to the export URL.
type Payload struct {
	PeriodEndDate string         `json:"period_end_date"`
	Entries       []PayloadEntry `json:"entries"`
}

// PayloadEntry is a daily entry without its archive flag.
type PayloadEntry struct {
	Date   string        `json:"date"`
	Notes  string        `json:"notes"`
	Scores models.Scores `json:"scores"`
}

// BuildPayload converts active entries into the export body, keeping input order.
func BuildPayload(entries []models.DailyEntry, periodEndDate string) Payload {
	out := Payload{
		PeriodEndDate: periodEndDate,
		Entries:       make([]PayloadEntry, len(entries)),
	}
	for i, e := range entries {
		scores := e.Scores.Clone()
		out.Entries[i] = PayloadEntry{Date: e.Date, Notes: e.Notes, Scores: scores}
	}
	return out
}

// encode marshals the payload and returns it with its hex SHA-256 digest.
// Map keys are sorted by encoding/json, so equal payloads hash equally.
func (p Payload) encode() ([]byte, string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, "", fmt.Errorf("export: encode payload: %w", err)
	}
	h := sha256.Sum256(body)
	return body, hex.EncodeToString(h[:]), nil
}
