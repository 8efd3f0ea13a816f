// Package history stores completed diagnostics per API key.
package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultListLimit is the number of entries returned when no limit is given.
	DefaultListLimit = 100
	// DefaultRetention is how many entries a store keeps per key.
	DefaultRetention = 1000
)

// Entry is one completed diagnostic.
type Entry struct {
	ID        string          `json:"id"`
	APIKey    string          `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Chemistry string          `json:"batteryType,omitempty"`
	Result    json.RawMessage `json:"result"`
}

// NewEntry builds an entry stamped now with a fresh ID.
func NewEntry(apiKey, kind, chemistry string, result any) (Entry, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ID:        uuid.NewString(),
		APIKey:    apiKey,
		Timestamp: time.Now().UTC(),
		Type:      kind,
		Chemistry: chemistry,
		Result:    b,
	}, nil
}

// Store persists entries. List returns the newest entries first.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, apiKey string, limit int) ([]Entry, error)
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
