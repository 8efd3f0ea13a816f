package events

import "encoding/json"

// Event names.
const (
	// DiagnosticCompleted fires after a diagnostic succeeds.
	DiagnosticCompleted = "diagnostic.completed"
	// KeyExhausted fires when an API key reaches its usage cap.
	KeyExhausted = "apikey.exhausted"
	// UsageReset fires after a scheduled or manual usage reset.
	UsageReset = "apikey.reset"
)

// Event is a named event with a raw JSON payload.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
	// Audience is the API key the event belongs to. Empty means everyone.
	// It is never sent over the wire.
	Audience string
}

// VisibleTo reports whether a subscriber holding key may see e. Admin
// subscribers see everything.
func (e Event) VisibleTo(key string, admin bool) bool {
	return admin || e.Audience == "" || e.Audience == key
}

// DiagnosticCompletedEvent is the payload of diagnostic.completed.
// It never carries the API key.
type DiagnosticCompletedEvent struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Chemistry string          `json:"batteryType,omitempty"`
	Result    json.RawMessage `json:"result"`
	Ts        int64           `json:"ts"`
}

// KeyEvent is the payload of the apikey.* events. Key is masked.
type KeyEvent struct {
	Key   string `json:"key"`
	Usage int    `json:"usage"`
	Limit int    `json:"limit,omitempty"`
	Ts    int64  `json:"ts"`
}

// DecodeAs decodes the event payload into T. Empty payloads decode to the
// zero value.
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
