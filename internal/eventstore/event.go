package eventstore

import (
	"encoding/json"
	"time"
)

// Event is one entry of the rebuild journal. ID is assigned by the store.
type Event struct {
	ID        int64             `json:"id"`
	CycleID   string            `json:"cycle_id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// decode unmarshals the payload into v and reports success.
func (e *Event) decode(v any) bool {
	return len(e.Payload) > 0 && json.Unmarshal(e.Payload, v) == nil
}
