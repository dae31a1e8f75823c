package eventstore

import (
	"encoding/json"
	"time"
)

// Journal event types.
const (
	TypeCycleStarted   = "CycleStarted"
	TypeCycleCompleted = "CycleCompleted"
	TypeCycleFailed    = "CycleFailed"
	TypeFileChanged    = "FileChanged"
)

// CycleStartedPayload is the payload of TypeCycleStarted.
type CycleStartedPayload struct {
	Kind    string `json:"kind"`              // "build" or "rebuild"
	Trigger string `json:"trigger,omitempty"` // changed path, "resync" or empty
}

// CycleCompletedPayload is the payload of TypeCycleCompleted.
type CycleCompletedPayload struct {
	Snapshot   string `json:"snapshot"`
	Entries    int    `json:"entries"`
	DurationMS int64  `json:"duration_ms"`
}

// CycleFailedPayload is the payload of TypeCycleFailed.
type CycleFailedPayload struct {
	Stage      string `json:"stage"`
	Error      string `json:"error"`
	DurationMS int64  `json:"duration_ms"`
}

// FileChangedPayload is the payload of TypeFileChanged.
type FileChangedPayload struct {
	Path string `json:"path"`
	Op   string `json:"op"`
}

// newEvent marshals one of the payload structs above; they only hold strings
// and integers, so marshaling cannot fail.
func newEvent(cycleID, eventType string, v any) *Event {
	payload, _ := json.Marshal(v)
	return &Event{
		CycleID:   cycleID,
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// NewCycleStarted creates a TypeCycleStarted event.
func NewCycleStarted(cycleID, kind, trigger string) *Event {
	return newEvent(cycleID, TypeCycleStarted, CycleStartedPayload{Kind: kind, Trigger: trigger})
}

// NewCycleCompleted creates a TypeCycleCompleted event.
func NewCycleCompleted(cycleID, snapshot string, entries int, d time.Duration) *Event {
	return newEvent(cycleID, TypeCycleCompleted, CycleCompletedPayload{Snapshot: snapshot, Entries: entries, DurationMS: d.Milliseconds()})
}

// NewCycleFailed creates a TypeCycleFailed event.
func NewCycleFailed(cycleID, stage string, cause error, d time.Duration) *Event {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return newEvent(cycleID, TypeCycleFailed, CycleFailedPayload{Stage: stage, Error: msg, DurationMS: d.Milliseconds()})
}

// NewFileChanged creates a TypeFileChanged event.
func NewFileChanged(cycleID, path, op string) *Event {
	return newEvent(cycleID, TypeFileChanged, FileChangedPayload{Path: path, Op: op})
}
