// Package eventstore journals pipeline cycles of the live server in SQLite
// and projects them into a recent-history view.
package eventstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/kart/internal/logfields"
)

const (
	cycleStatusRunning   = "running"
	cycleStatusCompleted = "completed"
	cycleStatusFailed    = "failed"
)

// CycleSummary is a read model of one pipeline cycle.
type CycleSummary struct {
	CycleID      string        `json:"cycle_id"`
	Kind         string        `json:"kind"`
	Trigger      string        `json:"trigger,omitempty"`
	Status       string        `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Duration     time.Duration `json:"duration"`
	Changes      int           `json:"changes"`
	Snapshot     string        `json:"snapshot,omitempty"`
	Entries      int           `json:"entries"`
	ErrorStage   string        `json:"error_stage,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// CycleHistoryProjection keeps the most recent finished cycles in memory,
// newest first.
type CycleHistoryProjection struct {
	mu      sync.RWMutex
	store   Store
	cycles  map[string]*CycleSummary
	history []*CycleSummary
	maxSize int
}

// NewCycleHistoryProjection creates a projection backed by store.
func NewCycleHistoryProjection(store Store, maxHistorySize int) *CycleHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &CycleHistoryProjection{
		store:   store,
		cycles:  make(map[string]*CycleSummary),
		maxSize: maxHistorySize,
	}
}

// Rebuild reloads the projection from the newest stored cycles.
func (p *CycleHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.Recent(ctx, p.maxSize)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycles = make(map[string]*CycleSummary)
	p.history = nil
	for i := range events {
		p.applyLocked(&events[i])
	}
	return nil
}

// Apply processes a single event.
func (p *CycleHistoryProjection) Apply(e *Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
}

func (p *CycleHistoryProjection) applyLocked(e *Event) {
	id := e.CycleID
	if id == "" {
		return
	}
	s, ok := p.cycles[id]
	if !ok {
		s = &CycleSummary{CycleID: id, Status: cycleStatusRunning, StartedAt: e.Timestamp}
		p.cycles[id] = s
	}

	switch e.Type {
	case TypeCycleStarted:
		var payload CycleStartedPayload
		if e.decode(&payload) {
			s.Kind, s.Trigger = payload.Kind, payload.Trigger
		}
		s.StartedAt = e.Timestamp
	case TypeFileChanged:
		s.Changes++
	case TypeCycleCompleted:
		var payload CycleCompletedPayload
		if e.decode(&payload) {
			s.Snapshot, s.Entries = payload.Snapshot, payload.Entries
			s.Duration = time.Duration(payload.DurationMS) * time.Millisecond
		}
		p.finishLocked(s, e.Timestamp, cycleStatusCompleted)
	case TypeCycleFailed:
		var payload CycleFailedPayload
		if e.decode(&payload) {
			s.ErrorStage, s.ErrorMessage = payload.Stage, payload.Error
			s.Duration = time.Duration(payload.DurationMS) * time.Millisecond
		}
		p.finishLocked(s, e.Timestamp, cycleStatusFailed)
	}
}

func (p *CycleHistoryProjection) finishLocked(s *CycleSummary, at time.Time, status string) {
	s.CompletedAt = &at
	s.Status = status
	delete(p.cycles, s.CycleID)
	p.history = append([]*CycleSummary{s}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
}

// History returns copies of the finished cycles, newest first.
func (p *CycleHistoryProjection) History() []CycleSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]CycleSummary, 0, len(p.history))
	for _, s := range p.history {
		out = append(out, *s)
	}
	return out
}

// Journal appends events to a store and keeps a projection current.
// Failures are logged; the journal never fails a cycle.
type Journal struct {
	store      Store
	projection *CycleHistoryProjection
}

// NewJournal wraps store.
func NewJournal(store Store, historySize int) *Journal {
	return &Journal{store: store, projection: NewCycleHistoryProjection(store, historySize)}
}

// Record stores e and applies it to the projection.
func (j *Journal) Record(ctx context.Context, e *Event) {
	if j == nil {
		return
	}
	if err := j.store.Append(ctx, e); err != nil {
		slog.Warn("Failed to append journal event", logfields.Cycle(e.CycleID), logfields.Error(err))
	}
	j.projection.Apply(e)
}

// Compact drops stored cycles older than the projection keeps.
func (j *Journal) Compact(ctx context.Context) error {
	if j == nil {
		return nil
	}
	n, err := j.store.Prune(ctx, j.projection.maxSize)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Debug("Compacted journal", slog.Int64("events", n))
	}
	return nil
}

// Projection returns the history projection.
func (j *Journal) Projection() *CycleHistoryProjection { return j.projection }

// Close closes the underlying store.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.store.Close()
}
