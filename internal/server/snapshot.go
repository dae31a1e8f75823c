// Package server is the live development server: it serves the current
// snapshot of the site map while watchers rebuild the next one.
package server

import (
	"sync"

	"git.home.luguber.info/inful/kart/internal/pipeline"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

// SnapshotStore publishes the current snapshot. Readers get a complete
// snapshot; a swap never exposes a half-built site or map.
type SnapshotStore struct {
	mu      sync.RWMutex
	current *pipeline.Snapshot
}

// Load returns the current snapshot, or nil before the first swap.
func (s *SnapshotStore) Load() *pipeline.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Swap publishes snap and returns the previous snapshot.
func (s *SnapshotStore) Swap(snap *pipeline.Snapshot) *pipeline.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current
	s.current = snap
	return prev
}

// Resolve finds the entry serving urlPath in the current snapshot. The
// returned snapshot is the one the entry belongs to.
func (s *SnapshotStore) Resolve(urlPath string) (*pipeline.Snapshot, *sitemap.Entry, bool) {
	snap := s.Load()
	if snap == nil {
		return nil, nil, false
	}
	key, ok := snap.Index.Lookup(urlPath)
	if !ok {
		return snap, nil, false
	}
	e, ok := snap.Map.Get(key)
	return snap, e, ok
}
