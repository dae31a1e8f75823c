package pipeline

import (
	"sync"

	"git.home.luguber.info/inful/kart/internal/notify"
)

type recordingNotifier struct {
	mu         sync.Mutex
	unresolved []string
	rebuilt    []notify.RebuildEvent
}

func (r *recordingNotifier) UnresolvedURL(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unresolved = append(r.unresolved, key)
}

func (r *recordingNotifier) Rebuilt(e notify.RebuildEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuilt = append(r.rebuilt, e)
}

func (r *recordingNotifier) Close() error { return nil }
