package eventstore

import "context"

// Store persists journal events.
type Store interface {
	// Append stores e and sets its ID.
	Append(ctx context.Context, e *Event) error
	// Cycle returns the events of one cycle in append order.
	Cycle(ctx context.Context, cycleID string) ([]Event, error)
	// Recent returns the events of the newest cycles in append order.
	Recent(ctx context.Context, cycles int) ([]Event, error)
	// Prune deletes every cycle but the newest keep and returns the number
	// of removed events.
	Prune(ctx context.Context, keep int) (int64, error)
	Close() error
}
