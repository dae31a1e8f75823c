// Package notify publishes live-server events to NATS.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/kart/internal/config"
	ferrors "git.home.luguber.info/inful/kart/internal/foundation/errors"
	"git.home.luguber.info/inful/kart/internal/logfields"
)

// Notifier receives live-server events.
type Notifier interface {
	UnresolvedURL(key string)
	Rebuilt(e RebuildEvent)
	Close() error
}

// RebuildEvent describes a published snapshot.
type RebuildEvent struct {
	Cycle      string    `json:"cycle"`
	Snapshot   string    `json:"snapshot"`
	Entries    int       `json:"entries"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// UnresolvedEvent describes a logical key the site map could not resolve.
type UnresolvedEvent struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
}

// Noop discards every event.
type Noop struct{}

func (Noop) UnresolvedURL(string) {}
func (Noop) Rebuilt(RebuildEvent) {}
func (Noop) Close() error         { return nil }

type publishFunc func(subject string, data []byte) error

// NATSNotifier publishes JSON events to "{subject}.unresolved" and
// "{subject}.rebuilt". Publish failures are logged, never returned.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	publish publishFunc
}

// New connects to cfg.NATSURL. An empty URL returns Noop.
func New(cfg config.NotifyConfig) (Notifier, error) {
	if cfg.NATSURL == "" {
		return Noop{}, nil
	}

	conn, err := nats.Connect(cfg.NATSURL, nats.Name("kart"))
	if err != nil {
		return nil, ferrors.NetworkError("failed to connect to NATS").WithCause(err).
			WithContext("url", cfg.NATSURL).Build()
	}

	n := &NATSNotifier{conn: conn, subject: cfg.Subject, publish: conn.Publish}
	if cfg.JetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, ferrors.NetworkError("failed to create JetStream context").WithCause(err).Build()
		}
		n.publish = func(subject string, data []byte) error {
			_, err := js.PublishAsync(subject, data)
			return err
		}
	}

	slog.Info("NATS notifications enabled", logfields.URL(cfg.NATSURL), slog.String("subject", cfg.Subject),
		slog.Bool("jetstream", cfg.JetStream))
	return n, nil
}

// UnresolvedURL publishes an UnresolvedEvent.
func (n *NATSNotifier) UnresolvedURL(key string) {
	n.send(n.subject+".unresolved", UnresolvedEvent{Key: key, Timestamp: time.Now()})
}

// Rebuilt publishes a RebuildEvent.
func (n *NATSNotifier) Rebuilt(e RebuildEvent) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	n.send(n.subject+".rebuilt", e)
}

func (n *NATSNotifier) send(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal notification", slog.String("subject", subject), logfields.Error(err))
		return
	}
	if err := n.publish(subject, data); err != nil {
		slog.Warn("Failed to publish notification", slog.String("subject", subject), logfields.Error(err))
	}
}

// Close flushes pending messages and closes the connection.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.conn.FlushWithContext(ctx); err != nil {
		slog.Debug("NATS flush failed", logfields.Error(err))
	}
	n.conn.Close()
	return nil
}
