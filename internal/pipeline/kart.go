// Package pipeline runs the stages of a build cycle: miners, content
// modifiers, mappers, map modifiers and renderers.
package pipeline

import (
	"context"
	"errors"
	"time"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/eventstore"
	"git.home.luguber.info/inful/kart/internal/logfields"
	"git.home.luguber.info/inful/kart/internal/mapper"
	"git.home.luguber.info/inful/kart/internal/metrics"
	"git.home.luguber.info/inful/kart/internal/miner"
	"git.home.luguber.info/inful/kart/internal/modifier"
	"git.home.luguber.info/inful/kart/internal/notify"
	"git.home.luguber.info/inful/kart/internal/observability"
	"git.home.luguber.info/inful/kart/internal/renderer"
)

// Stage names used in logs, metrics and the journal.
const (
	StageMiners           = "miners"
	StageContentModifiers = "content_modifiers"
	StageMappers          = "mappers"
	StageMapModifiers     = "map_modifiers"
	StageRenderers        = "renderers"
)

// Kart holds the stage components of a site. Stages run in slice order.
type Kart struct {
	Config           *config.Config
	Miners           []miner.Miner
	ContentModifiers []modifier.ContentModifier
	Mappers          []mapper.Mapper
	MapModifiers     []modifier.MapModifier
	Renderers        []renderer.Renderer

	recorder metrics.Recorder
	journal  *eventstore.Journal
	notifier notify.Notifier
}

// Option configures a Kart.
type Option func(*Kart)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(k *Kart) {
		if r != nil {
			k.recorder = r
		}
	}
}

// WithJournal records cycle events in j.
func WithJournal(j *eventstore.Journal) Option {
	return func(k *Kart) { k.journal = j }
}

// WithNotifier publishes unresolved references and rebuilds through n.
func WithNotifier(n notify.Notifier) Option {
	return func(k *Kart) {
		if n != nil {
			k.notifier = n
		}
	}
}

// New creates a Kart with no components.
func New(cfg *config.Config, opts ...Option) *Kart {
	k := &Kart{
		Config:   cfg,
		recorder: metrics.NoopRecorder{},
		notifier: notify.Noop{},
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Recorder returns the metrics recorder.
func (k *Kart) Recorder() metrics.Recorder { return k.recorder }

// Journal returns the cycle journal, or nil.
func (k *Kart) Journal() *eventstore.Journal { return k.journal }

// Notifier returns the event notifier.
func (k *Kart) Notifier() notify.Notifier { return k.notifier }

// StageError reports the stage a cycle failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func (k *Kart) runStage(ctx context.Context, stage string, fn func(context.Context) error) error {
	ctx = observability.WithStage(ctx, stage)
	if err := ctx.Err(); err != nil {
		k.recorder.IncStageResult(stage, metrics.ResultCanceled)
		return &StageError{Stage: stage, Err: err}
	}

	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)
	k.recorder.ObserveStageDuration(stage, d)

	switch {
	case err == nil:
		k.recorder.IncStageResult(stage, metrics.ResultSuccess)
		observability.DebugContext(ctx, "Stage completed", logfields.DurationMS(float64(d.Milliseconds())))
		return nil
	case errors.Is(err, context.Canceled):
		k.recorder.IncStageResult(stage, metrics.ResultCanceled)
	default:
		k.recorder.IncStageResult(stage, metrics.ResultFatal)
	}
	observability.ErrorContext(ctx, "Stage failed", logfields.Error(err))
	return &StageError{Stage: stage, Err: err}
}
