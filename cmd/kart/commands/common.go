// Package commands holds the kong command implementations of the kart CLI.
package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/eventstore"
	"git.home.luguber.info/inful/kart/internal/logfields"
	"git.home.luguber.info/inful/kart/internal/metrics"
	"git.home.luguber.info/inful/kart/internal/notify"
	"git.home.luguber.info/inful/kart/internal/pipeline"
)

// historySize bounds the cycle history kept in memory.
const historySize = 50

// Global is shared state bound into every command.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"kart.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build BuildCmd `cmd:"" help:"Build the site into the output directory"`
	Serve ServeCmd `cmd:"" help:"Serve the site with live rebuilds"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// runtime is a kart with its optional side channels opened.
type runtime struct {
	kart     *pipeline.Kart
	registry *prom.Registry
	journal  *eventstore.Journal
	notifier notify.Notifier
}

// newRuntime assembles the pipeline for cfg together with the metrics
// registry, SQLite journal and NATS notifier the configuration enables.
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{}
	var opts []pipeline.Option

	if cfg.Metrics.Enabled {
		rt.registry = metrics.NewRegistry()
		opts = append(opts, pipeline.WithRecorder(metrics.NewPrometheusRecorder(rt.registry)))
	}

	if cfg.Events.DB != "" {
		store, err := eventstore.NewSQLiteStore(cfg.Path(cfg.Events.DB))
		if err != nil {
			return nil, err
		}
		rt.journal = eventstore.NewJournal(store, historySize)
		if err := rt.journal.Compact(ctx); err != nil {
			slog.Warn("Failed to compact cycle journal", logfields.Error(err))
		}
		if err := rt.journal.Projection().Rebuild(ctx); err != nil {
			slog.Warn("Failed to replay cycle history", logfields.Error(err))
		}
		opts = append(opts, pipeline.WithJournal(rt.journal))
	}

	n, err := notify.New(cfg.Notify)
	if err != nil {
		_ = rt.journal.Close()
		return nil, err
	}
	rt.notifier = n
	opts = append(opts, pipeline.WithNotifier(n))

	rt.kart = pipeline.FromConfig(cfg, opts...)
	return rt, nil
}

// Close releases the journal and the notifier connection.
func (rt *runtime) Close() error {
	var errs []error
	if rt.notifier != nil {
		errs = append(errs, rt.notifier.Close())
	}
	errs = append(errs, rt.journal.Close())
	return errors.Join(errs...)
}
