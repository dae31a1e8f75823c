package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/logfields"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output     string `short:"o" help:"Output directory (overrides output.directory)"`
	Production bool   `help:"Keep the configured base URL and exclude drafts"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunBuild(ctx, cfg, b.Output, b.Production)
}

// RunBuild performs one full build cycle into output, or into the configured
// output directory when output is empty.
func RunBuild(ctx context.Context, cfg *config.Config, output string, production bool) error {
	cfg.Dev = !production
	dest := output
	if dest == "" {
		dest = cfg.Path(cfg.Output.Directory)
	}

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			slog.Warn("Failed to close runtime", logfields.Error(err))
		}
	}()

	slog.Info("Starting build", logfields.Path(dest), slog.Bool("production", production))
	start := time.Now()
	snap, err := rt.kart.Build(ctx, dest)
	if err != nil {
		return err
	}
	slog.Info("Build complete",
		logfields.Path(dest),
		logfields.Snapshot(snap.Hash),
		slog.Int("entries", snap.Map.Len()),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	return nil
}
