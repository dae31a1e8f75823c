package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/metrics"
	"git.home.luguber.info/inful/kart/internal/server"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Port int `short:"p" help:"Port to listen on (overrides serve.port)"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if s.Port > 0 {
		cfg.Serve.Port = s.Port
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunServe(ctx, cfg)
}

// RunServe serves the site in development mode until ctx is done.
func RunServe(ctx context.Context, cfg *config.Config) error {
	cfg.Dev = true

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	var opts []server.Option
	if rt.registry != nil {
		opts = append(opts, server.WithMetricsHandler(metrics.HTTPHandler(rt.registry)))
	}
	return server.New(cfg, rt.kart, opts...).Run(ctx)
}
