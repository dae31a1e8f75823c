package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/eventstore"
	ferrors "git.home.luguber.info/inful/kart/internal/foundation/errors"
	"git.home.luguber.info/inful/kart/internal/logfields"
	"git.home.luguber.info/inful/kart/internal/pipeline"
	"git.home.luguber.info/inful/kart/internal/renderer"
	smw "git.home.luguber.info/inful/kart/internal/server/middleware"
	"git.home.luguber.info/inful/kart/internal/watch"
)

// HistoryPath serves the recent cycle history as JSON.
const HistoryPath = "/_kart/history"

// Server serves the current snapshot and rebuilds it when sources change.
type Server struct {
	cfg       *config.Config
	kart      *pipeline.Kart
	store     SnapshotStore
	hub       *LiveReloadHub
	adapter   *ferrors.HTTPErrorAdapter
	renderers map[string]renderer.Renderer
	metrics   http.Handler

	watcher    *watch.Service
	resync     *Resync
	httpServer *http.Server
	listener   net.Listener

	mu       sync.Mutex
	queue    []pipeline.Change
	wake     chan struct{}
	rebuilds atomic.Uint64
	// templateGen changes the live reload token when only templates changed.
	templateGen int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts h at the configured metrics path.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// New creates a server for k. Start performs the initial build.
func New(cfg *config.Config, k *pipeline.Kart, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		kart:      k,
		hub:       NewLiveReloadHub(),
		adapter:   ferrors.NewHTTPErrorAdapter(slog.Default()),
		renderers: map[string]renderer.Renderer{},
		wake:      make(chan struct{}, 1),
	}
	for _, r := range k.Renderers {
		s.renderers[r.Name()] = r
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.cfg.Serve.LiveReloadEnabled() {
		mux.Handle(LiveReloadPath, s.hub)
		mux.HandleFunc(LiveReloadScriptPath, ServeScript)
	}
	if s.cfg.Metrics.Enabled && s.metrics != nil {
		mux.Handle(s.cfg.Metrics.Path, s.metrics)
	}
	mux.HandleFunc(HistoryPath, s.serveHistory)
	mux.HandleFunc("/", s.serveSite)
	return smw.Chain(slog.Default(), s.adapter, s.kart.Recorder())(mux)
}

// Snapshot returns the snapshot currently served.
func (s *Server) Snapshot() *pipeline.Snapshot { return s.store.Load() }

// Rebuilds returns the number of finished rebuild attempts.
func (s *Server) Rebuilds() uint64 { return s.rebuilds.Load() }

// Addr returns the bound listen address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) serveSite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.adapter.WriteErrorResponse(w, r, ferrors.ValidationError("method not allowed").
			WithContext("method", r.Method).Build())
		return
	}
	snap, e, ok := s.store.Resolve(r.URL.Path)
	if !ok {
		s.adapter.WriteErrorResponse(w, r, ferrors.NotFoundError("page not found").
			WithContext("path", r.URL.Path).Build())
		return
	}
	rend, ok := s.renderers[e.Renderer]
	if !ok {
		s.adapter.WriteErrorResponse(w, r, ferrors.RenderError("no renderer for entry").
			WithContext("key", e.Key).WithContext("renderer", e.Renderer).Build())
		return
	}

	buf := newHTMLBuffer()
	if err := rend.Serve(buf, r, e, s.cfg, snap.Site, snap.Map); err != nil {
		s.adapter.WriteErrorResponse(w, r, err)
		return
	}
	buf.flush(w, s.cfg.Serve.LiveReloadEnabled())
}

func (s *Server) serveHistory(w http.ResponseWriter, _ *http.Request) {
	history := []eventstore.CycleSummary{}
	if j := s.kart.Journal(); j != nil {
		history = j.Projection().History()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(history)
}

// Start builds the initial snapshot, starts watching and begins serving.
// A failing initial build or an unavailable address is fatal.
func (s *Server) Start(ctx context.Context) error {
	snap, err := s.kart.Load(ctx)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "initial build failed").Fatal().Build()
	}
	s.publish(snap)

	if err := s.startRenderers(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if err := s.startWatching(runCtx); err != nil {
		cancel()
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.rebuildLoop(runCtx)
	}()

	if d := s.cfg.Serve.ResyncInterval; d > 0 {
		rs, err := NewResync(d, func() { s.fullResync(runCtx) })
		if err != nil {
			slog.Warn("Periodic resync disabled", logfields.Error(err))
		} else {
			s.resync = rs
			rs.Start()
		}
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Serve.Addr())
	if err != nil {
		_ = s.Stop(context.Background())
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to bind").Fatal().
			WithContext("addr", s.cfg.Serve.Addr()).Build()
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", logfields.Error(err))
		}
	}()

	slog.Info("Serving site", logfields.URL(fmt.Sprintf("http://%s/", ln.Addr())),
		slog.Int("entries", snap.Map.Len()), logfields.Snapshot(snap.Hash))
	return nil
}

func (s *Server) startRenderers() error {
	for name, r := range s.renderers {
		if l, ok := r.(renderer.Lifecycle); ok {
			if err := l.StartServing(s.cfg); err != nil {
				return ferrors.WrapError(err, ferrors.CategoryRender, "renderer failed to start").
					Fatal().WithContext("renderer", name).Build()
			}
		}
	}
	return nil
}

func (s *Server) templatesChanged(changes []pipeline.Change) bool {
	dir, err := filepath.Abs(s.cfg.Path(s.cfg.Templates.Dir))
	if err != nil {
		return false
	}
	for _, c := range changes {
		if strings.HasPrefix(c.Path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (s *Server) startWatching(ctx context.Context) error {
	w, err := watch.New(watch.Options{
		Root:          s.cfg.Content.Root,
		IgnoreFile:    s.cfg.Serve.IgnoreFile,
		IgnoreDirs:    []string{s.cfg.Path(s.cfg.Output.Directory)},
		AfterDispatch: s.onEvent,
	})
	if err != nil {
		return err
	}
	s.watcher = w
	for _, m := range s.kart.Miners {
		if err := m.StartWatching(s.cfg, w); err != nil {
			slog.Warn("Miner cannot watch its source", logfields.Miner(m.Name()), logfields.Error(err))
		}
	}
	// Templates are read by renderers, not miners; a change only needs
	// the rebuild queued by AfterDispatch.
	if err := w.Watch(s.cfg.Path(s.cfg.Templates.Dir), true, func(watch.Event) {}); err != nil {
		slog.Warn("Cannot watch templates", logfields.Error(err))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Watch service stopped", logfields.Error(err))
		}
	}()
	return nil
}

func (s *Server) onEvent(e watch.Event) {
	s.RequestRebuild(pipeline.Change{Path: e.Path, Op: e.Op.String()})
}

// RequestRebuild queues a rebuild for change. With coalescing enabled all
// queued changes are consumed by a single rebuild.
func (s *Server) RequestRebuild(change pipeline.Change) {
	s.mu.Lock()
	s.queue = append(s.queue, change)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Server) next() ([]pipeline.Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	n := 1
	if s.cfg.Serve.CoalesceEnabled() {
		n = len(s.queue)
	}
	batch := s.queue[:n:n]
	s.queue = s.queue[n:]
	return batch, true
}

func (s *Server) rebuildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}
		for {
			batch, ok := s.next()
			if !ok {
				break
			}
			s.rebuild(ctx, batch)
		}
	}
}

func (s *Server) rebuild(ctx context.Context, batch []pipeline.Change) {
	defer s.rebuilds.Add(1)

	last := batch[len(batch)-1]
	trigger := last.Path
	if trigger == "" {
		trigger = last.Op
	}
	changes := make([]pipeline.Change, 0, len(batch))
	for _, c := range batch {
		if c.Path != "" {
			changes = append(changes, c)
		}
	}

	// A broken template keeps the previously parsed set; content changes
	// in the same batch are still published.
	if s.templatesChanged(changes) {
		if err := s.startRenderers(); err != nil {
			slog.Error("Template reload failed, keeping previous templates", logfields.Error(err))
		} else {
			s.templateGen++
		}
	}

	snap, err := s.kart.Refresh(ctx, trigger, changes...)
	if err != nil {
		slog.Error("Rebuild failed, keeping previous snapshot", logfields.Path(trigger), logfields.Error(err))
		return
	}
	s.publish(snap)
}

func (s *Server) publish(snap *pipeline.Snapshot) {
	prev := s.store.Swap(snap)
	token := snap.Hash
	if s.templateGen > 0 {
		token = fmt.Sprintf("%s.%d", snap.Hash, s.templateGen)
	}
	s.hub.Broadcast(token)
	if prev != nil {
		slog.Info("Snapshot swapped", logfields.Snapshot(snap.Hash),
			slog.String("previous", prev.Hash), slog.Int("entries", snap.Map.Len()))
	}
}

func (s *Server) fullResync(ctx context.Context) {
	if err := s.kart.ReadData(ctx); err != nil {
		slog.Warn("Resync scan failed", logfields.Error(err))
		return
	}
	s.RequestRebuild(pipeline.Change{Op: "resync"})
}

// Stop shuts everything down: watches, scheduler, renderer lifecycles,
// live reload clients and the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error

	if s.watcher != nil {
		for _, m := range s.kart.Miners {
			if err := m.StopWatching(s.cfg); err != nil {
				errs = append(errs, fmt.Errorf("stop watching %s: %w", m.Name(), err))
			}
		}
	}
	if s.resync != nil {
		if err := s.resync.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("resync shutdown: %w", err))
		}
	}
	for name, r := range s.renderers {
		if l, ok := r.(renderer.Lifecycle); ok {
			if err := l.StopServing(s.cfg); err != nil {
				errs = append(errs, fmt.Errorf("renderer %s: %w", name, err))
			}
		}
	}
	s.hub.Shutdown()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("watch service: %w", err))
		}
	}
	s.wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	slog.Info("Server stopped")
	return nil
}

// Run starts the server and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}
