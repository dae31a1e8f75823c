// Package renderer turns site map entries into output files and HTTP
// responses. Each renderer handles only the entries tagged with its name.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"git.home.luguber.info/inful/kart/internal/config"
	ferrors "git.home.luguber.info/inful/kart/internal/foundation/errors"
	"git.home.luguber.info/inful/kart/internal/logfields"
	"git.home.luguber.info/inful/kart/internal/metrics"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

// Renderer writes its entries to a build location and serves them live.
type Renderer interface {
	Name() string
	Render(ctx context.Context, cfg *config.Config, s *site.Site, m *sitemap.Map, dest string) error
	Serve(w http.ResponseWriter, r *http.Request, e *sitemap.Entry, cfg *config.Config, s *site.Site, m *sitemap.Map) error
}

// Lifecycle is implemented by renderers that hold resources while the
// live server runs.
type Lifecycle interface {
	StartServing(cfg *config.Config) error
	StopServing(cfg *config.Config) error
}

// SingleRenderer produces the bytes of one entry.
type SingleRenderer interface {
	RenderSingle(e *sitemap.Entry, cfg *config.Config, s *site.Site, m *sitemap.Map) ([]byte, error)
	ContentType() string
}

// preparer is implemented by single renderers that load shared state
// (templates). Render prepares on every build; the live server prepares
// through StartServing and keeps that state until it asks for a reload.
type preparer interface {
	Prepare(cfg *config.Config) error
}

// FileRenderer writes one file per entry.
type FileRenderer struct {
	Tag      string
	Single   SingleRenderer
	Workers  int
	Recorder metrics.Recorder
}

// Name returns the renderer tag.
func (f *FileRenderer) Name() string { return f.Tag }

func (f *FileRenderer) recorder() metrics.Recorder {
	if f.Recorder == nil {
		return metrics.NoopRecorder{}
	}
	return f.Recorder
}

// Render writes every entry tagged with f.Tag below dest. A failing entry
// is logged and skipped; all failures are returned joined.
func (f *FileRenderer) Render(ctx context.Context, cfg *config.Config, s *site.Site, m *sitemap.Map, dest string) error {
	if p, ok := f.Single.(preparer); ok {
		if err := p.Prepare(cfg); err != nil {
			return err
		}
	}

	var entries []*sitemap.Entry
	for _, e := range m.Entries() {
		if e.Renderer == f.Tag {
			entries = append(entries, e)
		}
	}

	workers := f.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(entries) {
		workers = len(entries)
	}

	jobs := make(chan *sitemap.Entry)
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				if err := f.renderEntry(e, cfg, s, m, dest); err != nil {
					slog.Error("Failed to render entry", logfields.Key(e.Key), logfields.URL(e.URL),
						logfields.Renderer(f.Tag), logfields.Error(err))
					f.recorder().IncRenderError(f.Tag)
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}
		}()
	}

feed:
	for _, e := range entries {
		select {
		case jobs <- e:
		case <-ctx.Done():
			mu.Lock()
			errs = append(errs, ctx.Err())
			mu.Unlock()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return errors.Join(errs...)
}

func (f *FileRenderer) renderEntry(e *sitemap.Entry, cfg *config.Config, s *site.Site, m *sitemap.Map, dest string) error {
	out, err := f.Single.RenderSingle(e, cfg, s, m)
	if err != nil {
		return err
	}
	target, err := OutputPath(dest, e.URL)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create output directory").
			WithContext("path", target).Build()
	}
	if err := os.WriteFile(target, out, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write output file").
			WithContext("path", target).Build()
	}
	return nil
}

// Serve renders e into the response with the state loaded by StartServing.
func (f *FileRenderer) Serve(w http.ResponseWriter, _ *http.Request, e *sitemap.Entry, cfg *config.Config, s *site.Site, m *sitemap.Map) error {
	out, err := f.Single.RenderSingle(e, cfg, s, m)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", f.Single.ContentType())
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(out)
	return err
}

// StartServing forwards to the single renderer when it has a lifecycle.
func (f *FileRenderer) StartServing(cfg *config.Config) error {
	if l, ok := f.Single.(Lifecycle); ok {
		return l.StartServing(cfg)
	}
	return nil
}

// StopServing forwards to the single renderer when it has a lifecycle.
func (f *FileRenderer) StopServing(cfg *config.Config) error {
	if l, ok := f.Single.(Lifecycle); ok {
		return l.StopServing(cfg)
	}
	return nil
}

// OutputPath maps an entry URL to a file below dest. URLs ending in "/"
// get an index.html. URLs escaping dest are rejected.
func OutputPath(dest, url string) (string, error) {
	rel := strings.TrimPrefix(url, "/")
	if rel == "" || strings.HasSuffix(rel, "/") {
		rel += "index.html"
	}
	target := filepath.Join(dest, filepath.FromSlash(rel))
	root := filepath.Clean(dest)
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", ferrors.RenderError("entry URL escapes the build location").
			WithContext("url", url).Build()
	}
	return target, nil
}

func renderError(e *sitemap.Entry, msg string, cause error) error {
	b := ferrors.RenderError(msg).WithContext("key", e.Key).WithContext("url", e.URL)
	if cause != nil {
		b = b.WithCause(cause)
	}
	return b.Build()
}

func entryError(e *sitemap.Entry, format string, args ...any) error {
	return renderError(e, fmt.Sprintf(format, args...), nil)
}

// Defaults returns the built-in renderers configured for cfg.
func Defaults(cfg *config.Config, rec metrics.Recorder) []Renderer {
	siteR := NewSiteRenderer(cfg.Output.Workers)
	feed := NewFeedRenderer()
	sm := NewSitemapRenderer()
	for _, f := range []*FileRenderer{siteR, feed, sm} {
		f.Recorder = rec
	}
	return []Renderer{siteR, feed, sm, NewStaticFilesRenderer(cfg), NewRootDirRenderer(cfg)}
}
