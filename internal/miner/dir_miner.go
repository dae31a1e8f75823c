package miner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"git.home.luguber.info/inful/kart/internal/config"
	ferrors "git.home.luguber.info/inful/kart/internal/foundation/errors"
	"git.home.luguber.info/inful/kart/internal/logfields"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/watch"
)

// DirMiner reads the direct children of one directory into a collection.
type DirMiner struct {
	name  string
	dir   string
	exts  []string
	parse FileParser

	mu   sync.Mutex
	abs  string
	dev  bool
	data *site.Collection
}

// NewDirMiner binds a collection name to dir (relative to the content root).
func NewDirMiner(name, dir string, exts []string, parse FileParser) *DirMiner {
	return &DirMiner{
		name:  name,
		dir:   dir,
		exts:  exts,
		parse: parse,
		data:  site.NewCollection(name),
	}
}

// NewCollectionMiner reads collections/<name>.
func NewCollectionMiner(name string, cfg *config.Config) *DirMiner {
	return NewDirMiner(name, filepath.Join(cfg.Content.CollectionsDir, name), MarkdownExtensions, ParseMarkdown)
}

// NewTaxonomyMiner reads taxonomies/<name>.
func NewTaxonomyMiner(name string, cfg *config.Config) *DirMiner {
	return NewDirMiner(name, filepath.Join(cfg.Content.TaxonomiesDir, name), MarkdownExtensions, ParseMarkdown)
}

// NewPageMiner reads standalone pages into the "pages" collection.
func NewPageMiner(cfg *config.Config) *DirMiner {
	return NewDirMiner("pages", cfg.Content.Pages, MarkdownExtensions, ParseMarkdown)
}

// NewDataMiner reads YAML and JSON records into the "data" collection.
func NewDataMiner(cfg *config.Config) *DirMiner {
	return NewDirMiner("data", cfg.Content.Data, DataExtensions, ParseData)
}

// Name returns the collection name.
func (m *DirMiner) Name() string { return m.name }

// ReadData replaces the collection with a fresh scan. A missing directory
// yields an empty collection.
func (m *DirMiner) ReadData(ctx context.Context, cfg *config.Config) error {
	abs, err := filepath.Abs(cfg.Path(m.dir))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "resolve miner dir").WithContext("dir", m.dir).Build()
	}

	fresh := site.NewCollection(m.name)
	entries, err := os.ReadDir(abs)
	if err != nil && !os.IsNotExist(err) {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "read miner dir").WithContext("dir", abs).Build()
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || !m.matches(e.Name()) {
			continue
		}
		m.load(fresh, abs, filepath.Join(abs, e.Name()), cfg.Dev)
	}

	m.mu.Lock()
	m.abs = abs
	m.dev = cfg.Dev
	m.data = fresh
	m.mu.Unlock()

	slog.Debug("Mined directory", logfields.Miner(m.name), logfields.Path(abs), slog.Int("records", fresh.Len()))
	return nil
}

// Collect returns a copy of the collection.
func (m *DirMiner) Collect(_ *config.Config) map[string]*site.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]*site.Collection{m.name: m.data.Clone()}
}

// StartWatching registers the bound directory with w.
func (m *DirMiner) StartWatching(cfg *config.Config, w watch.Registrar) error {
	m.mu.Lock()
	if m.abs == "" {
		m.abs, _ = filepath.Abs(cfg.Path(m.dir))
	}
	m.dev = cfg.Dev
	abs := m.abs
	m.mu.Unlock()
	return w.Watch(abs, false, m.HandleEvent)
}

// StopWatching is a no-op; the watch service is closed by its owner.
func (m *DirMiner) StopWatching(_ *config.Config) error { return nil }

// HandleEvent applies one change to the collection. Creates and writes
// re-parse the file, removals and renames drop its slug.
func (m *DirMiner) HandleEvent(e watch.Event) {
	if !m.matches(filepath.Base(e.Path)) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.abs == "" || filepath.Dir(e.Path) != m.abs {
		return
	}

	switch e.Op {
	case watch.Create, watch.Write:
		if st, err := os.Stat(e.Path); err != nil || st.IsDir() {
			return
		}
		m.load(m.data, m.abs, e.Path, m.dev)
	case watch.Remove, watch.Rename:
		slug := IDFromPath(m.abs, e.Path)
		if m.data.Delete(slug) {
			slog.Debug("Record removed", logfields.Miner(m.name), logfields.Slug(slug))
		}
	}
}

// load parses path into c. Malformed files and drafts are removed from c.
func (m *DirMiner) load(c *site.Collection, dir, path string, dev bool) {
	slug, rec, err := m.parse(dir, path)
	if err != nil {
		slog.Warn("Skipping malformed content file",
			logfields.Miner(m.name), logfields.Path(path), logfields.Error(err))
		c.Delete(slug)
		return
	}
	if rec.Bool(site.FieldDraft) && !dev {
		c.Delete(slug)
		return
	}
	c.Set(slug, rec)
}

func (m *DirMiner) matches(name string) bool {
	return slices.Contains(m.exts, strings.ToLower(filepath.Ext(name)))
}
