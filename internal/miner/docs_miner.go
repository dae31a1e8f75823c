package miner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/kart/internal/config"
	ferrors "git.home.luguber.info/inful/kart/internal/foundation/errors"
	"git.home.luguber.info/inful/kart/internal/logfields"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/slug"
	"git.home.luguber.info/inful/kart/internal/watch"
)

// Names produced by the documentation miner.
const (
	DocsCollection = "docs"
	DocsTOCValue   = "docs_global_toc"
	NavigationFile = "navigation.yml"
)

// NavItem is one entry of a navigation.yml manifest. Exactly one of Page or
// Section is set; Name titles a section.
type NavItem struct {
	Page    string `yaml:"page,omitempty"`
	Section string `yaml:"section,omitempty"`
	Name    string `yaml:"name,omitempty"`
}

// TOCEntry is one line of the documentation table of contents. Sections have
// no slug.
type TOCEntry struct {
	Title string
	Slug  string
	Level int
}

// DocumentationMiner reads a nested documentation tree. Directory order comes
// from navigation.yml when present and is lexical otherwise.
type DocumentationMiner struct {
	dir string

	mu   sync.Mutex
	abs  string
	dev  bool
	data *site.Collection
	toc  []TOCEntry
}

// NewDocumentationMiner binds the miner to the configured docs directory.
func NewDocumentationMiner(cfg *config.Config) *DocumentationMiner {
	dir := "docs"
	if cfg.Docs != nil {
		dir = cfg.Docs.Dir
	}
	return &DocumentationMiner{dir: dir, data: site.NewCollection(DocsCollection)}
}

// Name returns the collection name.
func (m *DocumentationMiner) Name() string { return DocsCollection }

// ReadData re-reads the whole tree.
func (m *DocumentationMiner) ReadData(ctx context.Context, cfg *config.Config) error {
	abs, err := filepath.Abs(cfg.Path(m.dir))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "resolve docs dir").Build()
	}
	data, toc, err := m.scan(ctx, abs, cfg.Dev)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.abs, m.dev, m.data, m.toc = abs, cfg.Dev, data, toc
	m.mu.Unlock()
	return nil
}

func (m *DocumentationMiner) scan(ctx context.Context, abs string, dev bool) (*site.Collection, []TOCEntry, error) {
	data := site.NewCollection(DocsCollection)
	var toc []TOCEntry
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return data, toc, nil
	}
	if err := m.readDir(ctx, abs, abs, 0, dev, data, &toc); err != nil {
		return nil, nil, err
	}
	return data, toc, nil
}

type docItem struct {
	path  string
	name  string
	isDir bool
}

func (m *DocumentationMiner) readDir(ctx context.Context, root, dir string, level int, dev bool, data *site.Collection, toc *[]TOCEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	items, err := listDocItems(dir)
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.isDir {
			*toc = append(*toc, TOCEntry{Title: it.name, Level: level})
			if err := m.readDir(ctx, root, it.path, level+1, dev, data, toc); err != nil {
				return err
			}
			continue
		}
		id, rec, err := ParseMarkdown(root, it.path)
		if err != nil {
			slog.Warn("Skipping malformed content file", logfields.Miner(DocsCollection), logfields.Path(it.path), logfields.Error(err))
			continue
		}
		if rec.Bool(site.FieldDraft) && !dev {
			continue
		}
		data.Set(id, rec)
		*toc = append(*toc, TOCEntry{Title: rec.String(site.FieldTitle), Slug: id, Level: level})
	}
	return nil
}

// listDocItems returns the children of dir in navigation order.
func listDocItems(dir string) ([]docItem, error) {
	navPath := filepath.Join(dir, NavigationFile)
	if raw, err := os.ReadFile(navPath); err == nil { // #nosec G304 -- manifest inside the docs tree
		var nav []NavItem
		if err := yaml.Unmarshal(raw, &nav); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryContent, "malformed navigation manifest").
				WithContext("path", navPath).Build()
		}
		items := make([]docItem, 0, len(nav))
		for _, n := range nav {
			switch {
			case n.Page != "":
				items = append(items, docItem{path: filepath.Join(dir, n.Page)})
			case n.Section != "":
				name := n.Name
				if name == "" {
					name = slug.Title(n.Section)
				}
				items = append(items, docItem{path: filepath.Join(dir, n.Section), name: name, isDir: true})
			}
		}
		return existing(items), nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read docs dir").WithContext("dir", dir).Build()
	}
	var items []docItem
	for _, e := range entries {
		name := e.Name()
		switch {
		case watch.ShouldIgnoreName(name):
		case e.IsDir():
			items = append(items, docItem{path: filepath.Join(dir, name), name: slug.Title(name), isDir: true})
		case slices.Contains(MarkdownExtensions, strings.ToLower(filepath.Ext(name))):
			items = append(items, docItem{path: filepath.Join(dir, name)})
		}
	}
	return items, nil
}

func existing(items []docItem) []docItem {
	out := items[:0]
	for _, it := range items {
		st, err := os.Stat(it.path)
		if err != nil || st.IsDir() != it.isDir {
			slog.Warn("Navigation entry not found", logfields.Path(it.path))
			continue
		}
		out = append(out, it)
	}
	return out
}

// Collect returns a copy of the docs collection.
func (m *DocumentationMiner) Collect(_ *config.Config) map[string]*site.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]*site.Collection{DocsCollection: m.data.Clone()}
}

// Values returns the table of contents as template values.
func (m *DocumentationMiner) Values() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]any, 0, len(m.toc))
	for _, e := range m.toc {
		var s any
		if e.Slug != "" {
			s = e.Slug
		}
		list = append(list, map[string]any{"title": e.Title, "slug": s, "level": e.Level})
	}
	return map[string]any{DocsTOCValue: list}
}

// StartWatching registers the whole tree; any change re-reads it.
func (m *DocumentationMiner) StartWatching(cfg *config.Config, w watch.Registrar) error {
	m.mu.Lock()
	if m.abs == "" {
		m.abs, _ = filepath.Abs(cfg.Path(m.dir))
	}
	m.dev = cfg.Dev
	abs := m.abs
	m.mu.Unlock()
	return w.Watch(abs, true, m.HandleEvent)
}

// StopWatching is a no-op; the watch service is closed by its owner.
func (m *DocumentationMiner) StopWatching(_ *config.Config) error { return nil }

// HandleEvent re-reads the tree. On failure the previous state is kept.
func (m *DocumentationMiner) HandleEvent(e watch.Event) {
	m.mu.Lock()
	abs, dev := m.abs, m.dev
	m.mu.Unlock()

	data, toc, err := m.scan(context.Background(), abs, dev)
	if err != nil {
		slog.Warn("Documentation re-read failed", logfields.Path(e.Path), logfields.Error(err))
		return
	}
	m.mu.Lock()
	m.data, m.toc = data, toc
	m.mu.Unlock()
}
