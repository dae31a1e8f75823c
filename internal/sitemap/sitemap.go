// Package sitemap holds the routing result of a build cycle: logical keys
// mapped to URLs, payloads, templates and renderer tags.
package sitemap

import (
	"log/slog"
	"slices"
	"strings"

	"git.home.luguber.info/inful/kart/internal/logfields"
)

// Entry is one routed page.
type Entry struct {
	Key      string
	URL      string
	Data     any
	Template string
	Renderer string
}

// Map is an insertion-ordered set of entries keyed by logical key.
type Map struct {
	// SiteURL prefixes every resolved URL. Empty in development mode.
	SiteURL string
	// WarnCollisions logs a warning when Merge overwrites an existing key.
	WarnCollisions bool
	// OnUnresolved is called for every name URL could not resolve.
	OnUnresolved func(name string)

	order   []string
	entries map[string]*Entry
}

// New creates an empty map.
func New(siteURL string) *Map {
	return &Map{SiteURL: siteURL, entries: map[string]*Entry{}}
}

// Add inserts e under key. An existing key is replaced in place and Add
// reports true.
func (m *Map) Add(key string, e *Entry) bool {
	if m.entries == nil {
		m.entries = map[string]*Entry{}
	}
	e.Key = key
	_, exists := m.entries[key]
	if !exists {
		m.order = append(m.order, key)
	}
	m.entries[key] = e
	return exists
}

// Get returns the entry for key.
func (m *Map) Get(key string) (*Entry, bool) {
	e, ok := m.entries[key]
	return e, ok
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.order) }

// Keys returns logical keys in insertion order.
func (m *Map) Keys() []string { return slices.Clone(m.order) }

// Entries returns entries in insertion order.
func (m *Map) Entries() []*Entry {
	out := make([]*Entry, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.entries[k])
	}
	return out
}

// Merge copies every entry of other into m. On a key collision the entry of
// other wins.
func (m *Map) Merge(other *Map) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		e := other.entries[k]
		prev, collided := m.entries[k]
		if collided && m.WarnCollisions {
			slog.Warn("Logical key collision, later entry wins",
				logfields.Key(k),
				slog.String("previous_url", prev.URL),
				logfields.URL(e.URL))
		}
		m.Add(k, e)
	}
}

// URL resolves a logical key to an absolute URL. Parts are joined with ".".
//
// Resolution order: exact key, then the first page of a paginated group
// ("{key}.1"), then literal URLs (a scheme is returned untouched, a path is
// prefixed with SiteURL). Anything else resolves to "" and is reported.
func (m *Map) URL(parts ...string) string {
	name := strings.Join(parts, ".")
	if name == "" {
		return ""
	}
	if e, ok := m.entries[name]; ok {
		return m.SiteURL + e.URL
	}
	if e, ok := m.entries[name+".1"]; ok {
		return m.SiteURL + e.URL
	}
	if strings.Contains(name, "://") {
		return name
	}
	if strings.Contains(name, "/") {
		return m.SiteURL + name
	}

	slog.Warn("Unresolved URL reference", logfields.Key(name))
	if m.OnUnresolved != nil {
		m.OnUnresolved(name)
	}
	return ""
}

// Renderer tags of the built-in renderers.
const (
	SiteRenderer        = "default_site_renderer"
	FeedRenderer        = "default_feed_renderer"
	SitemapRenderer     = "default_sitemap_renderer"
	StaticFilesRenderer = "default_static_files_renderer"
	RootDirRenderer     = "default_root_dir_renderer"
)
