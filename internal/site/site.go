package site

import (
	"sort"

	"git.home.luguber.info/inful/kart/internal/config"
)

// Site is the content of one build cycle.
type Site struct {
	Collections map[string]*Collection
	// Config is the site configuration as templates see it.
	Config map[string]any
	// Values carries auxiliary data produced by miners and modifiers,
	// e.g. the documentation table of contents.
	Values map[string]any
}

// New creates an empty site with the template view of cfg.
func New(cfg config.SiteConfig) *Site {
	return &Site{
		Collections: map[string]*Collection{},
		Config:      ConfigValues(cfg),
		Values:      map[string]any{},
	}
}

// ConfigValues flattens the site configuration into the map templates use.
func ConfigValues(cfg config.SiteConfig) map[string]any {
	m := map[string]any{
		"name":        cfg.Name,
		"description": cfg.Description,
		"base_url":    cfg.BaseURL,
		"timezone":    cfg.Timezone,
		"pagination":  map[string]any{"per_page": cfg.Pagination.PerPage},
	}
	for k, v := range cfg.Params {
		if _, reserved := m[k]; !reserved {
			m[k] = CopyValue(v)
		}
	}
	return m
}

// Collection returns the named collection, or nil.
func (s *Site) Collection(name string) *Collection {
	return s.Collections[name]
}

// Names returns collection names in lexical order.
func (s *Site) Names() []string {
	names := make([]string, 0, len(s.Collections))
	for n := range s.Collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy sharing no mutable state with s.
func (s *Site) Clone() *Site {
	out := &Site{
		Collections: make(map[string]*Collection, len(s.Collections)),
		Config:      CopyMap(s.Config),
		Values:      CopyMap(s.Values),
	}
	for name, c := range s.Collections {
		out.Collections[name] = c.Clone()
	}
	if out.Values == nil {
		out.Values = map[string]any{}
	}
	return out
}
