package sitemap

import (
	"path"
	"strings"
)

// Index maps request paths back to logical keys.
type Index struct {
	exact    map[string]string
	patterns []pattern
}

type pattern struct {
	glob string
	key  string
}

// NewIndex builds the reverse index of m. URLs containing glob metacharacters
// are matched with path.Match in insertion order, after exact URLs. A pattern
// ending in "/**" matches everything below its prefix.
func NewIndex(m *Map) *Index {
	ix := &Index{exact: make(map[string]string, m.Len())}
	for _, e := range m.Entries() {
		if e.URL == "" {
			continue
		}
		if strings.ContainsAny(e.URL, "*?[") {
			ix.patterns = append(ix.patterns, pattern{glob: e.URL, key: e.Key})
			continue
		}
		if _, dup := ix.exact[e.URL]; !dup {
			ix.exact[e.URL] = e.Key
		}
	}
	return ix
}

// Lookup returns the logical key serving urlPath. A path without a trailing
// slash also matches the directory form ("/about" finds "/about/").
func (ix *Index) Lookup(urlPath string) (string, bool) {
	if urlPath == "" {
		urlPath = "/"
	}
	if key, ok := ix.exact[urlPath]; ok {
		return key, true
	}
	if !strings.HasSuffix(urlPath, "/") {
		if key, ok := ix.exact[urlPath+"/"]; ok {
			return key, true
		}
	}
	for _, p := range ix.patterns {
		if p.match(urlPath) {
			return p.key, true
		}
	}
	return "", false
}

// Len returns the number of indexed URLs.
func (ix *Index) Len() int { return len(ix.exact) + len(ix.patterns) }

func (p pattern) match(urlPath string) bool {
	if prefix, ok := strings.CutSuffix(p.glob, "**"); ok && strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(urlPath, prefix) && len(urlPath) > len(prefix)
	}
	ok, err := path.Match(p.glob, urlPath)
	return err == nil && ok
}
