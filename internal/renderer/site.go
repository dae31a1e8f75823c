package renderer

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/kart/internal/config"
	ferrors "git.home.luguber.info/inful/kart/internal/foundation/errors"
	"git.home.luguber.info/inful/kart/internal/markdown"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

// DateLayout is the format of the date_to_string template function.
const DateLayout = "Jan 02, 2006"

// SiteTemplates renders entries through html/template files found below
// the templates directory. Template names are paths relative to it.
type SiteTemplates struct {
	// Dir overrides cfg.Templates.Dir.
	Dir string

	mu   sync.RWMutex
	base *template.Template
}

// NewSiteRenderer returns the default HTML renderer.
func NewSiteRenderer(workers int) *FileRenderer {
	return &FileRenderer{Tag: sitemap.SiteRenderer, Single: &SiteTemplates{}, Workers: workers}
}

// ContentType returns text/html.
func (t *SiteTemplates) ContentType() string { return "text/html; charset=utf-8" }

// Prepare (re)parses every template file.
func (t *SiteTemplates) Prepare(cfg *config.Config) error {
	dir := t.Dir
	if dir == "" {
		dir = cfg.Templates.Dir
	}
	dir = cfg.Path(dir)

	base := template.New("").Funcs(Funcs(nil))
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		src, err := os.ReadFile(p) // #nosec G304 -- walking the configured templates directory
		if err != nil {
			return err
		}
		_, err = base.New(filepath.ToSlash(rel)).Parse(string(src))
		return err
	})
	if err != nil && !os.IsNotExist(err) {
		return ferrors.WrapError(err, ferrors.CategoryRender, "failed to load templates").
			WithContext("path", dir).Build()
	}

	t.mu.Lock()
	t.base = base
	t.mu.Unlock()
	return nil
}

// StartServing checks that the templates parse before the server starts.
func (t *SiteTemplates) StartServing(cfg *config.Config) error { return t.Prepare(cfg) }

// StopServing is a no-op.
func (t *SiteTemplates) StopServing(*config.Config) error { return nil }

// RenderSingle executes the entry's template with page, config, site and
// the url function bound to m.
func (t *SiteTemplates) RenderSingle(e *sitemap.Entry, _ *config.Config, s *site.Site, m *sitemap.Map) ([]byte, error) {
	t.mu.RLock()
	base := t.base
	t.mu.RUnlock()
	if base == nil {
		return nil, entryError(e, "templates not loaded")
	}
	if base.Lookup(e.Template) == nil {
		return nil, entryError(e, "template %q not found", e.Template)
	}

	tmpl, err := base.Clone()
	if err != nil {
		return nil, renderError(e, "failed to clone templates", err)
	}
	tmpl.Funcs(Funcs(m))

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, e.Template, TemplateData(e, s)); err != nil {
		return nil, renderError(e, "failed to execute template", err)
	}
	return buf.Bytes(), nil
}

// TemplateData builds the template context of an entry: "page" holds the
// payload plus its url, "config" the site configuration and "site" every
// collection as an ordered list plus auxiliary values.
func TemplateData(e *sitemap.Entry, s *site.Site) map[string]any {
	page := map[string]any{}
	switch d := e.Data.(type) {
	case site.Record:
		for k, v := range d {
			page[k] = v
		}
	case map[string]any:
		for k, v := range d {
			page[k] = v
		}
	case nil:
	default:
		page["data"] = d
	}
	page["url"] = e.URL

	siteView := map[string]any{}
	var cfgView map[string]any
	if s != nil {
		for k, v := range s.Values {
			siteView[k] = v
		}
		for _, name := range s.Names() {
			siteView[name] = s.Collection(name).Records()
		}
		cfgView = s.Config
	}
	return map[string]any{"page": page, "config": cfgView, "site": siteView}
}

// Funcs returns the template functions. With a nil map, url resolves nothing.
func Funcs(m *sitemap.Map) template.FuncMap {
	resolve := func(parts ...string) string {
		if m == nil {
			return ""
		}
		return m.URL(parts...)
	}
	return template.FuncMap{
		"url": resolve,
		"html": func(content any) (template.HTML, error) {
			out, err := markdown.ToHTML([]byte(toString(content)), func(dest string) string { return resolve(dest) })
			// #nosec G203 -- rendered from the site's own content
			return template.HTML(out), err
		},
		"toc": func(content any) []markdown.Heading {
			return markdown.TOC([]byte(toString(content)))
		},
		"date_to_string": DateToString,
	}
}

// DateToString formats a date field as "Jan 02, 2006". Unparseable values
// render as "".
func DateToString(v any) string {
	t, ok := site.ParseTime(v)
	if !ok {
		return ""
	}
	return t.Format(DateLayout)
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case template.HTML:
		return string(s)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
