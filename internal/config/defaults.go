package config

import "path/filepath"

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

// appliers run in order; later domains may depend on earlier ones.
var appliers = []DefaultApplier{
	siteDefaults{},
	contentDefaults{},
	routeDefaults{},
	outputDefaults{},
	serveDefaults{},
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	for _, a := range appliers {
		a.ApplyDefaults(cfg)
	}
}

type siteDefaults struct{}

func (siteDefaults) Domain() string { return "site" }

func (siteDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Site.Name == "" {
		cfg.Site.Name = "Kart Site"
	}
	if cfg.Site.Timezone == "" {
		cfg.Site.Timezone = "UTC"
	}
	if cfg.Site.Pagination.PerPage == 0 {
		cfg.Site.Pagination.PerPage = 5
	}
}

type contentDefaults struct{}

func (contentDefaults) Domain() string { return "content" }

func (contentDefaults) ApplyDefaults(cfg *Config) {
	c := &cfg.Content
	if c.Root == "" {
		c.Root = "."
	}
	if c.CollectionsDir == "" {
		c.CollectionsDir = "collections"
	}
	if c.TaxonomiesDir == "" {
		c.TaxonomiesDir = "taxonomies"
	}
	if c.Pages == "" {
		c.Pages = "pages"
	}
	if c.Data == "" {
		c.Data = "data"
	}
	if c.Static == "" {
		c.Static = "static"
	}
	if c.RootFiles == "" {
		c.RootFiles = "root"
	}
	if cfg.Templates.Dir == "" {
		cfg.Templates.Dir = "templates"
	}
	if cfg.Templates.PageTemplate == "" {
		cfg.Templates.PageTemplate = "page.html"
	}
	if cfg.Templates.CollectionTemplate == "" {
		cfg.Templates.CollectionTemplate = "collection_item.html"
	}
}

type routeDefaults struct{}

func (routeDefaults) Domain() string { return "routes" }

func (routeDefaults) ApplyDefaults(cfg *Config) {
	if b := cfg.Blog; b != nil {
		if b.Collection == "" {
			b.Collection = "posts"
		}
		if b.Taxonomy == "" {
			b.Taxonomy = "tags"
		}
		if b.IndexKey == "" {
			b.IndexKey = "index"
		}
		if b.IndexURL == "" {
			b.IndexURL = "/"
		}
		if b.IndexPath == "" {
			b.IndexPath = "/index"
		}
		if b.PostTemplate == "" {
			b.PostTemplate = "post.html"
		}
		if b.IndexTemplate == "" {
			b.IndexTemplate = "blog_index.html"
		}
		if b.TagTemplate == "" {
			b.TagTemplate = "tag.html"
		}
	}
	if d := cfg.Docs; d != nil {
		if d.Dir == "" {
			d.Dir = "docs"
		}
		if d.Template == "" {
			d.Template = cfg.Templates.PageTemplate
		}
	}
	if f := cfg.Feed; f != nil {
		if f.URL == "" {
			f.URL = "/atom.xml"
		}
		if len(f.Collections) == 0 && cfg.Blog != nil {
			f.Collections = []string{cfg.Blog.Collection}
		}
	}
	if s := cfg.Sitemap; s != nil && s.URL == "" {
		s.URL = "/sitemap.xml"
	}
}

type outputDefaults struct{}

func (outputDefaults) Domain() string { return "output" }

func (outputDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "_site"
	}
	if cfg.Output.Workers <= 0 {
		cfg.Output.Workers = 1
	}
}

type serveDefaults struct{}

func (serveDefaults) Domain() string { return "serve" }

func (serveDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Serve.Host == "" {
		cfg.Serve.Host = "localhost"
	}
	if cfg.Serve.Port == 0 {
		cfg.Serve.Port = 9000
	}
	if cfg.Serve.IgnoreFile == "" {
		cfg.Serve.IgnoreFile = ".kartignore"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "kart.events"
	}
}

// Path resolves a content-relative directory against the content root.
func (c *Config) Path(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.Content.Root, dir)
}
