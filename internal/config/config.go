package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/kart/internal/foundation/errors"
)

// Config represents the site configuration.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Content   ContentConfig   `yaml:"content"`
	Blog      *BlogConfig     `yaml:"blog,omitempty"`
	Docs      *DocsConfig     `yaml:"docs,omitempty"`
	Feed      *FeedConfig     `yaml:"feed,omitempty"`
	Sitemap   *SitemapConfig  `yaml:"sitemap,omitempty"`
	Templates TemplatesConfig `yaml:"templates"`
	Output    OutputConfig    `yaml:"output"`
	Serve     ServeConfig     `yaml:"serve"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Events    EventsConfig    `yaml:"events"`
	Notify    NotifyConfig    `yaml:"notify"`

	// Dev is set by the serve command and by builds without --production.
	// In development mode drafts are kept.
	Dev bool `yaml:"-"`
}

// SiteConfig holds the values templates see as `config`.
type SiteConfig struct {
	Name              string           `yaml:"name"`
	Description       string           `yaml:"description,omitempty"`
	BaseURL           string           `yaml:"base_url,omitempty"`
	Timezone          string           `yaml:"timezone,omitempty"`
	Pagination        PaginationConfig `yaml:"pagination"`
	WarnKeyCollisions bool             `yaml:"warn_key_collisions,omitempty"`
	Params            map[string]any   `yaml:"params,omitempty"`
}

// PaginationConfig controls page sizes of index and taxonomy routes.
type PaginationConfig struct {
	PerPage int `yaml:"per_page"`
}

// ContentConfig describes where miners find their sources. Relative
// directories are resolved against Root.
type ContentConfig struct {
	Root           string       `yaml:"root,omitempty"`
	CollectionsDir string       `yaml:"collections_dir,omitempty"`
	TaxonomiesDir  string       `yaml:"taxonomies_dir,omitempty"`
	Collections    []string     `yaml:"collections,omitempty"`
	Taxonomies     []string     `yaml:"taxonomies,omitempty"`
	Pages          string       `yaml:"pages,omitempty"`
	Data           string       `yaml:"data,omitempty"`
	Static         string       `yaml:"static,omitempty"`
	RootFiles      string       `yaml:"root_files,omitempty"`
	Sort           []SortConfig `yaml:"sort,omitempty"`
	GitDates       bool         `yaml:"git_dates,omitempty"`
	Fingerprint    bool         `yaml:"fingerprint,omitempty"`
	TOC            bool         `yaml:"toc,omitempty"`
	CheckLinks     bool         `yaml:"check_links,omitempty"`
}

// SortConfig configures a collection sorter.
type SortConfig struct {
	Collection string `yaml:"collection"`
	Key        string `yaml:"key"`
	Reverse    bool   `yaml:"reverse,omitempty"`
}

// BlogConfig enables the blog routes: posts, paginated index and taxonomy pages.
type BlogConfig struct {
	Collection    string `yaml:"collection,omitempty"`
	Taxonomy      string `yaml:"taxonomy,omitempty"`
	IndexKey      string `yaml:"index_key,omitempty"`
	IndexURL      string `yaml:"index_url,omitempty"`
	IndexPath     string `yaml:"index_path,omitempty"`
	IndexSkip     int    `yaml:"index_skip,omitempty"`
	PostTemplate  string `yaml:"post_template,omitempty"`
	IndexTemplate string `yaml:"index_template,omitempty"`
	TagTemplate   string `yaml:"tag_template,omitempty"`
}

// DocsConfig enables the documentation tree.
type DocsConfig struct {
	Dir      string `yaml:"dir,omitempty"`
	Template string `yaml:"template,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// FeedConfig enables the Atom feed.
type FeedConfig struct {
	URL         string   `yaml:"url,omitempty"`
	Collections []string `yaml:"collections,omitempty"`
}

// SitemapConfig enables the XML sitemap.
type SitemapConfig struct {
	URL string `yaml:"url,omitempty"`
}

// TemplatesConfig configures the html/template based site renderer.
type TemplatesConfig struct {
	Dir                string `yaml:"dir,omitempty"`
	PageTemplate       string `yaml:"page_template,omitempty"`
	CollectionTemplate string `yaml:"collection_template,omitempty"`
}

// OutputConfig represents output configuration.
type OutputConfig struct {
	Directory string `yaml:"directory,omitempty"`
	Clean     *bool  `yaml:"clean,omitempty"`
	Workers   int    `yaml:"workers,omitempty"`
}

// ShouldClean reports whether the destination is cleared before a build.
func (o OutputConfig) ShouldClean() bool { return o.Clean == nil || *o.Clean }

// ServeConfig configures the live development server.
type ServeConfig struct {
	Host           string        `yaml:"host,omitempty"`
	Port           int           `yaml:"port,omitempty"`
	LiveReload     *bool         `yaml:"live_reload,omitempty"`
	Coalesce       *bool         `yaml:"coalesce,omitempty"`
	ResyncInterval time.Duration `yaml:"resync_interval,omitempty"`
	IgnoreFile     string        `yaml:"ignore_file,omitempty"`
}

// LiveReloadEnabled reports whether the SSE live-reload hub is mounted.
func (s ServeConfig) LiveReloadEnabled() bool { return s.LiveReload == nil || *s.LiveReload }

// CoalesceEnabled reports whether queued rebuild requests collapse into one.
func (s ServeConfig) CoalesceEnabled() bool { return s.Coalesce == nil || *s.Coalesce }

// Addr returns the listen address.
func (s ServeConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// EventsConfig controls the SQLite rebuild journal. Empty DB disables it.
type EventsConfig struct {
	DB string `yaml:"db,omitempty"`
}

// NotifyConfig controls NATS notifications. Empty URL disables them.
// With JetStream set, events are published to a stream the operator
// has bound to Subject.
type NotifyConfig struct {
	NATSURL   string `yaml:"nats_url,omitempty"`
	Subject   string `yaml:"subject,omitempty"`
	JetStream bool   `yaml:"jetstream,omitempty"`
}

// Load loads configuration from the specified file, applying defaults and validation.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, ferrors.ConfigError("configuration file not found").WithContext("path", configPath).Build()
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- path is the user-supplied config flag
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").Fatal().WithContext("path", configPath).Build()
	}

	return Parse(data)
}

// Parse decodes YAML configuration content with ${ENV} expansion, then applies
// defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no content sources.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
