package mapper

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

// BlogMapper routes a blog: the posts, their paginated index and one
// paginated page per tag.
type BlogMapper struct {
	Config  config.BlogConfig
	BaseURL string
}

// NewBlogMapper creates a blog mapper from configuration.
func NewBlogMapper(cfg config.BlogConfig) *BlogMapper {
	return &BlogMapper{Config: cfg}
}

func (b *BlogMapper) parts() []Mapper {
	c := b.Config
	return []Mapper{
		&CollectionMapper{Collection: c.Collection, BaseURL: b.BaseURL, Template: c.PostTemplate},
		&IndexMapper{
			Collection: c.Collection,
			Key:        c.IndexKey,
			URL:        b.BaseURL + c.IndexURL,
			Path:       b.BaseURL + c.IndexPath,
			Skip:       c.IndexSkip,
			Template:   c.IndexTemplate,
		},
		&TaxonomyMapper{Taxonomy: c.Taxonomy, Collection: c.Collection, BaseURL: b.BaseURL, Template: c.TagTemplate},
	}
}

// Map merges posts, index and tag routes.
func (b *BlogMapper) Map(ctx context.Context, cfg *config.Config, s *site.Site) (*sitemap.Map, error) {
	out := sitemap.New("")
	for _, m := range b.parts() {
		part, err := m.Map(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		out.Merge(part)
	}
	return out, nil
}

// ManualEntry is one fixed route.
type ManualEntry struct {
	Key   string
	Entry sitemap.Entry
}

// ManualMapper adds fixed entries verbatim, e.g. feeds and static mounts.
type ManualMapper struct {
	Entries []ManualEntry
}

// Map returns the fixed entries.
func (m *ManualMapper) Map(_ context.Context, _ *config.Config, _ *site.Site) (*sitemap.Map, error) {
	out := sitemap.New("")
	for _, e := range m.Entries {
		entry := e.Entry
		out.Add(e.Key, &entry)
	}
	return out, nil
}

// MapRule produces a partial map from the site.
type MapRule func(s *site.Site) (*sitemap.Map, error)

// RuleMapper merges the maps produced by its rules.
type RuleMapper struct {
	Rules []MapRule
}

// Map runs the rules in order.
func (r *RuleMapper) Map(_ context.Context, _ *config.Config, s *site.Site) (*sitemap.Map, error) {
	out := sitemap.New("")
	for i, rule := range r.Rules {
		part, err := rule(s)
		if err != nil {
			return nil, fmt.Errorf("map rule %d: %w", i, err)
		}
		out.Merge(part)
	}
	return out, nil
}
