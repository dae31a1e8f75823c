// Package mapper routes site collections to logical keys and URLs.
package mapper

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
	"git.home.luguber.info/inful/kart/internal/slug"
)

// Mapper returns a partial site map. Partial maps are merged in mapper order.
type Mapper interface {
	Map(ctx context.Context, cfg *config.Config, s *site.Site) (*sitemap.Map, error)
}

func perPage(override int, cfg *config.Config) int {
	if override > 0 {
		return override
	}
	if cfg != nil && cfg.Site.Pagination.PerPage > 0 {
		return cfg.Site.Pagination.PerPage
	}
	return 5
}

func rendererOr(tag string) string {
	if tag == "" {
		return sitemap.SiteRenderer
	}
	return tag
}

// CollectionMapper routes every record of a collection to
// "{BaseURL}/{name}/{slug}/" under the key "{name}.{slug}". A record "url"
// field overrides the URL.
type CollectionMapper struct {
	Collection string
	BaseURL    string
	Template   string
	Renderer   string
}

// Map routes the collection. A missing collection yields an empty map.
func (c *CollectionMapper) Map(_ context.Context, _ *config.Config, s *site.Site) (*sitemap.Map, error) {
	out := sitemap.New("")
	col := s.Collection(c.Collection)
	if col == nil {
		return out, nil
	}
	for _, rec := range col.Records() {
		id := rec.Slug()
		url := rec.String(site.FieldURL)
		if url == "" {
			url = fmt.Sprintf("%s/%s/%s/", c.BaseURL, slug.Make(c.Collection), slug.Make(id))
		}
		out.Add(c.Collection+"."+id, &sitemap.Entry{
			URL:      url,
			Data:     rec,
			Template: c.Template,
			Renderer: rendererOr(c.Renderer),
		})
	}
	return out, nil
}

// IndexMapper paginates a collection under Key.
type IndexMapper struct {
	Collection string
	Key        string
	URL        string
	Path       string
	Skip       int
	PerPage    int
	Template   string
	Renderer   string
}

// Map paginates the collection. A missing collection yields one empty page.
func (ix *IndexMapper) Map(_ context.Context, cfg *config.Config, s *site.Site) (*sitemap.Map, error) {
	var records []site.Record
	if col := s.Collection(ix.Collection); col != nil {
		records = col.Records()
	}
	return sitemap.Paginate(records, sitemap.PageSpec{
		Key:      ix.Key,
		URL:      ix.URL,
		Path:     ix.Path,
		PerPage:  perPage(ix.PerPage, cfg),
		Skip:     ix.Skip,
		Template: ix.Template,
		Renderer: rendererOr(ix.Renderer),
	}), nil
}

// TaxonomyMapper paginates, for every term of a taxonomy collection, the
// records of Collection whose Field equals or contains the term slug. Pages
// live at "{BaseURL}/{taxonomy}/{term}/" under "{taxonomy}.{term}"; the term
// record's fields are merged into each page payload.
type TaxonomyMapper struct {
	Taxonomy   string
	Collection string
	// Field defaults to the taxonomy name.
	Field    string
	BaseURL  string
	PerPage  int
	Template string
	Renderer string
}

// Map routes every term.
func (t *TaxonomyMapper) Map(ctx context.Context, cfg *config.Config, s *site.Site) (*sitemap.Map, error) {
	out := sitemap.New("")
	terms := s.Collection(t.Taxonomy)
	if terms == nil {
		return out, nil
	}
	field := t.Field
	if field == "" {
		field = t.Taxonomy
	}
	var records []site.Record
	if col := s.Collection(t.Collection); col != nil {
		records = col.Records()
	}

	for _, term := range terms.Records() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := term.Slug()
		var members []site.Record
		for _, rec := range records {
			if rec.HasTerm(field, id) {
				members = append(members, rec)
			}
		}
		out.Merge(sitemap.Paginate(members, sitemap.PageSpec{
			Key:      t.Taxonomy + "." + id,
			URL:      fmt.Sprintf("%s/%s/%s/", t.BaseURL, slug.Make(t.Taxonomy), slug.Make(id)),
			PerPage:  perPage(t.PerPage, cfg),
			Template: t.Template,
			Renderer: rendererOr(t.Renderer),
			Extra:    term,
		}))
	}
	return out, nil
}

// PageMapper routes standalone pages under their slug. "index" maps to "/",
// other pages to "/{slug}/"; a record "url" field wins.
type PageMapper struct {
	Collection string
	Template   string
	Renderer   string
}

// Map routes the pages.
func (p *PageMapper) Map(_ context.Context, _ *config.Config, s *site.Site) (*sitemap.Map, error) {
	name := p.Collection
	if name == "" {
		name = "pages"
	}
	out := sitemap.New("")
	col := s.Collection(name)
	if col == nil {
		return out, nil
	}
	for _, rec := range col.Records() {
		id := rec.Slug()
		out.Add(id, &sitemap.Entry{
			URL:      pageURL(rec, ""),
			Data:     rec,
			Template: p.Template,
			Renderer: rendererOr(p.Renderer),
		})
	}
	return out, nil
}

func pageURL(rec site.Record, base string) string {
	if u := rec.String(site.FieldURL); u != "" {
		return base + u
	}
	id := rec.Slug()
	if id == "index" {
		return base + "/"
	}
	return base + "/" + id + "/"
}
