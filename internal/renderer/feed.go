package renderer

import (
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

const (
	atomNS    = "http://www.w3.org/2005/Atom"
	sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"
)

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
}

type atomEntry struct {
	ID      string   `xml:"id"`
	Title   string   `xml:"title"`
	Updated string   `xml:"updated"`
	Summary string   `xml:"summary,omitempty"`
	Link    atomLink `xml:"link"`
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Xmlns   string      `xml:"xmlns,attr"`
	ID      string      `xml:"id"`
	Title   string      `xml:"title"`
	Updated string      `xml:"updated"`
	Links   []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

// FeedRenderer renders Atom feeds. The entry payload lists the source
// collections under "collections".
type FeedRenderer struct {
	// Now stamps the feed when no entry carries a date.
	Now func() time.Time
}

// NewFeedRenderer returns the default feed renderer.
func NewFeedRenderer() *FileRenderer {
	return &FileRenderer{Tag: sitemap.FeedRenderer, Single: &FeedRenderer{}}
}

// ContentType returns application/xml.
func (f *FeedRenderer) ContentType() string { return "application/xml" }

type feedItem struct {
	url string
	rec site.Record
	at  time.Time
}

// RenderSingle builds the feed, newest entry first.
func (f *FeedRenderer) RenderSingle(e *sitemap.Entry, cfg *config.Config, s *site.Site, m *sitemap.Map) ([]byte, error) {
	loc := location(cfg)

	var items []feedItem
	for _, name := range feedCollections(e.Data) {
		col := s.Collection(name)
		if col == nil {
			continue
		}
		for _, rec := range col.Records() {
			at, _ := rec.Time(site.FieldDate)
			items = append(items, feedItem{url: m.URL(name, rec.Slug()), rec: rec, at: entryTime(at, loc)})
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].at.After(items[j].at) })

	updated := time.Time{}
	if len(items) > 0 {
		updated = items[0].at
	}
	if updated.IsZero() {
		now := time.Now
		if f.Now != nil {
			now = f.Now
		}
		updated = now().In(loc)
	}

	home := m.URL("/")
	feed := atomFeed{
		Xmlns:   atomNS,
		ID:      home,
		Title:   cfg.Site.Name,
		Updated: updated.Format(time.RFC3339),
		Links:   []atomLink{{Href: home}, {Href: m.URL(e.URL), Rel: "self"}},
	}
	for _, it := range items {
		title := it.rec.String(site.FieldTitle)
		if title == "" {
			title = it.rec.String("name")
		}
		feed.Entries = append(feed.Entries, atomEntry{
			ID:      it.url,
			Title:   title,
			Updated: it.at.Format(time.RFC3339),
			Summary: it.rec.String("description"),
			Link:    atomLink{Href: it.url, Rel: "alternate"},
		})
	}

	out, err := xml.Marshal(feed)
	if err != nil {
		return nil, renderError(e, "failed to encode feed", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// entryTime places date-only values at noon in the site timezone.
func entryTime(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() {
		return t
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, loc)
	}
	return t.In(loc)
}

func location(cfg *config.Config) *time.Location {
	if loc, err := time.LoadLocation(cfg.Site.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

func feedCollections(data any) []string {
	var raw any
	switch d := data.(type) {
	case map[string]any:
		raw = d["collections"]
	case site.Record:
		raw = d["collections"]
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// SitemapRenderer lists every page of the site renderer.
type SitemapRenderer struct {
	// Include selects entries by renderer tag. Defaults to the site renderer.
	Include string
}

// NewSitemapRenderer returns the default XML sitemap renderer.
func NewSitemapRenderer() *FileRenderer {
	return &FileRenderer{Tag: sitemap.SitemapRenderer, Single: &SitemapRenderer{}}
}

// ContentType returns application/xml.
func (r *SitemapRenderer) ContentType() string { return "application/xml" }

// RenderSingle builds the urlset in map order.
func (r *SitemapRenderer) RenderSingle(e *sitemap.Entry, _ *config.Config, _ *site.Site, m *sitemap.Map) ([]byte, error) {
	include := r.Include
	if include == "" {
		include = sitemap.SiteRenderer
	}
	set := urlSet{Xmlns: sitemapNS}
	for _, entry := range m.Entries() {
		if entry.Renderer != include {
			continue
		}
		set.URLs = append(set.URLs, sitemapURL{Loc: m.URL(entry.URL)})
	}
	out, err := xml.Marshal(set)
	if err != nil {
		return nil, renderError(e, "failed to encode sitemap", err)
	}
	return append([]byte(xml.Header), out...), nil
}
