package renderer

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

func TestFeedRenderer_NewestFirst(t *testing.T) {
	cfg := config.Default()
	cfg.Site.Name = "Blog"
	s := site.New(cfg.Site)
	posts := site.NewCollection("posts")
	s.Collections["posts"] = posts
	posts.Set("old", site.Record{"title": "Old", "date": "2020-01-01"})
	posts.Set("new", site.Record{"title": "New", "date": "2022-06-01", "description": "fresh"})

	m := sitemap.New("https://example.org")
	m.Add("posts.old", &sitemap.Entry{URL: "/posts/old/"})
	m.Add("posts.new", &sitemap.Entry{URL: "/posts/new/"})
	m.Add("feed", &sitemap.Entry{URL: "/atom.xml", Data: map[string]any{"collections": []any{"posts"}}, Renderer: sitemap.FeedRenderer})
	e, _ := m.Get("feed")

	out, err := (&FeedRenderer{}).RenderSingle(e, cfg, s, m)
	require.NoError(t, err)

	var feed atomFeed
	require.NoError(t, xml.Unmarshal(out, &feed))
	require.Equal(t, "Blog", feed.Title)
	require.Len(t, feed.Entries, 2)
	require.Equal(t, "https://example.org/posts/new/", feed.Entries[0].ID)
	require.Equal(t, "fresh", feed.Entries[0].Summary)
	require.Equal(t, "2022-06-01T12:00:00Z", feed.Entries[0].Updated)
	require.Equal(t, feed.Entries[0].Updated, feed.Updated)
	require.Equal(t, "https://example.org/atom.xml", feed.Links[1].Href)
}

func TestFeedRenderer_EmptyUsesNow(t *testing.T) {
	cfg := config.Default()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := sitemap.New("")
	e := &sitemap.Entry{Key: "feed", URL: "/atom.xml"}

	out, err := (&FeedRenderer{Now: func() time.Time { return now }}).RenderSingle(e, cfg, site.New(cfg.Site), m)
	require.NoError(t, err)
	var feed atomFeed
	require.NoError(t, xml.Unmarshal(out, &feed))
	require.Equal(t, "2024-01-02T03:04:05Z", feed.Updated)
	require.Empty(t, feed.Entries)
}

func TestSitemapRenderer_OnlySitePages(t *testing.T) {
	m := sitemap.New("https://example.org")
	m.Add("index", &sitemap.Entry{URL: "/", Renderer: sitemap.SiteRenderer})
	m.Add("about", &sitemap.Entry{URL: "/about/", Renderer: sitemap.SiteRenderer})
	m.Add("feed", &sitemap.Entry{URL: "/atom.xml", Renderer: sitemap.FeedRenderer})
	m.Add("sitemap", &sitemap.Entry{URL: "/sitemap.xml", Renderer: sitemap.SitemapRenderer})
	e, _ := m.Get("sitemap")

	out, err := (&SitemapRenderer{}).RenderSingle(e, config.Default(), nil, m)
	require.NoError(t, err)
	var set urlSet
	require.NoError(t, xml.Unmarshal(out, &set))
	require.Equal(t, []sitemapURL{{Loc: "https://example.org/"}, {Loc: "https://example.org/about/"}}, set.URLs)
}
