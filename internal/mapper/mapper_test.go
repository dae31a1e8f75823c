package mapper

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

func blogSite() *site.Site {
	s := site.New(config.SiteConfig{Name: "blog"})
	posts := site.NewCollection("posts")
	rustPosts := map[int]bool{1: true, 4: true, 6: true}
	for i := 1; i <= 7; i++ {
		tags := []any{"go"}
		if rustPosts[i] {
			tags = []any{"rust"}
		}
		posts.Set(fmt.Sprintf("post-%d", i), site.Record{"title": fmt.Sprintf("Post %d", i), "tags": tags})
	}
	tags := site.NewCollection("tags")
	tags.Set("rust", site.Record{"title": "Rust"})
	s.Collections["posts"] = posts
	s.Collections["tags"] = tags
	return s
}

func objects(t *testing.T, m *sitemap.Map, key string) []site.Record {
	t.Helper()
	e, ok := m.Get(key)
	require.True(t, ok, key)
	return e.Data.(map[string]any)["paginator"].(sitemap.Paginator).Objects
}

func TestBlogScenario_SevenPostsFivePerPage(t *testing.T) {
	cfg := config.Default()
	cfg.Blog = &config.BlogConfig{}
	config.ApplyDefaults(cfg)

	m, err := NewBlogMapper(*cfg.Blog).Map(context.Background(), cfg, blogSite())
	require.NoError(t, err)

	idx1, ok := m.Get("index.1")
	require.True(t, ok)
	require.Equal(t, "/", idx1.URL)
	idx2, ok := m.Get("index.2")
	require.True(t, ok)
	require.Equal(t, "/index/2/", idx2.URL)
	_, ok = m.Get("index.3")
	require.False(t, ok)
	require.Len(t, objects(t, m, "index.1"), 5)
	require.Len(t, objects(t, m, "index.2"), 2)

	_, ok = m.Get("tags.rust.2")
	require.False(t, ok)
	rust := objects(t, m, "tags.rust.1")
	var slugs []string
	for _, r := range rust {
		slugs = append(slugs, r.Slug())
	}
	require.Equal(t, []string{"post-1", "post-4", "post-6"}, slugs)
	tagPage, _ := m.Get("tags.rust.1")
	require.Equal(t, "/tags/rust/", tagPage.URL)
	require.Equal(t, "Rust", tagPage.Data.(map[string]any)["title"])
	require.Equal(t, "tag.html", tagPage.Template)

	post, ok := m.Get("posts.post-3")
	require.True(t, ok)
	require.Equal(t, "/posts/post-3/", post.URL)
	require.Equal(t, sitemap.SiteRenderer, post.Renderer)
	require.Equal(t, "post.html", post.Template)

	require.Equal(t, "/", m.URL("index"))
	require.Equal(t, "/tags/rust/", m.URL("tags", "rust"))
}

func TestCollectionMapper_URLOverrideAndSlugify(t *testing.T) {
	s := site.New(config.SiteConfig{})
	c := site.NewCollection("Release Notes")
	c.Set("v1.0", site.Record{})
	c.Set("custom", site.Record{"url": "/elsewhere/"})
	s.Collections["Release Notes"] = c

	m, err := (&CollectionMapper{Collection: "Release Notes", Template: "item.html"}).Map(context.Background(), nil, s)
	require.NoError(t, err)
	e, _ := m.Get("Release Notes.v1.0")
	require.Equal(t, "/release-notes/v1-0/", e.URL)
	e, _ = m.Get("Release Notes.custom")
	require.Equal(t, "/elsewhere/", e.URL)
}

func TestIndexMapper_SkipAndEmptyCollection(t *testing.T) {
	cfg := config.Default()
	cfg.Site.Pagination.PerPage = 2
	m, err := (&IndexMapper{Collection: "posts", Key: "blog_index", URL: "/", Path: "/index", Skip: 1}).Map(context.Background(), cfg, blogSite())
	require.NoError(t, err)
	require.Equal(t, 3, m.Len())
	require.Equal(t, "post-2", objects(t, m, "blog_index.1")[0].Slug())

	empty, err := (&IndexMapper{Collection: "nope", Key: "x", URL: "/x/"}).Map(context.Background(), cfg, blogSite())
	require.NoError(t, err)
	require.Equal(t, 1, empty.Len())
}

func TestPageMapper(t *testing.T) {
	s := site.New(config.SiteConfig{})
	pages := site.NewCollection("pages")
	pages.Set("index", site.Record{})
	pages.Set("about", site.Record{})
	pages.Set("feed-info", site.Record{"url": "/feeds/"})
	s.Collections["pages"] = pages

	m, err := (&PageMapper{Template: "page.html"}).Map(context.Background(), nil, s)
	require.NoError(t, err)
	for key, url := range map[string]string{"index": "/", "about": "/about/", "feed-info": "/feeds/"} {
		e, ok := m.Get(key)
		require.True(t, ok)
		require.Equal(t, url, e.URL)
	}
}

func TestDocumentationMapper_PrevNext(t *testing.T) {
	s := site.New(config.SiteConfig{})
	docs := site.NewCollection("docs")
	docs.Set("index", site.Record{"title": "Home"})
	docs.Set("guide.install", site.Record{"title": "Install"})
	docs.Set("faq", site.Record{"title": "FAQ"})
	s.Collections["docs"] = docs

	m, err := (&DocumentationMapper{BaseURL: "/docs"}).Map(context.Background(), nil, s)
	require.NoError(t, err)
	require.Equal(t, []string{"index", "guide.install", "faq"}, m.Keys())

	install, _ := m.Get("guide.install")
	require.Equal(t, "/docs/guide/install/", install.URL)
	data := install.Data.(site.Record)
	require.Equal(t, "index", data["previous_page"])
	require.Equal(t, "faq", data["next_page"])

	first, _ := m.Get("index")
	require.Equal(t, "/docs/", first.URL)
	require.Equal(t, "", first.Data.(site.Record)["previous_page"])

	orig, _ := docs.Get("guide.install")
	require.NotContains(t, orig, "next_page")
}

func TestManualAndRuleMappers(t *testing.T) {
	manual := &ManualMapper{Entries: []ManualEntry{
		{Key: "feed", Entry: sitemap.Entry{URL: "/atom.xml", Renderer: sitemap.FeedRenderer}},
		{Key: "static", Entry: sitemap.Entry{URL: "/static/**", Renderer: sitemap.StaticFilesRenderer}},
	}}
	m, err := manual.Map(context.Background(), nil, site.New(config.SiteConfig{}))
	require.NoError(t, err)
	require.Equal(t, []string{"feed", "static"}, m.Keys())

	rule := &RuleMapper{Rules: []MapRule{func(*site.Site) (*sitemap.Map, error) {
		out := sitemap.New("")
		out.Add("custom", &sitemap.Entry{URL: "/custom/"})
		return out, nil
	}}}
	m, err = rule.Map(context.Background(), nil, site.New(config.SiteConfig{}))
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())
}
