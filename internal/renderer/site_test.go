package renderer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

func writeTemplate(t *testing.T, dir, name, body string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
}

func siteFixture(t *testing.T) (*config.Config, *site.Site, *sitemap.Map) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Content.Root = root
	cfg.Site.Name = "Example"

	tpl := filepath.Join(root, "templates")
	writeTemplate(t, tpl, "post.html",
		`<h1>{{ .page.title }}</h1><p>{{ date_to_string .page.date }}</p>{{ html .page.content }}<a href="{{ url "pages" "about" }}">about</a>`)
	writeTemplate(t, tpl, "partials/list.html",
		`{{ range .site.posts }}{{ .slug }};{{ end }}`)

	s := site.New(cfg.Site)
	posts := site.NewCollection("posts")
	s.Collections["posts"] = posts
	posts.Set("hello", site.Record{
		"title":   "Hello",
		"date":    time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC),
		"content": "Read [about](pages.about).\n\n## Details\n",
	})

	m := sitemap.New("")
	m.Add("posts.hello", &sitemap.Entry{URL: "/posts/hello/", Data: posts.Records()[0], Template: "post.html", Renderer: sitemap.SiteRenderer})
	m.Add("pages.about", &sitemap.Entry{URL: "/about/", Data: site.Record{"title": "About"}, Template: "partials/list.html", Renderer: sitemap.SiteRenderer})
	return cfg, s, m
}

func TestSiteTemplates_RenderSingle(t *testing.T) {
	cfg, s, m := siteFixture(t)
	tpl := &SiteTemplates{}
	require.NoError(t, tpl.Prepare(cfg))

	e, _ := m.Get("posts.hello")
	out, err := tpl.RenderSingle(e, cfg, s, m)
	require.NoError(t, err)
	html := string(out)
	require.Contains(t, html, "<h1>Hello</h1>")
	require.Contains(t, html, "Mar 04, 2021")
	require.Contains(t, html, `<a href="/about/">about</a>`)
	require.Contains(t, html, `<h2 id="details">Details</h2>`)

	e, _ = m.Get("pages.about")
	out, err = tpl.RenderSingle(e, cfg, s, m)
	require.NoError(t, err)
	require.Equal(t, "hello;", string(out))
}

func TestSiteTemplates_MissingTemplate(t *testing.T) {
	cfg, s, m := siteFixture(t)
	tpl := &SiteTemplates{}
	require.NoError(t, tpl.Prepare(cfg))

	_, err := tpl.RenderSingle(&sitemap.Entry{Key: "x", Template: "nope.html"}, cfg, s, m)
	require.Error(t, err)
}

func TestSiteRenderer_RenderWritesIndexFiles(t *testing.T) {
	cfg, s, m := siteFixture(t)
	dest := t.TempDir()
	require.NoError(t, NewSiteRenderer(2).Render(context.Background(), cfg, s, m, dest))
	require.FileExists(t, filepath.Join(dest, "posts", "hello", "index.html"))
	require.FileExists(t, filepath.Join(dest, "about", "index.html"))
}

func TestTemplateData_Paginator(t *testing.T) {
	e := &sitemap.Entry{URL: "/", Data: map[string]any{"paginator": sitemap.Paginator{Index: 1}}}
	data := TemplateData(e, nil)
	page := data["page"].(map[string]any)
	require.Equal(t, "/", page["url"])
	require.Equal(t, 1, page["paginator"].(sitemap.Paginator).Index)
}

func TestDateToString(t *testing.T) {
	require.Equal(t, "Jan 02, 2006", DateToString("2006-01-02"))
	require.Equal(t, "", DateToString(42))
}

func TestSiteRenderer_ServeUsesLoadedTemplates(t *testing.T) {
	cfg, s, m := siteFixture(t)
	r := NewSiteRenderer(1)
	require.NoError(t, r.StartServing(cfg))
	e, _ := m.Get("posts.hello")

	serve := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		err := r.Serve(rec, httptest.NewRequest(http.MethodGet, e.URL, nil), e, cfg, s, m)
		require.NoError(t, err)
		return rec
	}

	tplDir := filepath.Join(cfg.Content.Root, "templates")
	writeTemplate(t, tplDir, "post.html", `<h3>{{ .page.title }}</h3>`)
	require.Contains(t, serve().Body.String(), "<h1>Hello</h1>")

	writeTemplate(t, tplDir, "post.html", `{{ .page.title `)
	require.Contains(t, serve().Body.String(), "<h1>Hello</h1>")

	require.Error(t, r.StartServing(cfg))
	require.Contains(t, serve().Body.String(), "<h1>Hello</h1>", "failed reload keeps the previous templates")

	writeTemplate(t, tplDir, "post.html", `<h3>{{ .page.title }}</h3>`)
	require.NoError(t, r.StartServing(cfg))
	require.Equal(t, "<h3>Hello</h3>", serve().Body.String())
}
