package renderer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/kart/internal/config"
	ferrors "git.home.luguber.info/inful/kart/internal/foundation/errors"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

type stubSingle struct {
	calls atomic.Int32
	fail  string
}

func (s *stubSingle) ContentType() string { return "text/plain" }

func (s *stubSingle) RenderSingle(e *sitemap.Entry, _ *config.Config, _ *site.Site, _ *sitemap.Map) ([]byte, error) {
	s.calls.Add(1)
	if e.Key == s.fail {
		return nil, errors.New("boom")
	}
	return []byte("body of " + e.Key), nil
}

func testMap() *sitemap.Map {
	m := sitemap.New("")
	m.Add("index", &sitemap.Entry{URL: "/", Renderer: "stub"})
	m.Add("about", &sitemap.Entry{URL: "/about/", Renderer: "stub"})
	m.Add("feed", &sitemap.Entry{URL: "/atom.xml", Renderer: "stub"})
	m.Add("other", &sitemap.Entry{URL: "/other/", Renderer: "someone_else"})
	return m
}

func TestOutputPath(t *testing.T) {
	dest := t.TempDir()
	cases := map[string]string{
		"/":          "index.html",
		"/about/":    filepath.Join("about", "index.html"),
		"/atom.xml":  "atom.xml",
		"/a/b/c.txt": filepath.Join("a", "b", "c.txt"),
	}
	for url, want := range cases {
		got, err := OutputPath(dest, url)
		require.NoError(t, err, url)
		require.Equal(t, filepath.Join(dest, want), got, url)
	}

	_, err := OutputPath(dest, "/../escape.html")
	require.Error(t, err)
}

func TestFileRenderer_WritesOnlyOwnEntries(t *testing.T) {
	dest := t.TempDir()
	single := &stubSingle{}
	r := &FileRenderer{Tag: "stub", Single: single, Workers: 3}

	require.NoError(t, r.Render(context.Background(), config.Default(), site.New(config.SiteConfig{}), testMap(), dest))
	require.EqualValues(t, 3, single.calls.Load())

	got, err := os.ReadFile(filepath.Join(dest, "about", "index.html"))
	require.NoError(t, err)
	require.Equal(t, "body of about", string(got))
	require.FileExists(t, filepath.Join(dest, "atom.xml"))
	require.NoFileExists(t, filepath.Join(dest, "other", "index.html"))
}

func TestFileRenderer_ContinuesAfterEntryFailure(t *testing.T) {
	dest := t.TempDir()
	r := &FileRenderer{Tag: "stub", Single: &stubSingle{fail: "about"}}

	err := r.Render(context.Background(), config.Default(), site.New(config.SiteConfig{}), testMap(), dest)
	require.Error(t, err)
	require.FileExists(t, filepath.Join(dest, "index.html"))
	require.FileExists(t, filepath.Join(dest, "atom.xml"))
}

func TestFileRenderer_Serve(t *testing.T) {
	r := &FileRenderer{Tag: "stub", Single: &stubSingle{}}
	m := testMap()
	e, _ := m.Get("about")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/about/", nil)
	require.NoError(t, r.Serve(rec, req, e, config.Default(), site.New(config.SiteConfig{}), m))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	require.Equal(t, "body of about", rec.Body.String())
}

func TestMountPrefix(t *testing.T) {
	require.Equal(t, "/static/", MountPrefix("/static/**"))
	require.Equal(t, "/", MountPrefix("/*"))
	require.Equal(t, "/files/", MountPrefix("/files"))
}

func TestDirectoryRenderer_RenderAndServe(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "static", "css"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "static", "css", "site.css"), []byte("body{}"), 0o600))

	cfg := config.Default()
	cfg.Content.Root = root
	r := NewStaticFilesRenderer(cfg)

	m := sitemap.New("")
	m.Add("static", &sitemap.Entry{URL: "/static/**", Renderer: sitemap.StaticFilesRenderer})

	dest := t.TempDir()
	require.NoError(t, r.Render(context.Background(), cfg, nil, m, dest))
	require.FileExists(t, filepath.Join(dest, "static", "css", "site.css"))

	e, _ := m.Get("static")
	rec := httptest.NewRecorder()
	require.NoError(t, r.Serve(rec, httptest.NewRequest(http.MethodGet, "/static/css/site.css", nil), e, cfg, nil, m))
	require.Equal(t, "body{}", rec.Body.String())

	err := r.Serve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/static/../../etc/passwd", nil), e, cfg, nil, m)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	err = r.Serve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/static/css", nil), e, cfg, nil, m)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestDirectoryRenderer_MissingDirIsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Content.Root = t.TempDir()
	m := sitemap.New("")
	m.Add("root", &sitemap.Entry{URL: "/*", Renderer: sitemap.RootDirRenderer})
	require.NoError(t, NewRootDirRenderer(cfg).Render(context.Background(), cfg, nil, m, t.TempDir()))
}
