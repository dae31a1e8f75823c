package modifier

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

func testSite(records map[string]site.Record, order ...string) *site.Site {
	s := site.New(config.SiteConfig{Name: "t"})
	c := site.NewCollection("posts")
	for _, slug := range order {
		c.Set(slug, records[slug])
	}
	s.Collections["posts"] = c
	return s
}

func TestCollectionSorter_DatesDescendingIsIdempotent(t *testing.T) {
	s := testSite(map[string]site.Record{
		"old":    {"date": "2020-01-01"},
		"new":    {"date": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		"mid1":   {"date": "2022-01-01"},
		"mid2":   {"date": "2022-01-01"},
		"nodate": {},
	}, "nodate", "old", "mid1", "new", "mid2")

	sorter := &CollectionSorter{Collection: "posts", Key: "date", Reverse: true}
	ctx := context.Background()
	require.NoError(t, sorter.Modify(ctx, nil, s))
	first := s.Collection("posts").Keys()
	require.Equal(t, []string{"new", "mid1", "mid2", "old", "nodate"}, first)

	require.NoError(t, sorter.Modify(ctx, nil, s))
	require.Equal(t, first, s.Collection("posts").Keys())
}

func TestCollectionSorter_NumbersAndStrings(t *testing.T) {
	s := testSite(map[string]site.Record{
		"a": {"weight": 10, "title": "b"},
		"b": {"weight": 2, "title": "a"},
	}, "a", "b")
	ctx := context.Background()
	require.NoError(t, (&CollectionSorter{Collection: "posts", Key: "weight"}).Modify(ctx, nil, s))
	require.Equal(t, []string{"b", "a"}, s.Collection("posts").Keys())
	require.NoError(t, (&CollectionSorter{Collection: "posts", Key: "title", Reverse: true}).Modify(ctx, nil, s))
	require.Equal(t, []string{"a", "b"}, s.Collection("posts").Keys())
	require.NoError(t, (&CollectionSorter{Collection: "missing", Key: "x"}).Modify(ctx, nil, s))
}

func TestRuleModifiers(t *testing.T) {
	s := testSite(map[string]site.Record{"a": {}}, "a")
	calls := 0
	rc := &RuleContentModifier{Rules: []ContentRule{
		func(s *site.Site) error { calls++; s.Values["x"] = 1; return nil },
		func(*site.Site) error { return errors.New("boom") },
		func(*site.Site) error { calls++; return nil },
	}}
	require.ErrorContains(t, rc.Modify(context.Background(), nil, s), "boom")
	require.Equal(t, 1, calls)

	m := sitemap.New("")
	rm := &RuleMapModifier{Rules: []MapRule{func(_ *site.Site, m *sitemap.Map) error {
		m.Add("extra", &sitemap.Entry{URL: "/extra/"})
		return nil
	}}}
	require.NoError(t, rm.Modify(context.Background(), nil, s, m))
	_, ok := m.Get("extra")
	require.True(t, ok)
}

func TestFingerprint_DeterministicAndContentSensitive(t *testing.T) {
	rec := site.Record{"title": "T", "content": "body", "content_type": "markdown", "tags": []any{"go"}}
	s := testSite(map[string]site.Record{"a": rec}, "a")

	require.NoError(t, Fingerprint{}.Modify(context.Background(), nil, s))
	first, _ := s.Collection("posts").Get("a")
	fp := first.String("fingerprint")
	require.NotEmpty(t, fp)

	require.NoError(t, Fingerprint{}.Modify(context.Background(), nil, s))
	again, _ := s.Collection("posts").Get("a")
	require.Equal(t, fp, again.String("fingerprint"))

	other, err := ComputeFingerprint(site.Record{"title": "T", "content": "changed", "tags": []any{"go"}})
	require.NoError(t, err)
	require.NotEqual(t, fp, other)
}

func TestTableOfContents(t *testing.T) {
	s := testSite(map[string]site.Record{
		"a": {"content": "# One\n## Two\n", "content_type": "markdown"},
		"b": {"name": "data record"},
	}, "a", "b")
	require.NoError(t, TableOfContents{}.Modify(context.Background(), nil, s))
	a, _ := s.Collection("posts").Get("a")
	require.Equal(t, []any{
		map[string]any{"title": "One", "id": "one", "level": 1},
		map[string]any{"title": "Two", "id": "two", "level": 2},
	}, a["toc"])
	b, _ := s.Collection("posts").Get("b")
	require.NotContains(t, b, "toc")
}

func TestGlobalTOC(t *testing.T) {
	s := site.New(config.SiteConfig{})
	s.Values["docs_global_toc"] = []any{
		map[string]any{"title": "Intro", "slug": "index", "level": 0},
		map[string]any{"title": "Guide", "slug": nil, "level": 0},
		map[string]any{"title": "Install", "slug": "guide.install", "level": 1},
	}
	m := sitemap.New("https://docs.example")
	m.Add("index", &sitemap.Entry{URL: "/"})
	m.Add("guide.install", &sitemap.Entry{URL: "/guide.install/"})

	require.NoError(t, GlobalTOC{Source: "docs_global_toc"}.Modify(context.Background(), nil, s, m))
	require.Equal(t, []any{
		map[string]any{"title": "Intro", "url": "https://docs.example/", "level": 0},
		map[string]any{"title": "Guide", "url": "", "level": 0},
		map[string]any{"title": "Install", "url": "https://docs.example/guide.install/", "level": 1},
	}, s.Values[GlobalTOCValue])
}

func TestLinkCheck_ReportsUnresolved(t *testing.T) {
	s := testSite(map[string]site.Record{
		"a": {"content": "[ok](posts.a) [bad](posts.nope) [anchor](#x)", "content_type": "markdown"},
	}, "a")
	m := sitemap.New("")
	m.Add("posts.a", &sitemap.Entry{URL: "/posts/a/"})
	var unresolved []string
	m.OnUnresolved = func(name string) { unresolved = append(unresolved, name) }

	require.NoError(t, LinkCheck{}.Modify(context.Background(), nil, s, m))
	require.Equal(t, []string{"posts.nope"}, unresolved)
}

func TestGitDates(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	path := filepath.Join(root, "posts", "a.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("---\ntitle: A\n---\n"), 0o600))
	_, err = wt.Add("posts/a.md")
	require.NoError(t, err)
	when := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err = wt.Commit("add a", &git.CommitOptions{Author: &object.Signature{Name: "t", Email: "t@example.com", When: when}})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Content.Root = root
	s := testSite(map[string]site.Record{
		"a":         {"source_path": path},
		"explicit":  {"source_path": path, "lastmod": "2000-01-01"},
		"untracked": {"source_path": filepath.Join(root, "posts", "new.md")},
	}, "a", "explicit", "untracked")

	g := &GitDates{}
	require.NoError(t, g.Modify(context.Background(), cfg, s))
	a, _ := s.Collection("posts").Get("a")
	got, ok := a["lastmod"].(time.Time)
	require.True(t, ok)
	require.True(t, when.Equal(got))
	e, _ := s.Collection("posts").Get("explicit")
	require.Equal(t, "2000-01-01", e["lastmod"])
	u, _ := s.Collection("posts").Get("untracked")
	require.NotContains(t, u, "lastmod")
}

func TestGitDates_OutsideRepositoryIsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Content.Root = t.TempDir()
	s := testSite(map[string]site.Record{"a": {"source_path": "x.md"}}, "a")
	require.NoError(t, (&GitDates{}).Modify(context.Background(), cfg, s))
	a, _ := s.Collection("posts").Get("a")
	require.NotContains(t, a, "lastmod")
}
