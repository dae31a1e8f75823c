package miner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/watch"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Content.Root = root
	return cfg, root
}

type fakeRegistrar struct {
	dirs      map[string]bool
	handlers  map[string]watch.Handler
	unwatched []string
}

func (f *fakeRegistrar) Watch(dir string, recursive bool, h watch.Handler) error {
	if f.dirs == nil {
		f.dirs, f.handlers = map[string]bool{}, map[string]watch.Handler{}
	}
	f.dirs[dir] = recursive
	f.handlers[dir] = h
	return nil
}

func (f *fakeRegistrar) Unwatch(dir string) error {
	f.unwatched = append(f.unwatched, dir)
	return nil
}

func TestIDFromPath(t *testing.T) {
	require.Equal(t, "a.b", IDFromPath("/x", "/x/a/b.md"))
	require.Equal(t, "hello", IDFromPath("/x/posts", "/x/posts/hello.md"))
	require.Equal(t, "v1.2.notes", IDFromPath("/x", "/x/v1.2/notes.md"))
}

func TestCollectionMiner_ReadData(t *testing.T) {
	cfg, root := testConfig(t)
	dir := filepath.Join(root, "collections", "posts")
	writeFile(t, filepath.Join(dir, "b.md"), "---\ntitle: B\ntags: [go]\n---\nbody b\n")
	writeFile(t, filepath.Join(dir, "a.md"), "---\ntitle: A\n---\nbody a\n")
	writeFile(t, filepath.Join(dir, "draft.md"), "---\ntitle: D\ndraft: true\n---\n")
	writeFile(t, filepath.Join(dir, "broken.md"), "---\ntitle: [oops\n---\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "nested", "c.md"), "---\ntitle: C\n---\n")

	m := NewCollectionMiner("posts", cfg)
	require.NoError(t, m.ReadData(context.Background(), cfg))

	posts := m.Collect(cfg)["posts"]
	require.Equal(t, []string{"a", "b"}, posts.Keys())
	b, _ := posts.Get("b")
	require.Equal(t, "body b\n", b["content"])
	require.Equal(t, ContentTypeMarkdown, b["content_type"])
	require.Equal(t, []any{"go"}, b["tags"])
}

func TestCollectionMiner_DraftsKeptInDevMode(t *testing.T) {
	cfg, root := testConfig(t)
	cfg.Dev = true
	writeFile(t, filepath.Join(root, "collections", "posts", "draft.md"), "---\ntitle: D\ndraft: true\n---\n")

	m := NewCollectionMiner("posts", cfg)
	require.NoError(t, m.ReadData(context.Background(), cfg))
	require.Equal(t, 1, m.Collect(cfg)["posts"].Len())
}

func TestCollectionMiner_RereadIsIdentical(t *testing.T) {
	cfg, root := testConfig(t)
	dir := filepath.Join(root, "collections", "posts")
	for _, n := range []string{"x", "y", "z"} {
		writeFile(t, filepath.Join(dir, n+".md"), "---\ntitle: "+n+"\ndate: 2024-01-02\n---\ntext\n")
	}
	m := NewCollectionMiner("posts", cfg)
	require.NoError(t, m.ReadData(context.Background(), cfg))
	first := m.Collect(cfg)["posts"]
	require.NoError(t, m.ReadData(context.Background(), cfg))
	second := m.Collect(cfg)["posts"]

	require.Equal(t, first.Keys(), second.Keys())
	require.Equal(t, first.Records(), second.Records())
}

func TestCollectionMiner_IncrementalUpdates(t *testing.T) {
	cfg, root := testConfig(t)
	dir := filepath.Join(root, "collections", "posts")
	writeFile(t, filepath.Join(dir, "a.md"), "---\ntitle: A\n---\n")
	writeFile(t, filepath.Join(dir, "b.md"), "---\ntitle: B\n---\n")

	m := NewCollectionMiner("posts", cfg)
	require.NoError(t, m.ReadData(context.Background(), cfg))
	reg := &fakeRegistrar{}
	require.NoError(t, m.StartWatching(cfg, reg))
	absDir, _ := filepath.Abs(dir)
	require.Contains(t, reg.dirs, absDir)
	require.False(t, reg.dirs[absDir])

	writeFile(t, filepath.Join(dir, "a.md"), "---\ntitle: A2\n---\n")
	m.HandleEvent(watch.Event{Path: filepath.Join(absDir, "a.md"), Op: watch.Write})
	writeFile(t, filepath.Join(dir, "c.md"), "---\ntitle: C\n---\n")
	m.HandleEvent(watch.Event{Path: filepath.Join(absDir, "c.md"), Op: watch.Create})
	require.NoError(t, os.Remove(filepath.Join(dir, "b.md")))
	m.HandleEvent(watch.Event{Path: filepath.Join(absDir, "b.md"), Op: watch.Remove})

	posts := m.Collect(cfg)["posts"]
	require.Equal(t, []string{"a", "c"}, posts.Keys())
	a, _ := posts.Get("a")
	require.Equal(t, "A2", a["title"])

	require.NoError(t, os.Rename(filepath.Join(dir, "c.md"), filepath.Join(dir, "d.md")))
	m.HandleEvent(watch.Event{Path: filepath.Join(absDir, "c.md"), Op: watch.Rename})
	m.HandleEvent(watch.Event{Path: filepath.Join(absDir, "d.md"), Op: watch.Create})
	require.Equal(t, []string{"a", "d"}, m.Collect(cfg)["posts"].Keys())

	writeFile(t, filepath.Join(dir, "a.md"), "---\ntitle: [broken\n---\n")
	m.HandleEvent(watch.Event{Path: filepath.Join(absDir, "a.md"), Op: watch.Write})
	require.Equal(t, []string{"d"}, m.Collect(cfg)["posts"].Keys())

	writeFile(t, filepath.Join(dir, "d.md"), "---\ntitle: D\ndraft: true\n---\n")
	m.HandleEvent(watch.Event{Path: filepath.Join(absDir, "d.md"), Op: watch.Write})
	require.Zero(t, m.Collect(cfg)["posts"].Len())
}

func TestCollect_ReturnsCopies(t *testing.T) {
	cfg, root := testConfig(t)
	writeFile(t, filepath.Join(root, "pages", "about.md"), "---\ntitle: About\n---\n")
	m := NewPageMiner(cfg)
	require.NoError(t, m.ReadData(context.Background(), cfg))

	c := m.Collect(cfg)["pages"]
	rec, _ := c.Get("about")
	rec["title"] = "changed"
	again, _ := m.Collect(cfg)["pages"].Get("about")
	require.Equal(t, "About", again["title"])
}

func TestDataMiner(t *testing.T) {
	cfg, root := testConfig(t)
	writeFile(t, filepath.Join(root, "data", "authors.yml"), "name: Ada\nlinks:\n  - https://a.example\n")
	writeFile(t, filepath.Join(root, "data", "menu.json"), `{"items": [{"title": "Home", "weight": 1}]}`)
	writeFile(t, filepath.Join(root, "data", "list.yaml"), "- a\n- b\n")

	m := NewDataMiner(cfg)
	require.NoError(t, m.ReadData(context.Background(), cfg))
	data := m.Collect(cfg)["data"]
	require.Equal(t, []string{"authors", "list", "menu"}, data.Keys())

	authors, _ := data.Get("authors")
	require.Equal(t, "Ada", authors["name"])
	menu, _ := data.Get("menu")
	item := menu["items"].([]any)[0].(map[string]any)
	require.Equal(t, int64(1), item["weight"])
	list, _ := data.Get("list")
	require.Equal(t, []any{"a", "b"}, list["items"])
}

func TestMissingDirectoryIsEmpty(t *testing.T) {
	cfg, _ := testConfig(t)
	m := NewTaxonomyMiner("tags", cfg)
	require.NoError(t, m.ReadData(context.Background(), cfg))
	require.Zero(t, m.Collect(cfg)["tags"].Len())
}

func TestReadData_HonorsCancellation(t *testing.T) {
	cfg, root := testConfig(t)
	writeFile(t, filepath.Join(root, "pages", "a.md"), "---\ntitle: A\n---\n")
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	require.Error(t, NewPageMiner(cfg).ReadData(ctx, cfg))
}
