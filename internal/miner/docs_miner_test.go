package miner

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/watch"
)

func TestDocumentationMiner_NavigationOrder(t *testing.T) {
	cfg, root := testConfig(t)
	cfg.Docs = &config.DocsConfig{Dir: "docs"}
	docs := filepath.Join(root, "docs")
	writeFile(t, filepath.Join(docs, "navigation.yml"), "- page: index.md\n- section: guide\n  name: User Guide\n- page: faq.md\n- page: missing.md\n")
	writeFile(t, filepath.Join(docs, "index.md"), "---\ntitle: Welcome\n---\n")
	writeFile(t, filepath.Join(docs, "faq.md"), "---\ntitle: FAQ\n---\n")
	writeFile(t, filepath.Join(docs, "guide", "install.md"), "---\ntitle: Install\n---\n")
	writeFile(t, filepath.Join(docs, "guide", "usage.md"), "# no front matter\n")

	m := NewDocumentationMiner(cfg)
	require.NoError(t, m.ReadData(context.Background(), cfg))

	require.Equal(t, []string{"index", "guide.install", "guide.usage", "faq"}, m.Collect(cfg)[DocsCollection].Keys())
	toc := m.Values()[DocsTOCValue].([]any)
	require.Equal(t, []any{
		map[string]any{"title": "Welcome", "slug": "index", "level": 0},
		map[string]any{"title": "User Guide", "slug": nil, "level": 0},
		map[string]any{"title": "Install", "slug": "guide.install", "level": 1},
		map[string]any{"title": "Usage", "slug": "guide.usage", "level": 1},
		map[string]any{"title": "FAQ", "slug": "faq", "level": 0},
	}, toc)
}

func TestDocumentationMiner_AnyEventRereadsTree(t *testing.T) {
	cfg, root := testConfig(t)
	docs := filepath.Join(root, "docs")
	writeFile(t, filepath.Join(docs, "a.md"), "---\ntitle: A\n---\n")

	m := NewDocumentationMiner(cfg)
	require.NoError(t, m.ReadData(context.Background(), cfg))
	reg := &fakeRegistrar{}
	require.NoError(t, m.StartWatching(cfg, reg))
	abs, _ := filepath.Abs(docs)
	require.True(t, reg.dirs[abs])

	writeFile(t, filepath.Join(docs, "sub", "b.md"), "---\ntitle: B\n---\n")
	reg.handlers[abs](watch.Event{Path: filepath.Join(abs, "sub", "b.md"), Op: watch.Create})
	require.Equal(t, []string{"a", "sub.b"}, m.Collect(cfg)[DocsCollection].Keys())
}
