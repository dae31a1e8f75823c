// Package miner reads content sources into site collections and keeps them
// current while the source tree changes.
package miner

import (
	"context"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/watch"
)

// Miner owns one or more collections.
type Miner interface {
	Name() string
	// ReadData performs a full scan of the bound source.
	ReadData(ctx context.Context, cfg *config.Config) error
	// Collect returns copies of the owned collections keyed by name.
	Collect(cfg *config.Config) map[string]*site.Collection
	// StartWatching registers for incremental updates.
	StartWatching(cfg *config.Config, w watch.Registrar) error
	StopWatching(cfg *config.Config) error
}

// Auxiliary is implemented by miners that also produce site values.
type Auxiliary interface {
	Values() map[string]any
}

// IDFromPath returns the slug of path relative to base: directory parts are
// joined with "." and the extension is dropped ("a/b.md" becomes "a.b").
func IDFromPath(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ReplaceAll(rel, "/", ".")
}
