package modifier

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/logfields"
	"git.home.luguber.info/inful/kart/internal/site"
)

// GitDates sets "lastmod" from the last commit touching each record's source
// file. Records with an explicit lastmod keep it. Outside a repository the
// modifier does nothing.
type GitDates struct {
	mu    sync.Mutex
	head  plumbing.Hash
	dates map[string]time.Time
}

// Modify stamps the records.
func (g *GitDates) Modify(ctx context.Context, cfg *config.Config, s *site.Site) error {
	repo, err := git.PlainOpenWithOptions(cfg.Content.Root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		slog.Debug("Content root is not a git repository, skipping git dates", logfields.Path(cfg.Content.Root))
		return nil
	}
	ref, err := repo.Head()
	if err != nil {
		return nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil
	}
	top := wt.Filesystem.Root()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dates == nil || g.head != ref.Hash() {
		g.head = ref.Hash()
		g.dates = map[string]time.Time{}
	}

	for _, name := range s.Names() {
		for _, rec := range s.Collection(name).Records() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, explicit := rec["lastmod"]; explicit {
				continue
			}
			src := rec.String(site.FieldSource)
			if src == "" {
				continue
			}
			if when, ok := g.lastCommit(repo, top, src); ok {
				rec["lastmod"] = when
			}
		}
	}
	return nil
}

func (g *GitDates) lastCommit(repo *git.Repository, top, src string) (time.Time, bool) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return time.Time{}, false
	}
	if when, ok := g.dates[abs]; ok {
		return when, !when.IsZero()
	}
	rel, err := filepath.Rel(top, abs)
	if err != nil {
		return time.Time{}, false
	}
	rel = filepath.ToSlash(rel)

	var when time.Time
	iter, err := repo.Log(&git.LogOptions{From: g.head, FileName: &rel})
	if err == nil {
		if c, err := iter.Next(); err == nil {
			when = c.Committer.When.UTC()
		}
		iter.Close()
	}
	g.dates[abs] = when
	return when, !when.IsZero()
}
