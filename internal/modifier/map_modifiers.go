package modifier

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/logfields"
	"git.home.luguber.info/inful/kart/internal/markdown"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

// GlobalTOCValue is the site value written by GlobalTOC.
const GlobalTOCValue = "global_toc"

// GlobalTOC turns the documentation table of contents into a navigation list
// of {title, url, level}. Sections have an empty url.
type GlobalTOC struct {
	// Source is the site value holding the {title, slug, level} list.
	Source string
}

// Modify writes site.Values["global_toc"].
func (g GlobalTOC) Modify(_ context.Context, _ *config.Config, s *site.Site, m *sitemap.Map) error {
	src, _ := s.Values[g.Source].([]any)
	nav := make([]any, 0, len(src))
	for _, item := range src {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		url := ""
		if slug, ok := entry["slug"].(string); ok && slug != "" {
			url = m.URL(slug)
		}
		nav = append(nav, map[string]any{
			"title": entry["title"],
			"url":   url,
			"level": entry["level"],
		})
	}
	s.Values[GlobalTOCValue] = nav
	return nil
}

// LinkCheck resolves every link of every markdown record against the map so
// broken references are reported during the cycle instead of at render time.
type LinkCheck struct{}

// Modify resolves the links. Unresolved links are reported by the map itself.
func (LinkCheck) Modify(ctx context.Context, _ *config.Config, s *site.Site, m *sitemap.Map) error {
	checked := 0
	for _, name := range s.Names() {
		for _, rec := range s.Collection(name).Records() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if rec.String(site.FieldContentType) != "markdown" {
				continue
			}
			for _, l := range markdown.Links([]byte(rec.String(site.FieldContent))) {
				if l.NeedsResolution() {
					m.URL(l.Destination)
					checked++
				}
			}
		}
	}
	slog.Debug("Checked content links", logfields.Stage("link_check"), slog.Int("links", checked))
	return nil
}
