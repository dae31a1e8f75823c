package modifier

import (
	"context"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/markdown"
	"git.home.luguber.info/inful/kart/internal/site"
)

// TableOfContents derives a "toc" list of headings for markdown records.
type TableOfContents struct{}

// Modify sets the toc field.
func (TableOfContents) Modify(_ context.Context, _ *config.Config, s *site.Site) error {
	for _, name := range s.Names() {
		for _, rec := range s.Collection(name).Records() {
			if rec.String(site.FieldContentType) != "markdown" {
				continue
			}
			headings := markdown.TOC([]byte(rec.String(site.FieldContent)))
			toc := make([]any, 0, len(headings))
			for _, h := range headings {
				toc = append(toc, map[string]any{"title": h.Title, "id": h.ID, "level": h.Level})
			}
			rec["toc"] = toc
		}
	}
	return nil
}
