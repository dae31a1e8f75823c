package mapper

import (
	"context"
	"strings"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

// DocumentationMapper routes the docs collection in tree order. Nested slugs
// become nested paths ("guide.install" is served at "/guide/install/"). Each
// payload links to its neighbours through "previous_page" and "next_page".
type DocumentationMapper struct {
	Collection string
	BaseURL    string
	Template   string
	Renderer   string
}

// Map routes the docs.
func (d *DocumentationMapper) Map(_ context.Context, _ *config.Config, s *site.Site) (*sitemap.Map, error) {
	name := d.Collection
	if name == "" {
		name = "docs"
	}
	out := sitemap.New("")
	col := s.Collection(name)
	if col == nil {
		return out, nil
	}

	records := col.Records()
	for i, rec := range records {
		data := site.Record{}
		for k, v := range rec {
			data[k] = v
		}
		data["previous_page"] = ""
		data["next_page"] = ""
		if i > 0 {
			data["previous_page"] = records[i-1].Slug()
		}
		if i < len(records)-1 {
			data["next_page"] = records[i+1].Slug()
		}

		id := rec.Slug()
		url := rec.String(site.FieldURL)
		switch {
		case url != "":
		case id == "index":
			url = "/"
		default:
			url = "/" + strings.ReplaceAll(id, ".", "/") + "/"
		}
		out.Add(id, &sitemap.Entry{
			URL:      d.BaseURL + url,
			Data:     data,
			Template: d.Template,
			Renderer: rendererOr(d.Renderer),
		})
	}
	return out, nil
}
