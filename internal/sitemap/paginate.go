package sitemap

import (
	"strconv"
	"strings"

	"git.home.luguber.info/inful/kart/internal/site"
)

// Paginator is the payload of one page in a paginated group.
type Paginator struct {
	Objects      []site.Record
	Index        int
	Total        int
	NextPage     string
	PreviousPage string
}

// HasNext reports whether a following page exists.
func (p Paginator) HasNext() bool { return p.NextPage != "" }

// HasPrevious reports whether a preceding page exists.
func (p Paginator) HasPrevious() bool { return p.PreviousPage != "" }

// PageSpec describes a paginated group.
type PageSpec struct {
	// Key is the logical key prefix; pages are "{Key}.{n}".
	Key string
	// URL is the canonical URL of page 1.
	URL string
	// Path is the prefix of pages 2..n, which live at "{Path}/{n}/".
	// Defaults to URL without its trailing slash.
	Path     string
	PerPage  int
	Skip     int
	Template string
	Renderer string
	// Extra values are copied into every page payload next to "paginator".
	Extra map[string]any
}

// Paginate splits objects into pages. There is always at least one page,
// possibly empty. A non-positive PerPage is treated as 1.
func Paginate(objects []site.Record, ps PageSpec) *Map {
	perPage := max(ps.PerPage, 1)
	skip := min(max(ps.Skip, 0), len(objects))
	items := objects[skip:]

	pages := max((len(items)+perPage-1)/perPage, 1)

	path := ps.Path
	if path == "" {
		path = strings.TrimSuffix(ps.URL, "/")
	}
	firstURL := ps.URL
	if firstURL == "" {
		firstURL = path + "/"
	}

	out := New("")
	for i := 1; i <= pages; i++ {
		lo := min((i-1)*perPage, len(items))
		hi := min(i*perPage, len(items))

		p := Paginator{
			Objects: items[lo:hi:hi],
			Index:   i,
			Total:   pages,
		}
		if i > 1 {
			p.PreviousPage = pageKey(ps.Key, i-1)
		}
		if i < pages {
			p.NextPage = pageKey(ps.Key, i+1)
		}

		data := make(map[string]any, len(ps.Extra)+1)
		for k, v := range ps.Extra {
			data[k] = v
		}
		data["paginator"] = p

		url := firstURL
		if i > 1 {
			url = path + "/" + strconv.Itoa(i) + "/"
		}
		out.Add(pageKey(ps.Key, i), &Entry{
			URL:      url,
			Data:     data,
			Template: ps.Template,
			Renderer: ps.Renderer,
		})
	}
	return out
}

func pageKey(base string, n int) string {
	return base + "." + strconv.Itoa(n)
}
