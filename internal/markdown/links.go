package markdown

import (
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// LinkKind tells how a link was written.
type LinkKind string

const (
	LinkKindInline LinkKind = "inline"
	LinkKindImage  LinkKind = "image"
	LinkKindAuto   LinkKind = "auto"
)

// Link is a link-like construct found in a body.
type Link struct {
	Kind        LinkKind
	Destination string
}

// Links extracts inline links, images and autolinks from body.
// Reference-style links are reported as inline links.
func Links(body []byte) []Link {
	root := goldmark.New().Parser().Parse(text.NewReader(body))
	var links []Link
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.AutoLink:
			links = append(links, Link{Kind: LinkKindAuto, Destination: string(node.URL(body))})
		case *gmast.Image:
			links = append(links, Link{Kind: LinkKindImage, Destination: string(node.Destination)})
		case *gmast.Link:
			links = append(links, Link{Kind: LinkKindInline, Destination: string(node.Destination)})
		}
		return gmast.WalkContinue, nil
	})
	return links
}

// NeedsResolution reports whether the link destination goes through the site map.
func (l Link) NeedsResolution() bool {
	return l.Kind == LinkKindInline && !isLocalReference(l.Destination)
}
