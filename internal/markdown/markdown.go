// Package markdown renders markup records with goldmark. Links are resolved
// through the site map and headings get slug ids.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"git.home.luguber.info/inful/kart/internal/slug"
)

// Resolver maps a link destination to a URL. An empty result keeps the
// destination unchanged.
type Resolver func(dest string) string

// Heading is one entry of a table of contents.
type Heading struct {
	Title string
	ID    string
	Level int
}

// ToHTML renders body to HTML. Raw HTML in the source is passed through.
func ToHTML(body []byte, resolve Resolver) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Table, extension.TaskList),
		goldmark.WithParserOptions(parser.WithASTTransformers(
			util.Prioritized(&headingIDs{}, 100),
			util.Prioritized(&linkResolver{resolve: resolve}, 200),
		)),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	var buf bytes.Buffer
	if err := md.Convert(body, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// TOC lists the headings of body in document order.
func TOC(body []byte) []Heading {
	root := goldmark.New().Parser().Parse(text.NewReader(body))
	var out []Heading
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if h, ok := n.(*gmast.Heading); ok {
			title := nodeText(h, body)
			out = append(out, Heading{Title: title, ID: slug.Make(title), Level: h.Level})
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})
	return out
}

type headingIDs struct{}

func (*headingIDs) Transform(doc *gmast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()
	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if h, ok := n.(*gmast.Heading); ok && entering {
			h.SetAttributeString("id", []byte(slug.Make(nodeText(h, source))))
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})
}

type linkResolver struct {
	resolve Resolver
}

func (l *linkResolver) Transform(doc *gmast.Document, _ text.Reader, _ parser.Context) {
	if l.resolve == nil {
		return
	}
	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if link, ok := n.(*gmast.Link); ok && entering {
			dest := string(link.Destination)
			if isLocalReference(dest) {
				return gmast.WalkContinue, nil
			}
			if resolved := l.resolve(dest); resolved != "" {
				link.Destination = []byte(resolved)
			}
		}
		return gmast.WalkContinue, nil
	})
}

// isLocalReference reports destinations that never go through the site map.
func isLocalReference(dest string) bool {
	return dest == "" || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "mailto:")
}

func nodeText(n gmast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *gmast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *gmast.String:
			b.Write(t.Value)
		default:
			b.WriteString(nodeText(c, source))
		}
	}
	return b.String()
}
