package miner

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/kart/internal/foundation/errors"
	"git.home.luguber.info/inful/kart/internal/frontmatter"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/slug"
)

// FileParser turns one file below dir into a record.
type FileParser func(dir, path string) (string, site.Record, error)

// ContentTypeMarkdown marks records whose content field holds markdown.
const ContentTypeMarkdown = "markdown"

// MarkdownExtensions are the file extensions read by markdown miners.
var MarkdownExtensions = []string{".md", ".markdown"}

// DataExtensions are the file extensions read by the data miner.
var DataExtensions = []string{".yml", ".yaml", ".json"}

// ParseMarkdown reads a front matter document. Fields become record fields;
// the body is stored under "content".
func ParseMarkdown(dir, path string) (string, site.Record, error) {
	id := IDFromPath(dir, path)
	raw, err := os.ReadFile(path) // #nosec G304 -- path comes from the watched content tree
	if err != nil {
		return id, nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read content file").
			WithContext("path", path).Build()
	}
	doc, err := frontmatter.Parse(raw)
	if err != nil {
		return id, nil, ferrors.WrapError(err, ferrors.CategoryContent, "malformed front matter").
			Warning().WithContext("path", path).Build()
	}

	rec := site.Record(doc.Fields)
	rec[site.FieldContent] = string(doc.Body)
	rec[site.FieldContentType] = ContentTypeMarkdown
	rec[site.FieldSource] = path
	if _, ok := rec[site.FieldTitle]; !ok {
		parts := strings.Split(id, ".")
		rec[site.FieldTitle] = slug.Title(parts[len(parts)-1])
	}
	return id, rec, nil
}

// ParseData reads a YAML or JSON document as one record. A document that is
// not a mapping is stored under "items".
func ParseData(dir, path string) (string, site.Record, error) {
	id := IDFromPath(dir, path)
	raw, err := os.ReadFile(path) // #nosec G304 -- path comes from the watched content tree
	if err != nil {
		return id, nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read data file").
			WithContext("path", path).Build()
	}

	var v any
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		err = dec.Decode(&v)
		v = normalizeJSON(v)
	} else {
		err = yaml.Unmarshal(raw, &v)
	}
	if err != nil {
		return id, nil, ferrors.WrapError(err, ferrors.CategoryContent, "malformed data file").
			Warning().WithContext("path", path).Build()
	}

	rec, ok := v.(map[string]any)
	if !ok {
		rec = map[string]any{"items": v}
	}
	rec[site.FieldSource] = path
	return id, site.Record(rec), nil
}

// normalizeJSON turns json.Number into int64 or float64.
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeJSON(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeJSON(item)
		}
		return t
	default:
		return v
	}
}
