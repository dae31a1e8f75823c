// Package site holds the mined content: records grouped into ordered
// collections, plus site-level configuration values.
package site

import (
	"fmt"
	"strings"
	"time"
)

// Well-known record fields.
const (
	FieldSlug        = "slug"
	FieldContent     = "content"
	FieldContentType = "content_type"
	FieldTitle       = "title"
	FieldDate        = "date"
	FieldDraft       = "draft"
	FieldURL         = "url"
	FieldSource      = "source_path"
)

// Record is one mined content item.
type Record map[string]any

// Slug returns the record's slug field.
func (r Record) Slug() string { return r.String(FieldSlug) }

// String returns a string field, or "" when absent. Non-string scalars are
// formatted with fmt.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// Bool reports whether a boolean field is set to true.
func (r Record) Bool(key string) bool {
	b, ok := r[key].(bool)
	return ok && b
}

// Time returns a time field. Strings in RFC 3339 or YYYY-MM-DD form are parsed.
func (r Record) Time(key string) (time.Time, bool) { return ParseTime(r[key]) }

// ParseTime converts a field value to a time.
func ParseTime(v any) (time.Time, bool) {
	switch v := v.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Strings returns a list field as strings. A scalar string is a one-element list.
func (r Record) Strings(key string) []string {
	switch v := r[key].(type) {
	case string:
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// HasTerm reports whether field equals term or, for lists, contains it.
func (r Record) HasTerm(field, term string) bool {
	for _, v := range r.Strings(field) {
		if v == term {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(CopyMap(r))
}

// CopyMap creates a deep copy of a map[string]any.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = CopyValue(v)
	}
	return result
}

// CopyValue creates a deep copy of maps and slices; other values are returned as is.
func CopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CopyMap(val)
	case Record:
		return val.Clone()
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = CopyValue(item)
		}
		return result
	case []string:
		return append([]string(nil), val...)
	case []map[string]any:
		result := make([]map[string]any, len(val))
		for i, item := range val {
			result[i] = CopyMap(item)
		}
		return result
	case []Record:
		result := make([]Record, len(val))
		for i, item := range val {
			result[i] = item.Clone()
		}
		return result
	default:
		return v
	}
}
