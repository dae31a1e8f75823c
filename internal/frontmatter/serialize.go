package frontmatter

import (
	"bytes"
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Canonical renders fields as YAML with every mapping sorted by key, so equal
// front matter always yields equal bytes. Keys for which skip reports true are
// left out at the top level. Empty input renders as an empty slice.
func Canonical(fields map[string]any, skip func(key string) bool) ([]byte, error) {
	top := make(map[string]any, len(fields))
	for k, v := range fields {
		if skip == nil || !skip(k) {
			top[k] = v
		}
	}
	if len(top) == 0 {
		return []byte{}, nil
	}

	node, err := canonicalNode(reflect.ValueOf(top))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("encode canonical front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func leaf(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

// canonicalNode walks v with reflection so named map and slice types
// (records, string lists) are handled like their underlying kinds.
func canonicalNode(v reflect.Value) (*yaml.Node, error) {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return leaf("!!null", "null"), nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return leaf("!!null", "null"), nil
	}
	if t, ok := v.Interface().(time.Time); ok {
		return leaf("!!timestamp", formatTime(t)), nil
	}

	switch v.Kind() {
	case reflect.String:
		return leaf("!!str", v.String()), nil
	case reflect.Bool:
		return leaf("!!bool", strconv.FormatBool(v.Bool())), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return leaf("!!int", strconv.FormatInt(v.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return leaf("!!int", strconv.FormatUint(v.Uint(), 10)), nil
	case reflect.Float32, reflect.Float64:
		return leaf("!!float", strconv.FormatFloat(v.Float(), 'g', -1, 64)), nil
	case reflect.Map:
		type pair struct {
			key string
			val reflect.Value
		}
		pairs := make([]pair, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			pairs = append(pairs, pair{key: fmt.Sprint(iter.Key().Interface()), val: iter.Value()})
		}
		slices.SortFunc(pairs, func(a, b pair) int { return cmp.Compare(a.key, b.key) })
		n := &yaml.Node{Kind: yaml.MappingNode}
		for _, p := range pairs {
			child, err := canonicalNode(p.val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.key, err)
			}
			n.Content = append(n.Content, leaf("!!str", p.key), child)
		}
		return n, nil
	case reflect.Slice, reflect.Array:
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for i := range v.Len() {
			child, err := canonicalNode(v.Index(i))
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			n.Content = append(n.Content, child)
		}
		return n, nil
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, fmt.Errorf("unsupported front matter value of kind %s", v.Kind())
	default:
		return leaf("!!str", fmt.Sprint(v.Interface())), nil
	}
}

// formatTime keeps date-only values in their short form.
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339Nano)
}
