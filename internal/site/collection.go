package site

import (
	"slices"
	"sort"
)

// Collection is an insertion-ordered set of records keyed by slug.
type Collection struct {
	Name    string
	order   []string
	records map[string]Record
}

// NewCollection creates an empty collection.
func NewCollection(name string) *Collection {
	return &Collection{Name: name, records: map[string]Record{}}
}

// Set inserts or replaces the record for slug. A replaced record keeps its
// position. The record's slug field is set to slug.
func (c *Collection) Set(slug string, rec Record) {
	if rec == nil {
		rec = Record{}
	}
	rec[FieldSlug] = slug
	if _, ok := c.records[slug]; !ok {
		c.order = append(c.order, slug)
	}
	c.records[slug] = rec
}

// Delete removes slug and reports whether it was present.
func (c *Collection) Delete(slug string) bool {
	if _, ok := c.records[slug]; !ok {
		return false
	}
	delete(c.records, slug)
	if i := slices.Index(c.order, slug); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
	return true
}

// Get returns the record for slug.
func (c *Collection) Get(slug string) (Record, bool) {
	r, ok := c.records[slug]
	return r, ok
}

// Len returns the number of records.
func (c *Collection) Len() int { return len(c.order) }

// Keys returns the slugs in order.
func (c *Collection) Keys() []string { return slices.Clone(c.order) }

// Records returns the records in order. The records are shared, not copied.
func (c *Collection) Records() []Record {
	out := make([]Record, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.records[k])
	}
	return out
}

// Sort reorders records with a stable sort.
func (c *Collection) Sort(less func(a, b Record) bool) {
	sort.SliceStable(c.order, func(i, j int) bool {
		return less(c.records[c.order[i]], c.records[c.order[j]])
	})
}

// Clone returns a deep copy.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		Name:    c.Name,
		order:   slices.Clone(c.order),
		records: make(map[string]Record, len(c.records)),
	}
	for k, r := range c.records {
		out.records[k] = r.Clone()
	}
	return out
}
