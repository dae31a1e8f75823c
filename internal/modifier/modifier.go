// Package modifier transforms mined content before routing and the site map
// after routing. Every modifier is idempotent.
package modifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

// ContentModifier edits collections in place.
type ContentModifier interface {
	Modify(ctx context.Context, cfg *config.Config, s *site.Site) error
}

// MapModifier edits the merged site map. It may also write site values.
type MapModifier interface {
	Modify(ctx context.Context, cfg *config.Config, s *site.Site, m *sitemap.Map) error
}

// ContentRule is a user supplied content transformation.
type ContentRule func(s *site.Site) error

// RuleContentModifier applies rules in order and stops at the first error.
type RuleContentModifier struct {
	Rules []ContentRule
}

// Modify applies the rules.
func (r *RuleContentModifier) Modify(_ context.Context, _ *config.Config, s *site.Site) error {
	for i, rule := range r.Rules {
		if err := rule(s); err != nil {
			return fmt.Errorf("content rule %d: %w", i, err)
		}
	}
	return nil
}

// MapRule is a user supplied map transformation.
type MapRule func(s *site.Site, m *sitemap.Map) error

// RuleMapModifier applies rules in order and stops at the first error.
type RuleMapModifier struct {
	Rules []MapRule
}

// Modify applies the rules.
func (r *RuleMapModifier) Modify(_ context.Context, _ *config.Config, s *site.Site, m *sitemap.Map) error {
	for i, rule := range r.Rules {
		if err := rule(s, m); err != nil {
			return fmt.Errorf("map rule %d: %w", i, err)
		}
	}
	return nil
}

// CollectionSorter orders a collection by one field. Records lacking the
// field sort last in either direction.
type CollectionSorter struct {
	Collection string
	Key        string
	Reverse    bool
}

// Modify sorts the collection. Missing collections are ignored.
func (c *CollectionSorter) Modify(_ context.Context, _ *config.Config, s *site.Site) error {
	col := s.Collection(c.Collection)
	if col == nil {
		return nil
	}
	col.Sort(func(a, b site.Record) bool {
		av, aok := a[c.Key]
		bv, bok := b[c.Key]
		if !aok || !bok {
			return aok && !bok
		}
		cmp := compareValues(a, b, c.Key, av, bv)
		if c.Reverse {
			return cmp > 0
		}
		return cmp < 0
	})
	return nil
}

func compareValues(a, b site.Record, key string, av, bv any) int {
	if at, ok := a.Time(key); ok {
		if bt, ok := b.Time(key); ok {
			return at.Compare(bt)
		}
	}
	if af, ok := number(av); ok {
		if bf, ok := number(bv); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(av), fmt.Sprint(bv))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case time.Duration:
		return float64(n), true
	}
	return 0, false
}
