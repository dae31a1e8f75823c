package pipeline

import (
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/mapper"
	"git.home.luguber.info/inful/kart/internal/miner"
	"git.home.luguber.info/inful/kart/internal/modifier"
	"git.home.luguber.info/inful/kart/internal/renderer"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

// Keys of the fixed entries added by FromConfig.
const (
	FeedKey    = "feed"
	SitemapKey = "sitemap"
	StaticKey  = "static"
	RootKey    = "root"
)

// FromConfig assembles the stages a configuration asks for.
func FromConfig(cfg *config.Config, opts ...Option) *Kart {
	k := New(cfg, opts...)
	c := cfg.Content

	collections := slices.Clone(c.Collections)
	taxonomies := slices.Clone(c.Taxonomies)
	if b := cfg.Blog; b != nil {
		if !slices.Contains(collections, b.Collection) {
			collections = append(collections, b.Collection)
		}
		if !slices.Contains(taxonomies, b.Taxonomy) {
			taxonomies = append(taxonomies, b.Taxonomy)
		}
	}

	for _, name := range collections {
		k.Miners = append(k.Miners, miner.NewCollectionMiner(name, cfg))
	}
	for _, name := range taxonomies {
		k.Miners = append(k.Miners, miner.NewTaxonomyMiner(name, cfg))
	}
	k.Miners = append(k.Miners, miner.NewDataMiner(cfg), miner.NewPageMiner(cfg))
	if cfg.Docs != nil {
		k.Miners = append(k.Miners, miner.NewDocumentationMiner(cfg))
	}

	k.ContentModifiers = contentModifiers(cfg)
	k.Mappers = mappers(cfg, collections)
	if cfg.Docs != nil {
		k.MapModifiers = append(k.MapModifiers, modifier.GlobalTOC{Source: miner.DocsTOCValue})
	}
	if c.CheckLinks {
		k.MapModifiers = append(k.MapModifiers, modifier.LinkCheck{})
	}
	k.Renderers = renderer.Defaults(cfg, k.recorder)
	return k
}

func contentModifiers(cfg *config.Config) []modifier.ContentModifier {
	var out []modifier.ContentModifier
	sorted := map[string]bool{}
	for _, sc := range cfg.Content.Sort {
		out = append(out, &modifier.CollectionSorter{Collection: sc.Collection, Key: sc.Key, Reverse: sc.Reverse})
		sorted[sc.Collection] = true
	}
	// Blog posts are newest first unless configured otherwise.
	if b := cfg.Blog; b != nil && !sorted[b.Collection] {
		out = append(out, &modifier.CollectionSorter{Collection: b.Collection, Key: "date", Reverse: true})
	}
	if cfg.Content.GitDates {
		out = append(out, &modifier.GitDates{})
	}
	if cfg.Content.TOC {
		out = append(out, modifier.TableOfContents{})
	}
	if cfg.Content.Fingerprint {
		out = append(out, modifier.Fingerprint{})
	}
	return out
}

func mappers(cfg *config.Config, collections []string) []mapper.Mapper {
	var out []mapper.Mapper
	for _, name := range collections {
		if cfg.Blog != nil && name == cfg.Blog.Collection {
			continue
		}
		out = append(out, &mapper.CollectionMapper{Collection: name, Template: cfg.Templates.CollectionTemplate})
	}
	if cfg.Blog != nil {
		out = append(out, mapper.NewBlogMapper(*cfg.Blog))
	}
	out = append(out, &mapper.PageMapper{Template: cfg.Templates.PageTemplate})
	if d := cfg.Docs; d != nil {
		out = append(out, &mapper.DocumentationMapper{Collection: miner.DocsCollection, BaseURL: d.BaseURL, Template: d.Template})
	}
	return append(out, &mapper.ManualMapper{Entries: manualEntries(cfg)})
}

func manualEntries(cfg *config.Config) []mapper.ManualEntry {
	var out []mapper.ManualEntry
	if f := cfg.Feed; f != nil {
		out = append(out, mapper.ManualEntry{Key: FeedKey, Entry: sitemap.Entry{
			URL:      f.URL,
			Data:     map[string]any{"collections": slices.Clone(f.Collections)},
			Renderer: sitemap.FeedRenderer,
		}})
	}
	if s := cfg.Sitemap; s != nil {
		out = append(out, mapper.ManualEntry{Key: SitemapKey, Entry: sitemap.Entry{
			URL:      s.URL,
			Renderer: sitemap.SitemapRenderer,
		}})
	}
	out = append(out,
		mapper.ManualEntry{Key: StaticKey, Entry: sitemap.Entry{
			URL:      "/" + filepath.Base(cfg.Content.Static) + "/**",
			Renderer: sitemap.StaticFilesRenderer,
		}},
		mapper.ManualEntry{Key: RootKey, Entry: sitemap.Entry{
			URL:      "/*",
			Renderer: sitemap.RootDirRenderer,
		}},
	)
	return out
}
