package config

import (
	"slices"
	"time"

	ferrors "git.home.luguber.info/inful/kart/internal/foundation/errors"
)

// Validate checks the configuration after defaults have been applied.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, step := range []func() error{
		v.validateSite,
		v.validateContent,
		v.validateRoutes,
		v.validateServe,
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validateSite() error {
	if cv.config.Site.Pagination.PerPage < 1 {
		return ferrors.ValidationError("site.pagination.per_page must be at least 1").
			WithContext("per_page", cv.config.Site.Pagination.PerPage).Build()
	}
	if _, err := time.LoadLocation(cv.config.Site.Timezone); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "unknown site.timezone").Fatal().
			WithContext("timezone", cv.config.Site.Timezone).Build()
	}
	return nil
}

func (cv *configurationValidator) validateContent() error {
	seen := map[string]bool{}
	for _, name := range append(slices.Clone(cv.config.Content.Collections), cv.config.Content.Taxonomies...) {
		if name == "" {
			return ferrors.ValidationError("collection and taxonomy names must not be empty").Build()
		}
		if seen[name] {
			return ferrors.ValidationError("duplicate collection or taxonomy name").WithContext("name", name).Build()
		}
		seen[name] = true
	}
	for _, s := range cv.config.Content.Sort {
		if s.Collection == "" || s.Key == "" {
			return ferrors.ValidationError("content.sort entries need collection and key").Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateRoutes() error {
	b := cv.config.Blog
	if b == nil {
		return nil
	}
	if !slices.Contains(cv.config.Content.Collections, b.Collection) {
		return ferrors.ValidationError("blog collection is not listed in content.collections").
			WithContext("collection", b.Collection).Build()
	}
	if b.IndexSkip < 0 {
		return ferrors.ValidationError("blog.index_skip must not be negative").Build()
	}
	return nil
}

func (cv *configurationValidator) validateServe() error {
	if p := cv.config.Serve.Port; p < 1 || p > 65535 {
		return ferrors.ValidationError("serve.port out of range").WithContext("port", p).Build()
	}
	if cv.config.Serve.ResyncInterval < 0 {
		return ferrors.ValidationError("serve.resync_interval must not be negative").Build()
	}
	return nil
}
