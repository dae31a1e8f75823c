package modifier

import (
	"context"
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/kart/internal/config"
	"git.home.luguber.info/inful/kart/internal/frontmatter"
	"git.home.luguber.info/inful/kart/internal/site"
)

// Fields excluded from the fingerprint: derived values and the fingerprint itself.
var fingerprintExcluded = map[string]bool{
	mdfp.FingerprintField: true,
	"lastmod":             true,
	"toc":                 true,
	site.FieldSlug:        true,
	site.FieldContent:     true,
	site.FieldContentType: true,
	site.FieldSource:      true,
}

// Fingerprint stamps every markup record with a content fingerprint of its
// front matter fields and body.
type Fingerprint struct{}

// Modify stamps the records.
func (Fingerprint) Modify(ctx context.Context, _ *config.Config, s *site.Site) error {
	for _, name := range s.Names() {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, rec := range s.Collection(name).Records() {
			if _, ok := rec[site.FieldContent].(string); !ok {
				continue
			}
			fp, err := ComputeFingerprint(rec)
			if err != nil {
				return err
			}
			rec[mdfp.FingerprintField] = fp
		}
	}
	return nil
}

// ComputeFingerprint hashes the canonical YAML of the record's front matter
// together with its body.
func ComputeFingerprint(rec site.Record) (string, error) {
	serialized, err := frontmatter.Canonical(rec, func(k string) bool { return fingerprintExcluded[k] })
	if err != nil {
		return "", err
	}
	body, _ := rec[site.FieldContent].(string)
	return mdfp.CalculateFingerprintFromParts(strings.TrimSuffix(string(serialized), "\n"), body), nil
}
