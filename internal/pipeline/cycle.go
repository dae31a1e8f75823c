package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"git.home.luguber.info/inful/kart/internal/eventstore"
	ferrors "git.home.luguber.info/inful/kart/internal/foundation/errors"
	"git.home.luguber.info/inful/kart/internal/logfields"
	"git.home.luguber.info/inful/kart/internal/metrics"
	"git.home.luguber.info/inful/kart/internal/miner"
	"git.home.luguber.info/inful/kart/internal/notify"
	"git.home.luguber.info/inful/kart/internal/observability"
	"git.home.luguber.info/inful/kart/internal/site"
	"git.home.luguber.info/inful/kart/internal/sitemap"
)

// Snapshot is the consistent result of one cycle. Nothing in it is shared
// with the miners, so it may be read while the next cycle runs.
type Snapshot struct {
	ID      string
	Hash    string
	Site    *site.Site
	Map     *sitemap.Map
	Index   *sitemap.Index
	BuiltAt time.Time
}

// Build runs a full cycle: every miner rescans, the map is composed and
// every renderer writes below dest. Renderer failures do not stop the other
// renderers; they are returned joined once all have run.
func (k *Kart) Build(ctx context.Context, dest string) (*Snapshot, error) {
	return k.cycle(ctx, metrics.CycleBuild, "build", func(ctx context.Context, id string) (*Snapshot, error) {
		if err := k.ReadData(ctx); err != nil {
			return nil, err
		}
		snap, err := k.compose(ctx, id)
		if err != nil {
			return nil, err
		}
		if k.Config.Output.ShouldClean() {
			if err := CleanOutput(dest); err != nil {
				return snap, &StageError{Stage: StageRenderers, Err: err}
			}
		}
		return snap, k.render(ctx, snap, dest)
	})
}

// Load rescans every miner and composes a snapshot without rendering.
func (k *Kart) Load(ctx context.Context) (*Snapshot, error) {
	snap, err := k.cycle(ctx, metrics.CycleBuild, "load", func(ctx context.Context, id string) (*Snapshot, error) {
		if err := k.ReadData(ctx); err != nil {
			return nil, err
		}
		return k.compose(ctx, id)
	})
	if err == nil {
		k.published(snap)
	}
	return snap, err
}

// Change is a source change consumed by a rebuild.
type Change struct {
	Path string
	Op   string
}

// Refresh composes a new snapshot from the miners' current collections.
// The miners are not rescanned; they are kept current by their watches.
// The changes are journaled as part of the cycle.
func (k *Kart) Refresh(ctx context.Context, trigger string, changes ...Change) (*Snapshot, error) {
	snap, err := k.cycle(ctx, metrics.CycleRebuild, trigger, func(ctx context.Context, id string) (*Snapshot, error) {
		for _, c := range changes {
			k.journal.Record(ctx, eventstore.NewFileChanged(id, c.Path, c.Op))
		}
		return k.compose(ctx, id)
	})
	if err == nil {
		k.published(snap)
	}
	return snap, err
}

func (k *Kart) published(snap *Snapshot) {
	k.notifier.Rebuilt(notify.RebuildEvent{
		Cycle:     snap.ID,
		Snapshot:  snap.Hash,
		Entries:   snap.Map.Len(),
		Timestamp: snap.BuiltAt,
	})
}

func (k *Kart) cycle(ctx context.Context, kind, trigger string, fn func(context.Context, string) (*Snapshot, error)) (*Snapshot, error) {
	id := uuid.NewString()
	ctx = observability.WithCycle(ctx, id, kind)
	start := time.Now()
	k.journal.Record(ctx, eventstore.NewCycleStarted(id, kind, trigger))

	snap, err := fn(ctx, id)
	d := time.Since(start)
	k.recorder.ObserveCycleDuration(kind, d)

	if err != nil {
		stage := ""
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		outcome := "failed"
		if errors.Is(err, context.Canceled) {
			outcome = "canceled"
		}
		k.recorder.IncCycleOutcome(kind, outcome)
		k.journal.Record(ctx, eventstore.NewCycleFailed(id, stage, err, d))
		return snap, err
	}

	k.recorder.IncCycleOutcome(kind, "success")
	k.recorder.SetSnapshotEntries(snap.Map.Len())
	k.journal.Record(ctx, eventstore.NewCycleCompleted(id, snap.Hash, snap.Map.Len(), d))
	observability.InfoContext(ctx, "Cycle completed",
		logfields.Snapshot(snap.Hash),
		slog.Int("entries", snap.Map.Len()),
		logfields.DurationMS(float64(d.Milliseconds())))
	return snap, nil
}

// ReadData runs a full scan of every miner.
func (k *Kart) ReadData(ctx context.Context) error {
	return k.runStage(ctx, StageMiners, func(ctx context.Context) error {
		for _, m := range k.Miners {
			if err := m.ReadData(ctx, k.Config); err != nil {
				return ferrors.WrapError(err, ferrors.CategoryContent, "miner failed").
					WithContext("miner", m.Name()).Build()
			}
		}
		return nil
	})
}

// Collect assembles a private site from the miners' collections.
func (k *Kart) Collect() *site.Site {
	s := site.New(k.Config.Site)
	for _, m := range k.Miners {
		for name, col := range m.Collect(k.Config) {
			s.Collections[name] = col
		}
		if aux, ok := m.(miner.Auxiliary); ok {
			for key, v := range aux.Values() {
				s.Values[key] = v
			}
		}
	}
	return s
}

// SiteURL is the prefix of resolved URLs: the configured base URL in
// production and "" in development.
func (k *Kart) SiteURL() string {
	if k.Config.Dev {
		return ""
	}
	return strings.TrimSuffix(k.Config.Site.BaseURL, "/")
}

// NewMap returns an empty map wired to the cycle's diagnostics.
func (k *Kart) NewMap() *sitemap.Map {
	m := sitemap.New(k.SiteURL())
	m.WarnCollisions = k.Config.Site.WarnKeyCollisions
	m.OnUnresolved = func(name string) {
		k.recorder.IncUnresolvedURL()
		k.notifier.UnresolvedURL(name)
	}
	return m
}

func (k *Kart) compose(ctx context.Context, id string) (*Snapshot, error) {
	s := k.Collect()

	err := k.runStage(ctx, StageContentModifiers, func(ctx context.Context) error {
		for _, cm := range k.ContentModifiers {
			if err := cm.Modify(ctx, k.Config, s); err != nil {
				return ferrors.WrapError(err, ferrors.CategoryContent, "content modifier failed").Build()
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m := k.NewMap()
	err = k.runStage(ctx, StageMappers, func(ctx context.Context) error {
		for _, mp := range k.Mappers {
			part, err := mp.Map(ctx, k.Config, s)
			if err != nil {
				return ferrors.WrapError(err, ferrors.CategoryRouting, "mapper failed").Build()
			}
			m.Merge(part)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = k.runStage(ctx, StageMapModifiers, func(ctx context.Context) error {
		for _, mm := range k.MapModifiers {
			if err := mm.Modify(ctx, k.Config, s, m); err != nil {
				return ferrors.WrapError(err, ferrors.CategoryRouting, "map modifier failed").Build()
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:      id,
		Site:    s,
		Map:     m,
		Index:   sitemap.NewIndex(m),
		BuiltAt: time.Now(),
	}
	snap.Hash = Hash(m, s)
	if snap.Hash == "" {
		snap.Hash = id
	}
	return snap, nil
}

func (k *Kart) render(ctx context.Context, snap *Snapshot, dest string) error {
	return k.runStage(ctx, StageRenderers, func(ctx context.Context) error {
		var errs []error
		for _, r := range k.Renderers {
			if err := r.Render(ctx, k.Config, snap.Site, snap.Map, dest); err != nil {
				observability.ErrorContext(ctx, "Renderer reported failures", logfields.Renderer(r.Name()), logfields.Error(err))
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

type hashEntry struct {
	Key      string
	URL      string
	Template string
	Renderer string
	Data     any
}

// Hash fingerprints the routed content of a cycle. Equal sites and maps
// hash equally; map keys are encoded sorted. It returns "" when a payload
// cannot be encoded.
func Hash(m *sitemap.Map, s *site.Site) string {
	entries := make([]hashEntry, 0, m.Len())
	for _, e := range m.Entries() {
		entries = append(entries, hashEntry{Key: e.Key, URL: e.URL, Template: e.Template, Renderer: e.Renderer, Data: e.Data})
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(entries); err != nil {
		slog.Debug("Snapshot hash unavailable", logfields.Error(err))
		return ""
	}
	if s != nil {
		if err := enc.Encode(s.Values); err != nil {
			slog.Debug("Snapshot hash unavailable", logfields.Error(err))
			return ""
		}
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:8])
}

// CleanOutput empties dest, creating it when missing.
func CleanOutput(dest string) error {
	abs, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	if abs == filepath.Dir(abs) {
		return ferrors.ValidationError("refusing to clean the filesystem root").WithContext("path", abs).Build()
	}
	entries, err := os.ReadDir(abs)
	if os.IsNotExist(err) {
		return os.MkdirAll(abs, 0o750)
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(abs, e.Name())); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to clean output").
				WithContext("path", abs).Build()
		}
	}
	return nil
}
