package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyCollection = "collection"
	KeySlug       = "slug"
	KeyKey        = "key"
	KeyURL        = "url"
	KeyRenderer   = "renderer"
	KeyMiner      = "miner"
	KeyPath       = "path"
	KeyOp         = "op"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeySnapshot   = "snapshot"
	KeyCycle      = "cycle"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyUserAgent  = "user_agent"
	KeyRemoteAddr = "remote_addr"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Collection(name string) slog.Attr { return slog.String(KeyCollection, name) }
func Slug(s string) slog.Attr          { return slog.String(KeySlug, s) }
func Key(k string) slog.Attr           { return slog.String(KeyKey, k) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Renderer(name string) slog.Attr   { return slog.String(KeyRenderer, name) }
func Miner(name string) slog.Attr      { return slog.String(KeyMiner, name) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Op(op string) slog.Attr           { return slog.String(KeyOp, op) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Snapshot(id string) slog.Attr     { return slog.String(KeySnapshot, id) }
func Cycle(id string) slog.Attr        { return slog.String(KeyCycle, id) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(a string) slog.Attr    { return slog.String(KeyRemoteAddr, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
