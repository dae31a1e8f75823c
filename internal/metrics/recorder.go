package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Cycle kinds.
const (
	CycleBuild   = "build"
	CycleRebuild = "rebuild"
)

// Recorder defines observability hooks for pipeline cycles and the live
// server. Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveCycleDuration(kind string, d time.Duration)
	IncCycleOutcome(kind, outcome string) // outcome: success|failed|canceled
	IncUnresolvedURL()
	IncRenderError(renderer string)
	ObserveRequest(status int, d time.Duration)
	SetSnapshotEntries(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are disabled).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveCycleDuration(string, time.Duration) {}
func (NoopRecorder) IncCycleOutcome(string, string)             {}
func (NoopRecorder) IncUnresolvedURL()                          {}
func (NoopRecorder) IncRenderError(string)                      {}
func (NoopRecorder) ObserveRequest(int, time.Duration)          {}
func (NoopRecorder) SetSnapshotEntries(int)                     {}
