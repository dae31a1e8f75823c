package metrics

import (
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "kart"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration   *prom.HistogramVec
	stageResults    *prom.CounterVec
	cycleDuration   *prom.HistogramVec
	cycleOutcome    *prom.CounterVec
	unresolved      prom.Counter
	renderErrors    *prom.CounterVec
	requestDuration *prom.HistogramVec
	snapshotEntries prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		cycleDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of full builds and incremental rebuilds",
			Buckets:   prom.DefBuckets,
		}, []string{"kind"}),
		cycleOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_outcomes_total",
			Help:      "Pipeline cycles by kind and final status",
		}, []string{"kind", "outcome"}),
		unresolved: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "unresolved_urls_total",
			Help:      "Logical keys the site map could not resolve",
		}),
		renderErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "render_errors_total",
			Help:      "Entries a renderer failed to produce",
		}, []string{"renderer"}),
		requestDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Live server request latency by status code",
			Buckets:   prom.DefBuckets,
		}, []string{"status"}),
		snapshotEntries: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_entries",
			Help:      "Site map entries in the published snapshot",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.cycleDuration, pr.cycleOutcome,
		pr.unresolved, pr.renderErrors, pr.requestDuration, pr.snapshotEntries)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveCycleDuration(kind string, d time.Duration) {
	p.cycleDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCycleOutcome(kind, outcome string) {
	p.cycleOutcome.WithLabelValues(kind, outcome).Inc()
}

func (p *PrometheusRecorder) IncUnresolvedURL() { p.unresolved.Inc() }

func (p *PrometheusRecorder) IncRenderError(renderer string) {
	p.renderErrors.WithLabelValues(renderer).Inc()
}

func (p *PrometheusRecorder) ObserveRequest(status int, d time.Duration) {
	p.requestDuration.WithLabelValues(strconv.Itoa(status)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetSnapshotEntries(n int) { p.snapshotEntries.Set(float64(n)) }
