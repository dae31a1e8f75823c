// Package metrics records pipeline and live-server metrics.
//
// Components receive a Recorder. NoopRecorder is the default so callers never
// need nil checks; PrometheusRecorder is injected when metrics are enabled
// in the configuration:
//
//	reg := prom.NewRegistry()
//	engine := pipeline.New(cfg, pipeline.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//	mux.Handle(cfg.Metrics.Path, metrics.HTTPHandler(reg))
package metrics
