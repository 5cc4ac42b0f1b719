package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the pipeline/provider counter set, trimmed from the reference
// corpus's request/tool/resource/prompt metric families down to the ones a
// RAG pipeline execution actually emits: one stage-duration histogram, one
// execution counter, and one provider-call counter.
type Metrics struct {
	StageDuration    *prometheus.HistogramVec
	PipelineRuns     *prometheus.CounterVec
	ProviderCalls    *prometheus.CounterVec
	ActivePipelines  prometheus.Gauge
}

// NewMetrics registers and returns the pipeline metric set under
// namespace/subsystem against the default Prometheus registry.
func NewMetrics(namespace, subsystem string) *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer, namespace, subsystem)
}

// NewMetricsWithRegisterer is NewMetrics against an explicit registerer,
// so callers (and tests) that need an isolated registry -- rather than the
// global default, which panics on repeated registration -- can supply
// their own prometheus.NewRegistry().
func NewMetricsWithRegisterer(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stage_duration_seconds",
				Help:      "Duration of one pipeline stage in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		PipelineRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_total",
				Help:      "Total number of pipeline executions",
			},
			[]string{"status"},
		),
		ProviderCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "provider_calls_total",
				Help:      "Total number of calls issued to an embedding/LLM/vector-store provider",
			},
			[]string{"component", "status"},
		),
		ActivePipelines: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "active_runs",
				Help:      "Number of pipeline executions currently in flight",
			},
		),
	}
}

// ObserveStage records one stage's duration.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun increments the pipeline-run counter with status "success" or
// "error" depending on err.
func (m *Metrics) RecordRun(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.PipelineRuns.WithLabelValues(status).Inc()
}

// RecordProviderCall increments the provider-call counter for component
// ("embeddings", "llm", "vectorstore") with status "success" or "error".
func (m *Metrics) RecordProviderCall(component string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ProviderCalls.WithLabelValues(component, status).Inc()
}
