package observability

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordRunIncrementsCounterByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer(reg, "ragcore", "pipeline")

	m.RecordRun(nil)
	m.RecordRun(fmt.Errorf("boom"))

	if got := counterValue(t, m.PipelineRuns.WithLabelValues("success")); got != 1 {
		t.Fatalf("expected 1 success run, got %v", got)
	}
	if got := counterValue(t, m.PipelineRuns.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 error run, got %v", got)
	}
}

func TestRecordProviderCallLabelsByComponent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer(reg, "ragcore", "pipeline")

	m.RecordProviderCall("llm", nil)
	m.RecordProviderCall("llm", nil)
	m.RecordProviderCall("vectorstore", fmt.Errorf("timeout"))

	if got := counterValue(t, m.ProviderCalls.WithLabelValues("llm", "success")); got != 2 {
		t.Fatalf("expected 2 llm successes, got %v", got)
	}
	if got := counterValue(t, m.ProviderCalls.WithLabelValues("vectorstore", "error")); got != 1 {
		t.Fatalf("expected 1 vectorstore error, got %v", got)
	}
}

func TestObserveStageRecordsIntoHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer(reg, "ragcore", "pipeline")

	m.ObserveStage("retrieve", 250*time.Millisecond)

	metric := &dto.Metric{}
	if err := m.StageDuration.WithLabelValues("retrieve").(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("unexpected error reading histogram: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 1 {
		t.Fatalf("expected 1 sample, got %d", metric.Histogram.GetSampleCount())
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		t.Fatalf("unexpected error reading counter: %v", err)
	}
	return metric.Counter.GetValue()
}
