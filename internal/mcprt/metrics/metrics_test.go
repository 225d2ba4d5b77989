package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("mcprt_test", reg)

	m.TemplateCompilesTotal.Inc()
	m.CacheHits.WithLabelValues("schema").Inc()
	m.SessionsActive.Set(3)
	m.RPCRequestsTotal.WithLabelValues("tools/call").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one registered metric family")
	}

	found := false
	for _, f := range families {
		if f.GetName() == "mcprt_test_session_active" {
			found = true
			if got := f.GetMetric()[0].GetGauge().GetValue(); got != 3 {
				t.Errorf("session_active = %v, want 3", got)
			}
		}
	}
	if !found {
		t.Fatal("mcprt_test_session_active metric not found")
	}
}

func TestCacheCounterLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("mcprt_test2", reg)

	m.CacheHits.WithLabelValues("session").Inc()
	m.CacheHits.WithLabelValues("session").Inc()
	m.CacheMisses.WithLabelValues("session").Inc()

	metric := &dto.Metric{}
	if err := m.CacheHits.WithLabelValues("session").Write(metric); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 2 {
		t.Errorf("cache hits = %v, want 2", got)
	}
}
