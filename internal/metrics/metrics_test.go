package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// gatherCounter reads the current value of a counter child via the default
// registry, the same path the /metrics handler takes.
func gatherCounter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestLookupsTotal_Increments(t *testing.T) {
	labels := map[string]string{"component": "vehicles", "status": "success"}
	before := gatherCounter(t, "fuelrouter_lookups_total", labels)

	LookupsTotal.WithLabelValues("vehicles", "success").Inc()

	after := gatherCounter(t, "fuelrouter_lookups_total", labels)
	if after != before+1 {
		t.Errorf("counter = %v, want %v", after, before+1)
	}
}

func TestCacheCounters_Registered(t *testing.T) {
	CacheHits.WithLabelValues("geocode").Inc()
	CacheMisses.WithLabelValues("geocode").Inc()

	if v := gatherCounter(t, "fuelrouter_cache_hits_total", map[string]string{"category": "geocode"}); v < 1 {
		t.Errorf("cache hits = %v, want >= 1", v)
	}
	if v := gatherCounter(t, "fuelrouter_cache_misses_total", map[string]string{"category": "geocode"}); v < 1 {
		t.Errorf("cache misses = %v, want >= 1", v)
	}
}
