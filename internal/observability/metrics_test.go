package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveSetupRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSetupCollector(reg)
	if err != nil {
		t.Fatalf("NewSetupCollector: %v", err)
	}

	collector.ObserveSetup("tidy3d", OutcomeOK, 20*time.Millisecond)
	collector.ObserveSetup("tidy3d", OutcomeAborted, time.Millisecond)

	if got := testutil.ToFloat64(collector.Setups.WithLabelValues("tidy3d", OutcomeOK)); got != 1 {
		t.Fatalf("fdtd_setups_total{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Setups.WithLabelValues("tidy3d", OutcomeAborted)); got != 1 {
		t.Fatalf("fdtd_setups_total{aborted} = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "fdtd_setup_duration_seconds", map[string]string{
		"solver": "tidy3d",
	}); count != 2 {
		t.Fatalf("fdtd_setup_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestSolverRunHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSetupCollector(reg)
	if err != nil {
		t.Fatalf("NewSetupCollector: %v", err)
	}
	collector.ObserveSolverRun("lumerical", 3*time.Second)

	if count := histogramSampleCount(t, reg, "fdtd_solver_run_seconds", map[string]string{
		"solver": "lumerical",
	}); count != 1 {
		t.Fatalf("fdtd_solver_run_seconds sample_count = %d, want 1", count)
	}
}

func TestRegistrationIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSetupCollector(reg)
	if err != nil {
		t.Fatalf("first NewSetupCollector: %v", err)
	}
	second, err := NewSetupCollector(reg)
	if err != nil {
		t.Fatalf("second NewSetupCollector: %v", err)
	}
	first.SetEstimatedCost(0.25)
	if got := testutil.ToFloat64(second.EstimatedCost); got != 0.25 {
		t.Fatalf("shared gauge = %v, want 0.25", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *SetupCollector
	c.ObserveSetup("lumerical", OutcomeError, time.Second)
	c.ObserveSolverRun("lumerical", time.Second)
	c.SetPlacementCounts(1, 2)
	c.SetEstimatedCost(1)
}

func TestMetricsHandlerExposesPlacementGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSetupCollector(reg)
	if err != nil {
		t.Fatalf("NewSetupCollector: %v", err)
	}
	collector.SetPlacementCounts(1, 3)
	collector.SetEstimatedCost(0.75)
	collector.ObserveSetup("lumerical", OutcomeOK, time.Second)
	collector.ObserveSolverRun("lumerical", time.Second)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"fdtd_setups_total",
		"fdtd_setup_duration_seconds",
		"fdtd_solver_run_seconds",
		`fdtd_placements{role="monitor"} 3`,
		`fdtd_placements{role="source"} 1`,
		"fdtd_estimated_cost_credits 0.75",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
