package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPolicyObserverRecordsSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSchedulerCollector(reg)
	if err != nil {
		t.Fatalf("NewSchedulerCollector: %v", err)
	}

	obs := collector.ForPolicy("algot")
	obs.ObservePlan(12, 3*time.Microsecond)
	obs.ObserveDispatch(40)
	obs.ObserveDispatch(0)
	obs.ObserveMerge()
	obs.SetQueueDepth(5, 2)

	if got := testutil.ToFloat64(collector.Dispatches.WithLabelValues("algot")); got != 2 {
		t.Fatalf("seekplan_dispatches_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Merges.WithLabelValues("algot")); got != 1 {
		t.Fatalf("seekplan_merges_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.WindowDepth.WithLabelValues("algot")); got != 5 {
		t.Fatalf("seekplan_window_requests = %v, want 5", got)
	}
	if got := testutil.ToFloat64(collector.OverflowDepth.WithLabelValues("algot")); got != 2 {
		t.Fatalf("seekplan_overflow_requests = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(collector.SeekDistance); n != 1 {
		t.Fatalf("expected one seek histogram series, got %d", n)
	}
	if got := testutil.ToFloat64(collector.Dispatches.WithLabelValues("noop")); got != 0 {
		t.Fatalf("other policies must stay untouched, got %v", got)
	}
}

func TestNewSchedulerCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSchedulerCollector(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewSchedulerCollector(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	second.ForPolicy("sstf").ObserveDispatch(1)
	if got := testutil.ToFloat64(first.Dispatches.WithLabelValues("sstf")); got != 1 {
		t.Fatalf("expected shared counter, got %v", got)
	}
	if first.Gatherer() != reg {
		t.Fatalf("expected registry to be used as gatherer")
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *SchedulerCollector
	obs := c.ForPolicy("algot")
	obs.ObservePlan(1, time.Millisecond)
	obs.ObserveDispatch(1)
	obs.ObserveMerge()
	obs.SetQueueDepth(1, 1)
	if c.Gatherer() != nil {
		t.Fatalf("expected nil gatherer")
	}
}

func TestHandlerExposesPolicyMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSchedulerCollector(reg)
	if err != nil {
		t.Fatalf("NewSchedulerCollector: %v", err)
	}
	collector.ForPolicy("sstf").ObserveDispatch(7)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `seekplan_dispatches_total{policy="sstf"} 1`) {
		t.Fatalf("dispatch counter missing from scrape:\n%s", body)
	}
}
