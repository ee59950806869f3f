package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ProviderCall("gpt-4o-mini", "ok", time.Second)
	m.LocalLimited("gpt-4o-mini")
	m.TaskCreated("agent")
	m.Materialized("repeat")
	m.SchedulerFailure("recurring")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.ProviderCall("gpt-4o-mini", "ok", 10*time.Millisecond)
	m.ProviderCall("gpt-4o-mini", "rate_limited", 10*time.Millisecond)
	m.ProviderCall("gpt-4o-mini", "ok", 10*time.Millisecond)
	m.TaskCreated("agent")

	if got := testutil.ToFloat64(m.providerCalls.WithLabelValues("gpt-4o-mini", "ok")); got != 2 {
		t.Errorf("expected 2 ok calls, got %v", got)
	}
	if got := testutil.ToFloat64(m.tasksCreated.WithLabelValues("agent")); got != 1 {
		t.Errorf("expected 1 created task, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.LocalLimited("gpt-4o-mini")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tasky_llm_local_rate_limited_total") {
		t.Errorf("expected limiter counter in output, got:\n%s", rec.Body.String())
	}
}
