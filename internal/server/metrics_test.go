package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kbask/kbask/internal/agent"
)

func TestMetrics_QueryOutcomeCounters(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{res: &agent.Result{
		Answer: "ok",
		State:  agent.StateDone,
		Steps:  1,
	}}
	s, reg := newTestServer(t, runner)

	for range 3 {
		rec := postQuery(s, `{"query":"hello"}`, testToken)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	}

	counter, err := gatherCounter(reg, "kbask_query_requests_total", "outcome", "done")
	if err != nil {
		t.Fatal(err)
	}
	if counter != 3 {
		t.Errorf("kbask_query_requests_total{outcome=done} = %v, want 3", counter)
	}
}

func TestMetrics_FailedOutcome(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		res: &agent.Result{State: agent.StateFailed},
		err: fmt.Errorf("%w: boom", agent.ErrLLMProvider),
	}
	s, reg := newTestServer(t, runner)

	rec := postQuery(s, `{"query":"hello"}`, testToken)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	counter, err := gatherCounter(reg, "kbask_query_requests_total", "outcome", "failed")
	if err != nil {
		t.Fatal(err)
	}
	if counter != 1 {
		t.Errorf("kbask_query_requests_total{outcome=failed} = %v, want 1", counter)
	}
}

func TestMetrics_RejectedRequestsNotCounted(t *testing.T) {
	t.Parallel()

	// Requests that never reach the reasoning loop must not inflate the
	// query outcome counters. The HTTP counter still sees them.
	runner := &fakeRunner{}
	s, reg := newTestServer(t, runner)

	rec := postQuery(s, `{"query":"hello"}`, "wrong-token")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() == "kbask_query_requests_total" {
			t.Errorf("kbask_query_requests_total populated by a rejected request: %v", mf)
		}
	}
}

func TestMetrics_HTTPRequestsLabelled(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{res: &agent.Result{
		Answer: "ok",
		State:  agent.StateDone,
		Steps:  1,
	}}
	s, _ := newTestServer(t, runner)

	rec := postQuery(s, `{"query":"hello"}`, testToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	if got := testutil.ToFloat64(s.metrics.httpRequestsTotal.WithLabelValues("POST", "query", "200")); got != 1 {
		t.Errorf("kbask_http_requests_total{POST,query,200} = %v, want 1", got)
	}
}

func TestMetrics_Endpoint(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{res: &agent.Result{
		Answer: "ok",
		State:  agent.StateDone,
		Steps:  1,
	}}
	s, _ := newTestServer(t, runner)

	if rec := postQuery(s, `{"query":"hello"}`, testToken); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	s.Handler().ServeHTTP(mrec, req)

	if mrec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want %d", mrec.Code, http.StatusOK)
	}
	body := mrec.Body.String()
	for _, want := range []string{
		"kbask_query_requests_total",
		"kbask_query_duration_seconds",
		"kbask_query_steps",
		"kbask_http_requests_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics output missing %q", want)
		}
	}
}

// gatherCounter extracts a single labelled counter value from the registry.
func gatherCounter(reg *prometheus.Registry, name, label, value string) (float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return 0, err
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue(), nil
				}
			}
		}
	}
	return 0, fmt.Errorf("metric %s{%s=%q} not found", name, label, value)
}
