package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestIntakeCounters(t *testing.T) {
	m := New()
	m.Intake(IntakeSaved, true)
	m.Intake(IntakeSaved, false)
	m.Intake(IntakeRejected, false)

	body := scrape(t, m)
	for _, want := range []string{
		`support_center_visit_intakes_total{outcome="saved"} 2`,
		`support_center_visit_intakes_total{outcome="rejected"} 1`,
		`support_center_visit_escalations_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Intake(IntakeFailed, true)
	m.ReportError("3")
	m.ObserveRequest("GET /", http.MethodGet, 200, time.Millisecond)
}

func TestHandlerExposesRequestMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("GET /students", http.MethodGet, 200, 20*time.Millisecond)
	m.ReportError("console")

	body := scrape(t, m)
	for _, want := range []string{
		`support_center_http_requests_total{method="GET",route="GET /students",status="200"} 1`,
		`support_center_report_errors_total{report="console"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
