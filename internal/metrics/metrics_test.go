package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/zulandar/inspectyard/internal/watchdog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func sampleReport() *watchdog.Report {
	return watchdog.Aggregate([]watchdog.JobResult{
		{JobID: "J1", Status: watchdog.OutcomeFailed, ExhaustedAgents: []string{"cost_forecast"}, TimedOutAgents: []string{"cost_forecast"}},
		{JobID: "J2", Status: watchdog.OutcomeIssuesDetected, RetriedExecutions: []watchdog.RetriedExecution{{Agent: "a"}, {Agent: "b"}}},
		{JobID: "J3", Status: watchdog.OutcomeHealthy},
	})
}

func TestRecorder_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Observe(sampleReport(), 250*time.Millisecond)
	r.Observe(sampleReport(), 100*time.Millisecond)

	if got := testutil.ToFloat64(r.scans.WithLabelValues("true")); got != 2 {
		t.Errorf("scans_total{success=true} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.jobs.WithLabelValues("failed")); got != 1 {
		t.Errorf("jobs{outcome=failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.jobs.WithLabelValues("error")); got != 0 {
		t.Errorf("jobs{outcome=error} = %v, want 0", got)
	}
	if got := testutil.ToFloat64(r.retries); got != 4 {
		t.Errorf("retries_total = %v, want 4", got)
	}
	if got := testutil.ToFloat64(r.timeouts); got != 2 {
		t.Errorf("timeouts_total = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(r.duration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestRecorder_FailedScanKeepsJobGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.Observe(sampleReport(), time.Millisecond)
	r.Observe(&watchdog.Report{Success: false}, time.Millisecond)

	if got := testutil.ToFloat64(r.scans.WithLabelValues("false")); got != 1 {
		t.Errorf("scans_total{success=false} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.jobs.WithLabelValues("healthy")); got != 1 {
		t.Errorf("jobs{outcome=healthy} = %v, want 1 (unchanged)", got)
	}
}

func TestNewRecorder_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewRecorder(reg)
}

func TestMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMiddleware("inspectyard", reg)

	router := gin.New()
	router.Use(m.Handler())
	router.GET("/api/jobs/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for range 3 {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("404", "GET", "/api/jobs/:id")); got != 3 {
		t.Errorf("requests = %v, want 3", got)
	}
}
