package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zulandar/inspectyard/internal/inspection"
	"github.com/zulandar/inspectyard/internal/metrics"
	"github.com/zulandar/inspectyard/internal/models"
	"github.com/zulandar/inspectyard/internal/store"
	"github.com/zulandar/inspectyard/internal/watchdog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.Inspection{},
		&models.AgentExecution{},
		&models.ExecutionNote{},
		&models.WatchdogRun{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testRouter(t *testing.T, db *gorm.DB) (*gin.Engine, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	st := store.New(db)
	runner := &watchdog.Runner{
		Scanner:  &watchdog.Scanner{Store: st, Timeout: 15 * time.Minute},
		Runs:     st,
		Recorder: metrics.NewRecorder(reg),
	}
	return newRouter(StartOpts{DB: db, Runner: runner, Registry: reg}), reg
}

func do(router http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func seedStuckJob(t *testing.T, db *gorm.DB) models.AgentExecution {
	t.Helper()
	run := "run-1"
	db.Create(&models.Inspection{ID: "J1", VehicleID: "veh-1", Status: "processing", RunID: &run})
	started := time.Now().Add(-20 * time.Minute)
	exec := models.AgentExecution{InspectionID: "J1", AgentName: "cost_forecast", Status: "running", AttemptNumber: 1, MaxRetries: 3, Lease: 1, StartedAt: &started}
	if err := db.Create(&exec).Error; err != nil {
		t.Fatalf("create execution: %v", err)
	}
	return exec
}

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{DB: nil})
	if err == nil || !strings.Contains(err.Error(), "db is required") {
		t.Errorf("err = %v, want db is required", err)
	}
}

func TestHealthz(t *testing.T) {
	router, _ := testRouter(t, testDB(t))
	w := do(router, http.MethodGet, "/healthz")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestScanEndpoint(t *testing.T) {
	db := testDB(t)
	exec := seedStuckJob(t, db)
	router, _ := testRouter(t, db)

	w := do(router, http.MethodPost, "/api/watchdog/scan")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var report watchdog.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !report.Success || report.Summary.IssuesDetected != 1 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Results) != 1 || report.Results[0].StuckAgents[0] != "cost_forecast" {
		t.Errorf("results = %+v", report.Results)
	}

	var got models.AgentExecution
	db.First(&got, exec.ID)
	if got.Status != "pending" {
		t.Errorf("execution Status = %q, want pending", got.Status)
	}

	var runs []models.WatchdogRun
	db.Find(&runs)
	if len(runs) != 1 || runs[0].Trigger != watchdog.TriggerHTTP {
		t.Errorf("runs = %+v, want one http run", runs)
	}
}

func TestScanEndpoint_GetNotAllowed(t *testing.T) {
	router, _ := testRouter(t, testDB(t))
	if w := do(router, http.MethodGet, "/api/watchdog/scan"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestJobList(t *testing.T) {
	db := testDB(t)
	seedStuckJob(t, db)
	db.Create(&models.Inspection{ID: "J2", VehicleID: "veh-2", Status: "queued"})
	router, _ := testRouter(t, db)

	w := do(router, http.MethodGet, "/api/jobs?status=processing")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Jobs []JobRow `json:"jobs"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if len(body.Jobs) != 1 || body.Jobs[0].ID != "J1" || body.Jobs[0].RunID != "run-1" {
		t.Errorf("jobs = %+v", body.Jobs)
	}
}

func TestJobList_BadLimit(t *testing.T) {
	router, _ := testRouter(t, testDB(t))
	if w := do(router, http.MethodGet, "/api/jobs?limit=abc"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestJobDetail(t *testing.T) {
	db := testDB(t)
	seedStuckJob(t, db)
	router, _ := testRouter(t, db)

	w := do(router, http.MethodGet, "/api/jobs/J1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var d JobDetail
	json.Unmarshal(w.Body.Bytes(), &d)
	if d.ID != "J1" || len(d.Executions) != 1 || d.Executions[0].AgentName != "cost_forecast" {
		t.Errorf("detail = %+v", d)
	}
}

func TestJobDetail_NotFound(t *testing.T) {
	router, _ := testRouter(t, testDB(t))
	if w := do(router, http.MethodGet, "/api/jobs/missing"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("inspection: %w: J9", inspection.ErrNotFound), http.StatusNotFound},
		{errors.New("db: table agent_configs not found"), http.StatusInternalServerError},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestJobNotesAfterScan(t *testing.T) {
	db := testDB(t)
	seedStuckJob(t, db)
	router, _ := testRouter(t, db)
	do(router, http.MethodPost, "/api/watchdog/scan")

	w := do(router, http.MethodGet, "/api/jobs/J1/notes")
	var body struct {
		Notes []NoteRow `json:"notes"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if len(body.Notes) != 1 || body.Notes[0].FromStatus != "running" || body.Notes[0].ToStatus != "pending" {
		t.Errorf("notes = %+v", body.Notes)
	}
}

func TestRuns(t *testing.T) {
	db := testDB(t)
	router, _ := testRouter(t, db)
	do(router, http.MethodPost, "/api/watchdog/scan")
	do(router, http.MethodPost, "/api/watchdog/scan")

	w := do(router, http.MethodGet, "/api/watchdog/runs?limit=1")
	var body struct {
		Runs []RunRow `json:"runs"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if len(body.Runs) != 1 {
		t.Errorf("runs = %d, want 1", len(body.Runs))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	db := testDB(t)
	router, _ := testRouter(t, db)
	do(router, http.MethodPost, "/api/watchdog/scan")

	w := do(router, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"inspectyard_watchdog_scans_total", "http_requests_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %s", want)
		}
	}
}

func TestSSE_StreamsNewRuns(t *testing.T) {
	db := testDB(t)
	db.Create(&models.WatchdogRun{Trigger: "cron", Success: true, StartedAt: time.Now()})

	oldPoll := ssePollInterval
	ssePollInterval = 10 * time.Millisecond
	defer func() { ssePollInterval = oldPoll }()

	router, _ := testRouter(t, db)
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	db.Create(&models.WatchdogRun{Trigger: "http", Success: true, TotalChecked: 4, StartedAt: time.Now()})
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: connected") {
		t.Errorf("missing connected event: %q", body)
	}
	if strings.Count(body, "event: scan") != 1 {
		t.Errorf("want exactly one scan event (the new run): %q", body)
	}
	if !strings.Contains(body, `"total_checked":4`) {
		t.Errorf("scan event missing summary: %q", body)
	}
}
