package main

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/inspectyard/internal/config"
	"github.com/zulandar/inspectyard/internal/db"
	"github.com/zulandar/inspectyard/internal/models"
	"github.com/zulandar/inspectyard/internal/watchdog"
)

var (
	createdRe = regexp.MustCompile(`Created inspection (\S+) \(queued\)`)
	leaseRe   = regexp.MustCompile(`lease (\d+)`)
)

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("%s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// setupRunningJob initializes the database and drives one inspection to a
// processing state with a single running cost_forecast attempt.
func setupRunningJob(t *testing.T, cfgPath string) string {
	t.Helper()
	mustRun(t, "db", "init", "-c", cfgPath)

	out := mustRun(t, "job", "create", "-c", cfgPath, "--vehicle", "veh-7", "--vin", "1HGCM82633A004352")
	m := createdRe.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no inspection ID in %q", out)
	}
	id := m[1]

	mustRun(t, "job", "start", id, "-c", cfgPath, "--run", "run-1")
	out = mustRun(t, "agent", "dispatch", id, "cost_forecast", "-c", cfgPath)
	if !strings.Contains(out, "execution 1, max retries 2") {
		t.Errorf("dispatch output = %q", out)
	}
	out = mustRun(t, "agent", "begin", "1", "-c", cfgPath)
	if !strings.Contains(out, "attempt 1/2") {
		t.Errorf("begin output = %q", out)
	}
	return id
}

func ageExecution(t *testing.T, cfgPath string, age time.Duration) {
	t.Helper()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gormDB.Model(&models.AgentExecution{}).Where("id = ?", 1).
		Update("started_at", time.Now().Add(-age)).Error; err != nil {
		t.Fatalf("age execution: %v", err)
	}
}

func TestWatchdogScan_NoJobs(t *testing.T) {
	cfgPath := writeConfig(t, "")
	mustRun(t, "db", "init", "-c", cfgPath)

	out := mustRun(t, "watchdog", "scan", "-c", cfgPath, "--json")
	var report watchdog.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if !report.Success || report.Summary.TotalChecked != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.Message != "no processing inspections" {
		t.Errorf("Message = %q", report.Message)
	}
}

func TestWatchdogScan_HealthyJob(t *testing.T) {
	cfgPath := writeConfig(t, "")
	id := setupRunningJob(t, cfgPath)

	out := mustRun(t, "watchdog", "scan", "-c", cfgPath)
	if !strings.Contains(out, id) || !strings.Contains(out, "healthy") {
		t.Errorf("scan output = %s", out)
	}
}

func TestWatchdogScan_StuckAgentRetried(t *testing.T) {
	cfgPath := writeConfig(t, "")
	id := setupRunningJob(t, cfgPath)
	ageExecution(t, cfgPath, time.Hour)

	out := mustRun(t, "watchdog", "scan", "-c", cfgPath, "--json")
	var report watchdog.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if len(report.Results) != 1 {
		t.Fatalf("results = %+v", report.Results)
	}
	res := report.Results[0]
	if res.JobID != id || res.Status != watchdog.OutcomeIssuesDetected {
		t.Errorf("result = %+v", res)
	}
	if len(res.RetriedExecutions) != 1 || res.RetriedExecutions[0].Agent != "cost_forecast" {
		t.Errorf("retried = %+v", res.RetriedExecutions)
	}

	// The retried execution begins again as attempt 2.
	out = mustRun(t, "agent", "begin", "1", "-c", cfgPath)
	if !strings.Contains(out, "attempt 2/2") {
		t.Errorf("begin after retry = %q", out)
	}

	out = mustRun(t, "watchdog", "history", "-c", cfgPath)
	if !strings.Contains(out, "cli") {
		t.Errorf("history missing cli run: %s", out)
	}
}

func TestWatchdogScan_ExhaustedFailsJob(t *testing.T) {
	cfgPath := writeConfig(t, "")
	id := setupRunningJob(t, cfgPath)

	// Use up the retry budget: retry, restart, and hang again.
	ageExecution(t, cfgPath, time.Hour)
	mustRun(t, "watchdog", "scan", "-c", cfgPath)
	mustRun(t, "agent", "begin", "1", "-c", cfgPath)
	ageExecution(t, cfgPath, time.Hour)

	out := mustRun(t, "watchdog", "scan", "-c", cfgPath)
	if !strings.Contains(out, "failed") {
		t.Errorf("scan output = %s", out)
	}

	out = mustRun(t, "job", "show", id, "-c", cfgPath)
	if !strings.Contains(out, "Status:     failed") {
		t.Errorf("job show = %s", out)
	}
	if !strings.Contains(out, "agents exhausted retries: cost_forecast") {
		t.Errorf("missing failure message: %s", out)
	}
	if !strings.Contains(out, "timeout") {
		t.Errorf("execution should be timeout: %s", out)
	}
}

func TestAgentFinish_StaleLease(t *testing.T) {
	cfgPath := writeConfig(t, "")
	setupRunningJob(t, cfgPath)
	ageExecution(t, cfgPath, time.Hour)
	mustRun(t, "watchdog", "scan", "-c", cfgPath)

	out := mustRun(t, "agent", "begin", "1", "-c", cfgPath)
	m := leaseRe.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no lease in %q", out)
	}

	// The first attempt's lease no longer matches.
	_, err := runCmd(t, "agent", "finish", "1", "-c", cfgPath, "--lease", "1")
	if err == nil || !strings.Contains(err.Error(), "stale lease") {
		t.Errorf("err = %v, want stale lease", err)
	}

	out = mustRun(t, "agent", "finish", "1", "-c", cfgPath, "--lease", m[1], "--status", "completed")
	if !strings.Contains(out, "completed") {
		t.Errorf("finish output = %q", out)
	}
}

func TestAgentFinish_InvalidStatus(t *testing.T) {
	cfgPath := writeConfig(t, "")
	setupRunningJob(t, cfgPath)
	if _, err := runCmd(t, "agent", "finish", "1", "-c", cfgPath, "--lease", "1", "--status", "bogus"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestJobList(t *testing.T) {
	cfgPath := writeConfig(t, "")
	id := setupRunningJob(t, cfgPath)

	out := mustRun(t, "job", "list", "-c", cfgPath, "--status", "processing")
	if !strings.Contains(out, id) || !strings.Contains(out, "run-1") {
		t.Errorf("job list = %s", out)
	}
	out = mustRun(t, "job", "list", "-c", cfgPath, "--status", "failed")
	if !strings.Contains(out, "No inspections found.") {
		t.Errorf("job list failed = %s", out)
	}
}

func TestWatchdogHistory_Empty(t *testing.T) {
	cfgPath := writeConfig(t, "")
	mustRun(t, "db", "init", "-c", cfgPath)
	out := mustRun(t, "watchdog", "history", "-c", cfgPath)
	if !strings.Contains(out, "No watchdog runs recorded.") {
		t.Errorf("history = %s", out)
	}
}

func TestWatchdogRun_InvalidSchedule(t *testing.T) {
	cfgPath := writeConfig(t, "")
	mustRun(t, "db", "init", "-c", cfgPath)
	if _, err := runCmd(t, "watchdog", "run", "-c", cfgPath, "--schedule", "not a cron"); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestServeCmd_Flags(t *testing.T) {
	cmd := newServeCmd()
	if f := cmd.Flags().Lookup("port"); f == nil || f.Shorthand != "p" {
		t.Errorf("port flag = %+v", f)
	}
	if f := cmd.Flags().Lookup("watchdog"); f == nil || f.DefValue != "false" {
		t.Errorf("watchdog flag = %+v", f)
	}
}
