package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zulandar/inspectyard/internal/watchdog"
)

func failedReport() *watchdog.Report {
	return watchdog.Aggregate([]watchdog.JobResult{
		{JobID: "J1", Status: watchdog.OutcomeFailed, ExhaustedAgents: []string{"cost_forecast"}, TimedOutAgents: []string{"cost_forecast"}},
		{JobID: "J2", Status: watchdog.OutcomeHealthy},
		{JobID: "J3", Status: watchdog.OutcomeError, Error: "list executions: connection refused"},
		{JobID: "J4", Status: watchdog.OutcomeIssuesDetected, RetriedExecutions: []watchdog.RetriedExecution{{Agent: "vin_decode", ExecutionID: 9, Attempt: 1, MaxRetries: 3}}},
	})
}

func TestFormatReport(t *testing.T) {
	events := FormatReport(failedReport())
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Title != "Inspection J1 failed" {
		t.Errorf("Title = %q", events[0].Title)
	}
	if events[0].Body != "agents exhausted retries: cost_forecast" {
		t.Errorf("Body = %q", events[0].Body)
	}
	if events[0].Color != ColorError {
		t.Errorf("Color = %q, want %q", events[0].Color, ColorError)
	}
	if len(events[0].Fields) != 2 {
		t.Errorf("Fields = %+v, want exhausted and timed out", events[0].Fields)
	}
	if events[1].Severity != "warning" || !strings.Contains(events[1].Body, "connection refused") {
		t.Errorf("error event = %+v", events[1])
	}
}

func TestFormatReport_ScanFailed(t *testing.T) {
	events := FormatReport(&watchdog.Report{Success: false, Message: "list processing inspections: timeout"})
	if len(events) != 1 || events[0].Title != "Watchdog scan failed" {
		t.Errorf("events = %+v", events)
	}
}

func TestFormatReport_NothingToSay(t *testing.T) {
	r := watchdog.Aggregate([]watchdog.JobResult{{JobID: "J1", Status: watchdog.OutcomeHealthy}})
	if events := FormatReport(r); len(events) != 0 {
		t.Errorf("events = %+v, want none", events)
	}
	if FormatReport(nil) != nil {
		t.Error("nil report should produce no events")
	}
}

func TestFormatSummary(t *testing.T) {
	got := FormatSummary(failedReport())
	want := "Watchdog: checked 4, failed 1, errors 1, retried 1"
	if got != want {
		t.Errorf("FormatSummary = %q, want %q", got, want)
	}
}

func TestNotifier_Alert(t *testing.T) {
	slack := NewMockAdapter()
	discord := NewMockAdapter()
	n := New(map[string]Adapter{"slack": slack, "discord": discord, "none": nil})
	if n.Len() != 2 {
		t.Errorf("Len = %d, want 2", n.Len())
	}

	if err := n.Alert(context.Background(), failedReport()); err != nil {
		t.Fatalf("Alert: %v", err)
	}
	for name, m := range map[string]*MockAdapter{"slack": slack, "discord": discord} {
		sent := m.Sent()
		if len(sent) != 1 {
			t.Fatalf("%s: sent %d messages, want 1", name, len(sent))
		}
		if len(sent[0].Events) != 2 {
			t.Errorf("%s: events = %d, want 2", name, len(sent[0].Events))
		}
	}
}

func TestNotifier_QuietWhenHealthy(t *testing.T) {
	m := NewMockAdapter()
	n := New(map[string]Adapter{"slack": m})
	r := watchdog.Aggregate([]watchdog.JobResult{{JobID: "J1", Status: watchdog.OutcomeIssuesDetected}})
	if err := n.Alert(context.Background(), r); err != nil {
		t.Fatalf("Alert: %v", err)
	}
	if len(m.Sent()) != 0 {
		t.Errorf("sent %d messages, want 0", len(m.Sent()))
	}
}

func TestNotifier_AdapterErrorDoesNotBlockOthers(t *testing.T) {
	broken := NewMockAdapter()
	broken.Err = errors.New("channel_not_found")
	ok := NewMockAdapter()
	n := New(map[string]Adapter{"slack": broken, "discord": ok})

	err := n.Alert(context.Background(), failedReport())
	if err == nil || !strings.Contains(err.Error(), "notify: slack: channel_not_found") {
		t.Errorf("err = %v, want slack failure", err)
	}
	if len(ok.Sent()) != 1 {
		t.Errorf("discord sent %d, want 1", len(ok.Sent()))
	}
}
