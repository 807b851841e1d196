package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zulandar/inspectyard/internal/watchdog"
)

// Color constants for event severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// FormatReport turns the alert-worthy parts of a scan into events: a failed
// scan, every failed inspection, and every inspection that errored. Healthy
// and retried inspections produce nothing.
func FormatReport(report *watchdog.Report) []FormattedEvent {
	if report == nil {
		return nil
	}
	if !report.Success {
		return []FormattedEvent{newEvent("Watchdog scan failed", report.Message, "error", nil)}
	}

	var events []FormattedEvent
	for _, res := range report.Results {
		switch res.Status {
		case watchdog.OutcomeFailed:
			fields := []Field{
				{Name: "Exhausted", Value: strings.Join(res.ExhaustedAgents, ", "), Short: true},
			}
			if len(res.TimedOutAgents) > 0 {
				fields = append(fields, Field{Name: "Timed out", Value: strings.Join(res.TimedOutAgents, ", "), Short: true})
			}
			events = append(events, newEvent(
				fmt.Sprintf("Inspection %s failed", res.JobID),
				watchdog.FailureMessage(res.ExhaustedAgents),
				"error", fields))
		case watchdog.OutcomeError:
			events = append(events, newEvent(
				fmt.Sprintf("Inspection %s could not be checked", res.JobID),
				res.Error, "warning", nil))
		}
	}
	return events
}

// FormatSummary is the plain-text line sent alongside the events.
func FormatSummary(report *watchdog.Report) string {
	s := report.Summary
	parts := []string{
		"checked " + strconv.Itoa(s.TotalChecked),
		"failed " + strconv.Itoa(s.Failed),
		"errors " + strconv.Itoa(s.Errors),
	}
	if n := report.Retried(); n > 0 {
		parts = append(parts, "retried "+strconv.Itoa(n))
	}
	return "Watchdog: " + strings.Join(parts, ", ")
}

func newEvent(title, body, severity string, fields []Field) FormattedEvent {
	return FormattedEvent{
		Title:    title,
		Body:     body,
		Severity: severity,
		Color:    severityColor(severity),
		Fields:   fields,
	}
}
