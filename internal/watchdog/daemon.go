package watchdog

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/inspectyard/internal/config"
	"github.com/zulandar/inspectyard/internal/models"
)

// Trigger names recorded on a WatchdogRun.
const (
	TriggerCron = "cron"
	TriggerHTTP = "http"
	TriggerCLI  = "cli"
)

// RunSaver persists scan summaries.
type RunSaver interface {
	SaveRun(ctx context.Context, run *models.WatchdogRun) error
}

// Recorder publishes scan results, e.g. as metrics.
type Recorder interface {
	Observe(report *Report, elapsed time.Duration)
}

// Alerter is told about every completed scan and decides whether to alert.
type Alerter interface {
	Alert(ctx context.Context, report *Report) error
}

// Runner wraps a Scanner with the bookkeeping shared by every trigger.
// Runs, Recorder and Alerter are optional.
type Runner struct {
	Scanner  *Scanner
	Runs     RunSaver
	Recorder Recorder
	Alerter  Alerter
	Out      io.Writer
}

// RunOnce performs a single scan and records it.
func (r *Runner) RunOnce(ctx context.Context, trigger string) *Report {
	started := time.Now()
	report := r.Scanner.Scan(ctx)
	finished := time.Now()

	if r.Runs != nil {
		run := RunRecord(report, trigger, started, finished)
		if err := r.Runs.SaveRun(ctx, &run); err != nil {
			log.Printf("watchdog: save run: %v", err)
		}
	}
	if r.Recorder != nil {
		r.Recorder.Observe(report, finished.Sub(started))
	}
	if r.Alerter != nil {
		if err := r.Alerter.Alert(ctx, report); err != nil {
			log.Printf("watchdog: alert: %v", err)
		}
	}
	return report
}

// RunRecord converts a report into its persisted summary row.
func RunRecord(report *Report, trigger string, started, finished time.Time) models.WatchdogRun {
	return models.WatchdogRun{
		Trigger:        trigger,
		Success:        report.Success,
		Message:        report.Message,
		TotalChecked:   report.Summary.TotalChecked,
		Healthy:        report.Summary.Healthy,
		IssuesDetected: report.Summary.IssuesDetected,
		Failed:         report.Summary.Failed,
		Errors:         report.Summary.Errors,
		NoAgents:       report.Summary.NoAgents,
		Retried:        report.Retried(),
		StartedAt:      started,
		FinishedAt:     finished,
	}
}

// nextRun returns the duration until schedule next fires after now.
func nextRun(schedule cron.Schedule, now time.Time) time.Duration {
	d := schedule.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// RunDaemon scans once immediately and then on every tick of the cron
// schedule until ctx is cancelled. Passes never overlap: a pass that
// overruns the next tick delays it.
func (r *Runner) RunDaemon(ctx context.Context, schedule string) error {
	sched, err := config.ParseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("watchdog: parse schedule %q: %w", schedule, err)
	}
	out := r.Out
	if out == nil {
		out = io.Discard
	}

	fmt.Fprintf(out, "Watchdog daemon starting (schedule %q)...\n", schedule)
	defer fmt.Fprintf(out, "Watchdog daemon stopped.\n")

	r.RunOnce(ctx, TriggerCron)

	timer := time.NewTimer(nextRun(sched, time.Now()))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			r.RunOnce(ctx, TriggerCron)
			timer.Reset(nextRun(sched, time.Now()))
		}
	}
}
