// Package metrics exposes watchdog scan results as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zulandar/inspectyard/internal/watchdog"
)

const (
	subsystem = "inspectyard_watchdog"

	outcomeLabel = "outcome"
)

var outcomes = []watchdog.Outcome{
	watchdog.OutcomeHealthy,
	watchdog.OutcomeIssuesDetected,
	watchdog.OutcomeFailed,
	watchdog.OutcomeNoAgents,
	watchdog.OutcomeError,
}

// Recorder implements watchdog.Recorder.
type Recorder struct {
	scans      *prometheus.CounterVec
	jobs       *prometheus.GaugeVec
	retries    prometheus.Counter
	timeouts   prometheus.Counter
	duration   prometheus.Histogram
	lastScanTS prometheus.Gauge
}

// NewRecorder creates the watchdog collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "scans_total",
			Help:      "number of watchdog scans, by whether the batch could be listed",
		}, []string{"success"}),
		jobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "jobs",
			Help:      "inspections per outcome in the most recent scan",
		}, []string{outcomeLabel}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "retries_total",
			Help:      "executions put back to pending",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "timeouts_total",
			Help:      "running executions rewritten to timeout",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "scan_duration_seconds",
			Help:      "time spent on one scan",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		lastScanTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Subsystem: subsystem,
			Name:      "last_scan_timestamp_seconds",
			Help:      "unix time of the most recent scan",
		}),
	}
	reg.MustRegister(r.Collectors()...)
	return r
}

// Collectors returns the recorder's collectors.
func (r *Recorder) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.scans, r.jobs, r.retries, r.timeouts, r.duration, r.lastScanTS}
}

// Observe records one scan.
func (r *Recorder) Observe(report *watchdog.Report, elapsed time.Duration) {
	success := "true"
	if !report.Success {
		success = "false"
	}
	r.scans.WithLabelValues(success).Inc()
	r.duration.Observe(elapsed.Seconds())
	r.lastScanTS.SetToCurrentTime()
	if !report.Success {
		return
	}

	counts := map[watchdog.Outcome]int{
		watchdog.OutcomeHealthy:        report.Summary.Healthy,
		watchdog.OutcomeIssuesDetected: report.Summary.IssuesDetected,
		watchdog.OutcomeFailed:         report.Summary.Failed,
		watchdog.OutcomeNoAgents:       report.Summary.NoAgents,
		watchdog.OutcomeError:          report.Summary.Errors,
	}
	for _, o := range outcomes {
		r.jobs.With(prometheus.Labels{outcomeLabel: string(o)}).Set(float64(counts[o]))
	}
	r.retries.Add(float64(report.Retried()))
	r.timeouts.Add(float64(report.TimedOut()))
}

var _ watchdog.Recorder = (*Recorder)(nil)
