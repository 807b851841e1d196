package watchdog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/zulandar/inspectyard/internal/config"
	"github.com/zulandar/inspectyard/internal/execution"
	"github.com/zulandar/inspectyard/internal/models"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Scanner runs watchdog passes over processing inspections. A Scanner holds
// no state between passes; everything lives in the Store.
type Scanner struct {
	Store Store

	// Timeout is how long an execution may run before it is stuck.
	Timeout time.Duration
	// AgentTimeouts overrides Timeout per agent name.
	AgentTimeouts map[string]time.Duration
	// MaxRetries is the configured budget per agent name, used for rows that
	// carry none.
	MaxRetries        map[string]int
	DefaultMaxRetries int

	// Agents, when set, supplies overrides from the agent_configs table.
	Agents AgentConfigLister

	// Concurrency bounds how many jobs are processed at once.
	Concurrency int

	Now func() time.Time
	Out io.Writer
}

// NewScanner returns a Scanner configured from cfg.
func NewScanner(st Store, cfg *config.Config, out io.Writer) *Scanner {
	s := &Scanner{
		Store:             st,
		Timeout:           cfg.Watchdog.AgentTimeout,
		AgentTimeouts:     make(map[string]time.Duration),
		MaxRetries:        make(map[string]int),
		DefaultMaxRetries: cfg.Watchdog.DefaultMaxRetries,
		Concurrency:       cfg.Watchdog.Concurrency,
		Out:               out,
	}
	if al, ok := st.(AgentConfigLister); ok {
		s.Agents = al
	}
	for _, a := range cfg.Agents {
		if a.Timeout > 0 {
			s.AgentTimeouts[a.Name] = a.Timeout
		}
		if a.MaxRetries > 0 {
			s.MaxRetries[a.Name] = a.MaxRetries
		}
	}
	return s
}

// limits holds the per-agent timeout and retry budget for one pass.
type limits struct {
	timeout       time.Duration
	timeouts      map[string]time.Duration
	maxRetries    map[string]int
	defaultMaxRet int
}

// passLimits merges the configured overrides with the agent_configs rows; a row
// wins over the config file. A failed lookup falls back to the config file.
func (s *Scanner) passLimits(ctx context.Context) *limits {
	l := &limits{
		timeout:       s.Timeout,
		timeouts:      make(map[string]time.Duration, len(s.AgentTimeouts)),
		maxRetries:    make(map[string]int, len(s.MaxRetries)),
		defaultMaxRet: s.DefaultMaxRetries,
	}
	for name, d := range s.AgentTimeouts {
		l.timeouts[name] = d
	}
	for name, n := range s.MaxRetries {
		l.maxRetries[name] = n
	}
	if s.Agents == nil {
		return l
	}

	rows, err := s.Agents.AgentConfigs(ctx)
	if err != nil {
		log.Printf("watchdog: load agent configs: %v", err)
		return l
	}
	for _, ac := range rows {
		if ac.TimeoutSeconds > 0 {
			l.timeouts[ac.Name] = time.Duration(ac.TimeoutSeconds) * time.Second
		}
		if ac.MaxRetries > 0 {
			l.maxRetries[ac.Name] = ac.MaxRetries
		}
	}
	return l
}

func (l *limits) timeoutFor(agent string) time.Duration {
	if d, ok := l.timeouts[agent]; ok && d > 0 {
		return d
	}
	if l.timeout > 0 {
		return l.timeout
	}
	return DefaultAgentTimeout
}

func (l *limits) maxRetriesFor(exec models.AgentExecution) int {
	if exec.MaxRetries > 0 {
		return exec.MaxRetries
	}
	if n, ok := l.maxRetries[exec.AgentName]; ok && n > 0 {
		return n
	}
	if l.defaultMaxRet > 0 {
		return l.defaultMaxRet
	}
	return execution.DefaultMaxRetries
}

// Scan runs one pass: every processing inspection with an orchestrator run
// is classified, its retryable agents are put back to pending, and it is
// failed if any agent is exhausted. A listing failure yields an unsuccessful
// report with no results; a failure on one job only affects that job.
func (s *Scanner) Scan(ctx context.Context) *Report {
	out := s.Out
	if out == nil {
		out = io.Discard
	}
	out = &lockedWriter{w: out}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	jobs, err := s.Store.ListProcessing(ctx)
	if err != nil {
		log.Printf("watchdog: list processing inspections: %v", err)
		return failedReport(err)
	}

	lim := s.passLimits(ctx)
	limit := s.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	results := make([]JobResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = s.scanJob(ctx, job.ID, now, lim, out)
			return nil
		})
	}
	g.Wait()

	report := Aggregate(results)
	fmt.Fprintf(out, "Watchdog: %s\n", report.Message)
	return report
}

// scanJob processes one inspection. Panics are recovered into an error
// outcome so that one job cannot take down the batch.
func (s *Scanner) scanJob(ctx context.Context, jobID string, now time.Time, lim *limits, out io.Writer) (res JobResult) {
	res = newJobResult(jobID)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("watchdog: job %s: panic: %v", jobID, r)
			res.Error = fmt.Sprintf("panic: %v", r)
			res.Status = OutcomeError
		}
	}()

	snap, err := execution.LoadSnapshot(ctx, s.Store, jobID)
	if errors.Is(err, execution.ErrNoExecutions) {
		res.Status = OutcomeNoAgents
		return res
	}
	if err != nil {
		log.Printf("watchdog: job %s: %v", jobID, err)
		res.Error = err.Error()
		res.Status = OutcomeError
		return res
	}
	for agent, exec := range snap {
		exec.MaxRetries = lim.maxRetriesFor(exec)
		snap[agent] = exec
	}

	cls, err := ClassifyJob(ctx, s.Store, snap, now, lim.timeoutFor, out)
	if err != nil {
		log.Printf("watchdog: job %s: %v", jobID, err)
		res.Error = err.Error()
		res.Status = OutcomeError
		return res
	}
	res.StuckAgents = append(res.StuckAgents, agentNames(cls.StuckRetryable)...)
	res.StuckAgents = append(res.StuckAgents, agentNames(cls.Deferred)...)
	res.FailedAgents = append(res.FailedAgents, agentNames(cls.FailedRetryable)...)
	res.ExhaustedAgents = append(res.ExhaustedAgents, agentNames(cls.Exhausted)...)
	res.TimedOutAgents = append(res.TimedOutAgents, cls.TimedOut...)

	res.RetriedExecutions = Retry(ctx, s.Store, cls.Retryable(), out)

	// Only after every agent of the job has been classified.
	msg, err := FailJob(ctx, s.Store, jobID, cls.Exhausted)
	if err != nil {
		log.Printf("watchdog: %v", err)
		res.Error = err.Error()
	} else if msg != "" {
		fmt.Fprintf(out, "Inspection %s failed: %s\n", jobID, msg)
	}

	res.Status = outcomeFor(res)
	return res
}

// lockedWriter serializes progress lines from concurrent jobs.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
