package watchdog

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/zulandar/inspectyard/internal/execution"
	"github.com/zulandar/inspectyard/internal/models"
)

// Health is the classifier's verdict for one agent's latest execution.
type Health int

const (
	Healthy Health = iota
	StuckRetryable
	FailedRetryable
	Exhausted
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case StuckRetryable:
		return "stuck_retryable"
	case FailedRetryable:
		return "failed_retryable"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("health(%d)", int(h))
}

// Verdict is the result of classifying one execution.
type Verdict struct {
	Health Health
	// MarkTimeout is set when a running execution overran its timeout with
	// no retries left; it must be rewritten to timeout.
	MarkTimeout bool
	Elapsed     time.Duration
}

// Classify decides the health of an agent's latest execution. It is pure:
// the MarkTimeout side effect is left to the caller.
func Classify(exec models.AgentExecution, now time.Time, timeout time.Duration) (Verdict, error) {
	status, err := execution.ParseStatus(exec.Status)
	if err != nil {
		return Verdict{}, err
	}
	retriesLeft := exec.AttemptNumber < exec.MaxRetries

	switch status {
	case execution.StatusRunning:
		if exec.StartedAt == nil {
			return Verdict{Health: Healthy}, nil
		}
		elapsed := now.Sub(*exec.StartedAt)
		if elapsed <= timeout {
			return Verdict{Health: Healthy, Elapsed: elapsed}, nil
		}
		if retriesLeft {
			return Verdict{Health: StuckRetryable, Elapsed: elapsed}, nil
		}
		return Verdict{Health: Exhausted, MarkTimeout: true, Elapsed: elapsed}, nil

	case execution.StatusFailed, execution.StatusTimeout:
		if retriesLeft {
			return Verdict{Health: FailedRetryable}, nil
		}
		return Verdict{Health: Exhausted}, nil

	case execution.StatusPending, execution.StatusCompleted,
		execution.StatusSkipped, execution.StatusCancelled:
		return Verdict{Health: Healthy}, nil
	}
	return Verdict{}, fmt.Errorf("watchdog: unhandled status %q", status)
}

// Classification groups a job's agents by verdict. Each list is sorted by
// agent name.
type Classification struct {
	StuckRetryable  []models.AgentExecution
	FailedRetryable []models.AgentExecution
	Exhausted       []models.AgentExecution
	// Deferred holds exhausted running agents whose timeout write failed.
	// They do not fail the job in this pass.
	Deferred []models.AgentExecution
	// TimedOut names the running agents rewritten to timeout in this pass.
	TimedOut []string
}

// Retryable returns the stuck and failed executions to hand to Retry.
func (c Classification) Retryable() []models.AgentExecution {
	out := make([]models.AgentExecution, 0, len(c.StuckRetryable)+len(c.FailedRetryable))
	out = append(out, c.StuckRetryable...)
	return append(out, c.FailedRetryable...)
}

// ClassifyJob classifies every agent in snap and, for running executions
// that overran with no retries left, writes status timeout so they stop
// reporting running. When that write fails the row may have moved on (the
// agent finished, or was restarted), so the agent goes to Deferred instead of
// Exhausted and the job stays processing for the next pass.
func ClassifyJob(ctx context.Context, es ExecutionStore, snap execution.Snapshot, now time.Time, timeoutFor func(agent string) time.Duration, out io.Writer) (Classification, error) {
	if out == nil {
		out = io.Discard
	}
	var cls Classification

	for _, agent := range snap.Agents() {
		exec := snap[agent]
		timeout := timeoutFor(agent)
		v, err := Classify(exec, now, timeout)
		if err != nil {
			return Classification{}, fmt.Errorf("watchdog: classify %s: %w", agent, err)
		}

		switch v.Health {
		case Healthy:
		case StuckRetryable:
			fmt.Fprintf(out, "Agent %s (execution %d) running for %s, over %s, retry %d/%d\n",
				agent, exec.ID, v.Elapsed.Round(time.Second), timeout, exec.AttemptNumber, exec.MaxRetries)
			cls.StuckRetryable = append(cls.StuckRetryable, exec)
		case FailedRetryable:
			fmt.Fprintf(out, "Agent %s (execution %d) %s at attempt %d/%d, retrying\n",
				agent, exec.ID, exec.Status, exec.AttemptNumber, exec.MaxRetries)
			cls.FailedRetryable = append(cls.FailedRetryable, exec)
		case Exhausted:
			if v.MarkTimeout {
				msg := fmt.Sprintf("no result after %s (timeout %s), %d/%d attempts used",
					v.Elapsed.Round(time.Second), timeout, exec.AttemptNumber, exec.MaxRetries)
				if err := es.MarkTimeout(ctx, exec, msg); err != nil {
					log.Printf("watchdog: mark %s (execution %d) timeout: %v", agent, exec.ID, err)
					fmt.Fprintf(out, "Agent %s (execution %d) timeout not recorded, re-checking next pass\n", agent, exec.ID)
					cls.Deferred = append(cls.Deferred, exec)
					continue
				}
				fmt.Fprintf(out, "Agent %s (execution %d) timed out: %s\n", agent, exec.ID, msg)
				note(ctx, es, exec, execution.StatusTimeout, msg)
				exec.Status = string(execution.StatusTimeout)
				cls.TimedOut = append(cls.TimedOut, agent)
			} else {
				fmt.Fprintf(out, "Agent %s (execution %d) %s with %d/%d attempts, exhausted\n",
					agent, exec.ID, exec.Status, exec.AttemptNumber, exec.MaxRetries)
			}
			cls.Exhausted = append(cls.Exhausted, exec)
		}
	}
	return cls, nil
}

// note writes an audit entry; failures are logged only.
func note(ctx context.Context, es ExecutionStore, exec models.AgentExecution, to execution.Status, text string) {
	err := es.AddNote(ctx, models.ExecutionNote{
		ExecutionID:  exec.ID,
		InspectionID: exec.InspectionID,
		AgentName:    exec.AgentName,
		FromStatus:   exec.Status,
		ToStatus:     string(to),
		Attempt:      exec.AttemptNumber,
		Note:         text,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		log.Printf("watchdog: note for execution %d: %v", exec.ID, err)
	}
}
