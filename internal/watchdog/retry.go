package watchdog

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/zulandar/inspectyard/internal/execution"
	"github.com/zulandar/inspectyard/internal/models"
)

// RetriedExecution describes one execution put back to pending.
type RetriedExecution struct {
	Agent       string `json:"agent"`
	ExecutionID uint   `json:"execution_id"`
	Attempt     int    `json:"attempt"`
	MaxRetries  int    `json:"max_retries"`
}

// Retry puts each execution back to pending so the orchestrator re-runs it.
// The attempt number, started_at and completed_at are left as they are; the
// orchestrator increments the attempt when it actually restarts the agent.
//
// A failed write is logged and that agent is skipped; it stays in its prior
// state and is picked up again on the next pass.
func Retry(ctx context.Context, es ExecutionStore, execs []models.AgentExecution, out io.Writer) []RetriedExecution {
	if out == nil {
		out = io.Discard
	}
	retried := []RetriedExecution{}

	for _, exec := range execs {
		// Classification and dispatch are not atomic.
		if exec.AttemptNumber >= exec.MaxRetries {
			log.Printf("watchdog: skip retry of %s (execution %d): attempt %d/%d",
				exec.AgentName, exec.ID, exec.AttemptNumber, exec.MaxRetries)
			continue
		}
		if err := ctx.Err(); err != nil {
			log.Printf("watchdog: retry %s (execution %d): %v", exec.AgentName, exec.ID, err)
			return retried
		}
		if err := es.MarkPending(ctx, exec); err != nil {
			log.Printf("watchdog: retry %s (execution %d): %v", exec.AgentName, exec.ID, err)
			continue
		}

		msg := fmt.Sprintf("retry requested after %s at attempt %d/%d", exec.Status, exec.AttemptNumber, exec.MaxRetries)
		note(ctx, es, exec, execution.StatusPending, msg)
		fmt.Fprintf(out, "Agent %s (execution %d) set to pending, attempt %d/%d\n",
			exec.AgentName, exec.ID, exec.AttemptNumber, exec.MaxRetries)

		retried = append(retried, RetriedExecution{
			Agent:       exec.AgentName,
			ExecutionID: exec.ID,
			Attempt:     exec.AttemptNumber,
			MaxRetries:  exec.MaxRetries,
		})
	}
	return retried
}
