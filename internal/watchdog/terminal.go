package watchdog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zulandar/inspectyard/internal/models"
)

// FailureMessage is the error message recorded on a job whose agents ran
// out of retries.
func FailureMessage(agents []string) string {
	names := append([]string(nil), agents...)
	sort.Strings(names)
	return "agents exhausted retries: " + strings.Join(names, ", ")
}

// FailJob marks the job failed when any agent is exhausted. It is a no-op for
// an empty set and safe to repeat.
func FailJob(ctx context.Context, js JobStore, jobID string, exhausted []models.AgentExecution) (string, error) {
	if len(exhausted) == 0 {
		return "", nil
	}
	msg := FailureMessage(agentNames(exhausted))
	if err := js.MarkFailed(ctx, jobID, msg); err != nil {
		return msg, fmt.Errorf("watchdog: fail job %s: %w", jobID, err)
	}
	return msg, nil
}

func agentNames(execs []models.AgentExecution) []string {
	names := make([]string, 0, len(execs))
	for _, e := range execs {
		names = append(names, e.AgentName)
	}
	return names
}
