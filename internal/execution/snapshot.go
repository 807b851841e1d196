package execution

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/zulandar/inspectyard/internal/models"
)

// ErrNoExecutions is returned when a job has no execution rows yet, i.e. the
// orchestrator run has not dispatched any agent.
var ErrNoExecutions = errors.New("execution: no executions found")

// ErrConflict is returned by a conditional write whose guard no longer
// matches the row, i.e. the execution changed since it was read.
var ErrConflict = errors.New("execution: row changed concurrently")

// Lister reads a job's executions ordered by agent name ascending, then
// attempt number descending.
type Lister interface {
	ListForJob(ctx context.Context, jobID string) ([]models.AgentExecution, error)
}

// Snapshot maps agent name to the agent's most recent attempt.
type Snapshot map[string]models.AgentExecution

// Agents returns the snapshot's agent names in ascending order.
func (s Snapshot) Agents() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadSnapshot reads every execution of jobID and reduces it to the latest
// attempt per agent. It returns ErrNoExecutions for a job without rows.
func LoadSnapshot(ctx context.Context, l Lister, jobID string) (Snapshot, error) {
	if jobID == "" {
		return nil, fmt.Errorf("execution: jobID is required")
	}
	rows, err := l.ListForJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("execution: load %s: %w", jobID, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoExecutions
	}
	return Latest(rows), nil
}

// Latest folds rows, already ordered by agent name then attempt descending,
// into a Snapshot. The first row seen for an agent wins.
func Latest(rows []models.AgentExecution) Snapshot {
	return fold(rows, Snapshot{}, func(acc Snapshot, row models.AgentExecution) Snapshot {
		if _, seen := acc[row.AgentName]; !seen {
			acc[row.AgentName] = row
		}
		return acc
	})
}

func fold[T, A any](xs []T, acc A, f func(A, T) A) A {
	for _, x := range xs {
		acc = f(acc, x)
	}
	return acc
}
