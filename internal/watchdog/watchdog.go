// Package watchdog scans in-flight inspections for hung, timed-out, and
// failed agent executions, puts retryable ones back to pending for the
// orchestrator, and fails inspections whose agents exhausted their retries.
package watchdog

import (
	"context"
	"time"

	"github.com/zulandar/inspectyard/internal/execution"
	"github.com/zulandar/inspectyard/internal/models"
)

// DefaultAgentTimeout is how long an execution may stay running before it
// is considered stuck.
const DefaultAgentTimeout = 15 * time.Minute

// JobStore reads and fails inspections.
type JobStore interface {
	// ListProcessing returns processing inspections that carry an
	// orchestrator run, newest first.
	ListProcessing(ctx context.Context) ([]models.Inspection, error)
	MarkFailed(ctx context.Context, jobID, message string) error
}

// ExecutionStore reads executions and applies the watchdog's conditional
// writes. MarkTimeout and MarkPending return an error wrapping
// execution.ErrConflict when the row changed since it was read.
type ExecutionStore interface {
	execution.Lister
	MarkTimeout(ctx context.Context, exec models.AgentExecution, message string) error
	MarkPending(ctx context.Context, exec models.AgentExecution) error
	AddNote(ctx context.Context, note models.ExecutionNote) error
}

// Store is everything a scan needs.
type Store interface {
	JobStore
	ExecutionStore
}

// AgentConfigLister returns the agent_configs rows.
type AgentConfigLister interface {
	AgentConfigs(ctx context.Context) ([]models.AgentConfig, error)
}
