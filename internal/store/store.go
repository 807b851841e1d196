// Package store implements the watchdog's job and execution collaborators
// on top of GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/inspectyard/internal/execution"
	"github.com/zulandar/inspectyard/internal/inspection"
	"github.com/zulandar/inspectyard/internal/models"
	"gorm.io/gorm"
)

// WatchdogErrorCode is written to error_code when the watchdog times out a
// hung execution.
const WatchdogErrorCode = "watchdog_timeout"

// Gorm is the GORM-backed store.
type Gorm struct {
	db *gorm.DB
}

// New wraps db.
func New(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// ListProcessing returns inspections in processing with an orchestrator run,
// newest first.
func (g *Gorm) ListProcessing(ctx context.Context) ([]models.Inspection, error) {
	var jobs []models.Inspection
	if err := g.db.WithContext(ctx).
		Where("status = ? AND run_id IS NOT NULL AND run_id <> ''", inspection.StatusProcessing).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("store: list processing: %w", err)
	}
	return jobs, nil
}

// MarkFailed sets a processing inspection's status to failed with message.
// An inspection that already failed is rewritten; one that moved to any other
// status since it was listed is left alone and execution.ErrConflict is
// returned.
func (g *Gorm) MarkFailed(ctx context.Context, jobID, message string) error {
	now := time.Now()
	result := g.db.WithContext(ctx).Model(&models.Inspection{}).
		Where("id = ? AND status IN ?", jobID, []string{inspection.StatusProcessing, inspection.StatusFailed}).
		Updates(map[string]interface{}{
			"status":        inspection.StatusFailed,
			"error_message": message,
			"completed_at":  now,
		})
	if result.Error != nil {
		return fmt.Errorf("store: mark %s failed: %w", jobID, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var current models.Inspection
	err := g.db.WithContext(ctx).Select("id", "status").Where("id = ?", jobID).First(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("store: mark %s failed: %w", jobID, inspection.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: mark %s failed: %w", jobID, err)
	}
	return fmt.Errorf("store: mark %s failed: inspection is %s: %w", jobID, current.Status, execution.ErrConflict)
}

// ListForJob returns all executions of a job ordered by agent name, then
// attempt number descending.
func (g *Gorm) ListForJob(ctx context.Context, jobID string) ([]models.AgentExecution, error) {
	var execs []models.AgentExecution
	if err := g.db.WithContext(ctx).
		Where("inspection_id = ?", jobID).
		Order("agent_name ASC, attempt_number DESC, id DESC").
		Find(&execs).Error; err != nil {
		return nil, fmt.Errorf("store: list executions for %s: %w", jobID, err)
	}
	return execs, nil
}

// MarkTimeout moves a running execution to timeout. The write only applies
// if the row is still running with the same attempt and lease.
func (g *Gorm) MarkTimeout(ctx context.Context, exec models.AgentExecution, message string) error {
	return g.conditional(ctx, exec, string(execution.StatusRunning), map[string]interface{}{
		"status":        string(execution.StatusTimeout),
		"completed_at":  time.Now(),
		"error_message": message,
		"error_code":    WatchdogErrorCode,
	})
}

// MarkPending returns an execution to pending and clears its error fields,
// leaving attempt number and timestamps untouched.
func (g *Gorm) MarkPending(ctx context.Context, exec models.AgentExecution) error {
	return g.conditional(ctx, exec, exec.Status, map[string]interface{}{
		"status":        string(execution.StatusPending),
		"error_message": "",
		"error_code":    "",
	})
}

// AddNote appends an audit note.
func (g *Gorm) AddNote(ctx context.Context, note models.ExecutionNote) error {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	if err := g.db.WithContext(ctx).Create(&note).Error; err != nil {
		return fmt.Errorf("store: add note for execution %d: %w", note.ExecutionID, err)
	}
	return nil
}

// conditional applies updates to exec's row only if status, attempt number,
// and lease still match what the caller read.
func (g *Gorm) conditional(ctx context.Context, exec models.AgentExecution, fromStatus string, updates map[string]interface{}) error {
	result := g.db.WithContext(ctx).Model(&models.AgentExecution{}).
		Where("id = ? AND status = ? AND attempt_number = ? AND lease = ?",
			exec.ID, fromStatus, exec.AttemptNumber, exec.Lease).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("store: update execution %d: %w", exec.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: update execution %d: %w", exec.ID, execution.ErrConflict)
	}
	return nil
}

// AgentConfigs returns every agent_configs row.
func (g *Gorm) AgentConfigs(ctx context.Context) ([]models.AgentConfig, error) {
	var rows []models.AgentConfig
	if err := g.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list agent configs: %w", err)
	}
	return rows, nil
}

// Runs returns the most recent watchdog runs, newest first.
func (g *Gorm) Runs(ctx context.Context, limit int) ([]models.WatchdogRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.WatchdogRun
	if err := g.db.WithContext(ctx).Order("started_at DESC, id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	return runs, nil
}

// SaveRun persists a watchdog run summary.
func (g *Gorm) SaveRun(ctx context.Context, run *models.WatchdogRun) error {
	if err := g.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("store: save run: %w", err)
	}
	return nil
}
