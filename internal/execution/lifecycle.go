package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/inspectyard/internal/models"
	"gorm.io/gorm"
)

// DefaultMaxRetries is the retry budget used when neither the caller nor the
// agent's configuration supplies one.
const DefaultMaxRetries = 3

// ErrStaleLease is returned by Finish when the caller's lease no longer
// matches the row, meaning the execution was retried or restarted since.
var ErrStaleLease = errors.New("execution: stale lease")

// DispatchOpts holds parameters for recording a new agent execution.
type DispatchOpts struct {
	InspectionID string
	RunID        string
	AgentName    string
	AgentType    string
	MaxRetries   int // 0 = from agent_configs, then DefaultMaxRetries
}

// FinishOpts carries the outcome reported by an agent.
type FinishOpts struct {
	Status       Status
	ErrorMessage string
	ErrorCode    string
}

// Dispatch records a pending first attempt of an agent for an inspection.
// This is the orchestrator's entry point; the watchdog never inserts rows.
func Dispatch(db *gorm.DB, opts DispatchOpts) (*models.AgentExecution, error) {
	if opts.InspectionID == "" {
		return nil, fmt.Errorf("execution: inspectionID is required")
	}
	if opts.AgentName == "" {
		return nil, fmt.Errorf("execution: agent name is required")
	}

	maxRetries := opts.MaxRetries
	agentType := opts.AgentType
	if maxRetries <= 0 || agentType == "" {
		var ac models.AgentConfig
		err := db.Where("name = ?", opts.AgentName).First(&ac).Error
		switch {
		case err == nil:
			if maxRetries <= 0 {
				maxRetries = ac.MaxRetries
			}
			if agentType == "" {
				agentType = ac.Type
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return nil, fmt.Errorf("execution: agent config %s: %w", opts.AgentName, err)
		}
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	var existing int64
	if err := db.Model(&models.AgentExecution{}).
		Where("inspection_id = ? AND agent_name = ?", opts.InspectionID, opts.AgentName).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("execution: check existing %s/%s: %w", opts.InspectionID, opts.AgentName, err)
	}
	if existing > 0 {
		return nil, fmt.Errorf("execution: agent %s already dispatched for %s", opts.AgentName, opts.InspectionID)
	}

	exec := models.AgentExecution{
		InspectionID:  opts.InspectionID,
		RunID:         opts.RunID,
		AgentName:     opts.AgentName,
		AgentType:     agentType,
		Status:        string(StatusPending),
		AttemptNumber: 1,
		MaxRetries:    maxRetries,
	}
	if err := db.Create(&exec).Error; err != nil {
		return nil, fmt.Errorf("execution: dispatch %s: %w", opts.AgentName, err)
	}
	return &exec, nil
}

// Begin moves a pending execution to running and issues a new lease. When the
// execution has run before (a watchdog retry), the attempt number is
// incremented here: attempt numbers count real starts, not retry intents.
func Begin(db *gorm.DB, id uint) (*models.AgentExecution, error) {
	var exec models.AgentExecution

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&exec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("execution: not found: %d", id)
			}
			return fmt.Errorf("execution: get %d: %w", id, err)
		}
		if exec.Status != string(StatusPending) {
			return fmt.Errorf("execution: %d is %s, only pending executions can begin", id, exec.Status)
		}

		var running int64
		if err := tx.Model(&models.AgentExecution{}).
			Where("inspection_id = ? AND agent_name = ? AND status = ? AND id <> ?",
				exec.InspectionID, exec.AgentName, string(StatusRunning), exec.ID).
			Count(&running).Error; err != nil {
			return fmt.Errorf("execution: check running %s: %w", exec.AgentName, err)
		}
		if running > 0 {
			return fmt.Errorf("execution: agent %s already running for %s", exec.AgentName, exec.InspectionID)
		}

		attempt := exec.AttemptNumber
		if exec.StartedAt != nil {
			attempt++
		}
		now := time.Now()
		result := tx.Model(&models.AgentExecution{}).
			Where("id = ? AND status = ? AND lease = ?", exec.ID, string(StatusPending), exec.Lease).
			Updates(map[string]interface{}{
				"status":         string(StatusRunning),
				"attempt_number": attempt,
				"lease":          exec.Lease + 1,
				"started_at":     now,
				"completed_at":   nil,
				"duration_ms":    0,
			})
		if result.Error != nil {
			return fmt.Errorf("execution: begin %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("execution: begin %d: %w", id, ErrStaleLease)
		}

		exec.Status = string(StatusRunning)
		exec.AttemptNumber = attempt
		exec.Lease++
		exec.StartedAt = &now
		exec.CompletedAt = nil
		exec.DurationMs = 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

// Finish records the outcome of a running execution. The lease must be the
// one issued by Begin; a retried or restarted execution rejects the write
// with ErrStaleLease.
func Finish(db *gorm.DB, id uint, lease uint64, opts FinishOpts) error {
	if !opts.Status.Finishable() {
		return fmt.Errorf("execution: %q is not a valid outcome", opts.Status)
	}

	var exec models.AgentExecution
	if err := db.Where("id = ?", id).First(&exec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("execution: not found: %d", id)
		}
		return fmt.Errorf("execution: get %d: %w", id, err)
	}

	now := time.Now()
	var duration int64
	if exec.StartedAt != nil {
		duration = now.Sub(*exec.StartedAt).Milliseconds()
	}

	result := db.Model(&models.AgentExecution{}).
		Where("id = ? AND lease = ? AND status = ?", id, lease, string(StatusRunning)).
		Updates(map[string]interface{}{
			"status":        string(opts.Status),
			"completed_at":  now,
			"duration_ms":   duration,
			"error_message": opts.ErrorMessage,
			"error_code":    opts.ErrorCode,
		})
	if result.Error != nil {
		return fmt.Errorf("execution: finish %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("execution: finish %d (lease %d, current %d, status %s): %w",
			id, lease, exec.Lease, exec.Status, ErrStaleLease)
	}
	return nil
}

// Get retrieves an execution by ID.
func Get(db *gorm.DB, id uint) (*models.AgentExecution, error) {
	var exec models.AgentExecution
	if err := db.Where("id = ?", id).First(&exec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("execution: not found: %d", id)
		}
		return nil, fmt.Errorf("execution: get %d: %w", id, err)
	}
	return &exec, nil
}

// ListForInspection returns every attempt recorded for an inspection, ordered
// by agent name ascending and attempt number descending.
func ListForInspection(db *gorm.DB, inspectionID string) ([]models.AgentExecution, error) {
	var execs []models.AgentExecution
	if err := db.Where("inspection_id = ?", inspectionID).
		Order("agent_name ASC, attempt_number DESC, id DESC").
		Find(&execs).Error; err != nil {
		return nil, fmt.Errorf("execution: list %s: %w", inspectionID, err)
	}
	return execs, nil
}
