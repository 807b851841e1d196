// Package inspection provides inspection job lifecycle operations.
package inspection

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/inspectyard/internal/models"
	"gorm.io/gorm"
)

// Job statuses.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusFailed     = "failed"
	StatusDone       = "done"
	StatusCancelled  = "cancelled"
)

// ErrNotFound is returned when no inspection has the requested ID.
var ErrNotFound = errors.New("not found")

// ValidTransitions maps each status to its valid next statuses.
var ValidTransitions = map[string][]string{
	StatusQueued:     {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusDone, StatusFailed, StatusCancelled},
	StatusFailed:     {StatusQueued},
}

// CreateOpts holds parameters for creating a new inspection.
type CreateOpts struct {
	VehicleID string
	VIN       string
}

// ListFilters holds optional filters for listing inspections.
type ListFilters struct {
	Status    string
	VehicleID string
	Limit     int
}

// Create creates a queued inspection with a generated UUID.
func Create(db *gorm.DB, opts CreateOpts) (*models.Inspection, error) {
	if opts.VehicleID == "" {
		return nil, fmt.Errorf("inspection: vehicle ID is required")
	}
	if opts.VIN != "" && len(opts.VIN) != 17 {
		return nil, fmt.Errorf("inspection: VIN must be 17 characters, got %d", len(opts.VIN))
	}

	insp := models.Inspection{
		ID:        uuid.NewString(),
		VehicleID: opts.VehicleID,
		VIN:       opts.VIN,
		Status:    StatusQueued,
	}
	if err := db.Create(&insp).Error; err != nil {
		return nil, fmt.Errorf("inspection: create: %w", err)
	}
	return &insp, nil
}

// Get retrieves an inspection by ID, preloading its executions.
func Get(db *gorm.DB, id string) (*models.Inspection, error) {
	var insp models.Inspection
	err := db.Preload("Executions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("agent_name ASC, attempt_number DESC")
	}).Where("id = ?", id).First(&insp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("inspection: %w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("inspection: get %s: %w", id, err)
	}
	return &insp, nil
}

// List returns inspections matching the given filters, newest first.
func List(db *gorm.DB, filters ListFilters) ([]models.Inspection, error) {
	q := db.Model(&models.Inspection{})
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.VehicleID != "" {
		q = q.Where("vehicle_id = ?", filters.VehicleID)
	}
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}

	var out []models.Inspection
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("inspection: list: %w", err)
	}
	return out, nil
}

// StartRun attaches an orchestrator run and moves the inspection to
// processing. It is the only way into processing, so a processing
// inspection always carries a run reference.
func StartRun(db *gorm.DB, id, runID string) error {
	if runID == "" {
		return fmt.Errorf("inspection: run ID is required")
	}
	now := time.Now()
	return transition(db, id, StatusProcessing, map[string]interface{}{
		"run_id":        runID,
		"started_at":    now,
		"error_message": "",
	})
}

// Complete marks a processing inspection done.
func Complete(db *gorm.DB, id string) error {
	return transition(db, id, StatusDone, map[string]interface{}{
		"completed_at": time.Now(),
	})
}

// Cancel marks an inspection cancelled.
func Cancel(db *gorm.DB, id string) error {
	return transition(db, id, StatusCancelled, map[string]interface{}{
		"completed_at": time.Now(),
	})
}

// Requeue returns a failed inspection to the queue, clearing its run.
func Requeue(db *gorm.DB, id string) error {
	return transition(db, id, StatusQueued, map[string]interface{}{
		"run_id":       nil,
		"completed_at": nil,
	})
}

// Reportable reports whether a report may be generated for the inspection.
// Failed inspections are never reportable.
func Reportable(insp *models.Inspection) bool {
	return insp != nil && insp.Status == StatusDone
}

// transition validates and applies a status change plus extra columns.
func transition(db *gorm.DB, id, to string, updates map[string]interface{}) error {
	var insp models.Inspection
	if err := db.Where("id = ?", id).First(&insp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("inspection: %w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("inspection: get %s for update: %w", id, err)
	}

	if !slices.Contains(ValidTransitions[insp.Status], to) {
		return fmt.Errorf("inspection: invalid status transition from %q to %q; valid transitions: %v",
			insp.Status, to, ValidTransitions[insp.Status])
	}

	updates["status"] = to
	result := db.Model(&models.Inspection{}).
		Where("id = ? AND status = ?", id, insp.Status).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("inspection: update %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("inspection: %s changed concurrently", id)
	}
	return nil
}
