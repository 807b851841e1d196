package dashboard

import (
	"fmt"
	"time"

	"github.com/zulandar/inspectyard/internal/models"
	"gorm.io/gorm"
)

// JobRow is the list view of an inspection.
type JobRow struct {
	ID           string     `json:"id"`
	VehicleID    string     `json:"vehicle_id"`
	VIN          string     `json:"vin,omitempty"`
	Status       string     `json:"status"`
	RunID        string     `json:"run_id,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// ExecutionRow is one agent attempt in the detail view.
type ExecutionRow struct {
	ID            uint       `json:"id"`
	AgentName     string     `json:"agent_name"`
	AgentType     string     `json:"agent_type,omitempty"`
	Status        string     `json:"status"`
	AttemptNumber int        `json:"attempt_number"`
	MaxRetries    int        `json:"max_retries"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	DurationMs    int64      `json:"duration_ms"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	ErrorCode     string     `json:"error_code,omitempty"`
}

// JobDetail is an inspection with every recorded agent attempt.
type JobDetail struct {
	JobRow
	Executions []ExecutionRow `json:"executions"`
}

// NoteRow is one watchdog audit entry.
type NoteRow struct {
	ExecutionID uint      `json:"execution_id"`
	AgentName   string    `json:"agent_name"`
	FromStatus  string    `json:"from_status"`
	ToStatus    string    `json:"to_status"`
	Attempt     int       `json:"attempt"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
}

// RunRow is the persisted summary of one scan.
type RunRow struct {
	ID             uint      `json:"id"`
	Trigger        string    `json:"trigger"`
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	TotalChecked   int       `json:"total_checked"`
	Healthy        int       `json:"healthy"`
	IssuesDetected int       `json:"issues_detected"`
	Failed         int       `json:"failed"`
	Errors         int       `json:"errors"`
	NoAgents       int       `json:"no_agents"`
	Retried        int       `json:"retried"`
	StartedAt      time.Time `json:"started_at"`
	DurationMs     int64     `json:"duration_ms"`
}

func jobRow(j models.Inspection) JobRow {
	row := JobRow{
		ID:           j.ID,
		VehicleID:    j.VehicleID,
		VIN:          j.VIN,
		Status:       j.Status,
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
	if j.RunID != nil {
		row.RunID = *j.RunID
	}
	return row
}

func jobDetail(j *models.Inspection) JobDetail {
	d := JobDetail{JobRow: jobRow(*j), Executions: make([]ExecutionRow, len(j.Executions))}
	for i, e := range j.Executions {
		d.Executions[i] = ExecutionRow{
			ID:            e.ID,
			AgentName:     e.AgentName,
			AgentType:     e.AgentType,
			Status:        e.Status,
			AttemptNumber: e.AttemptNumber,
			MaxRetries:    e.MaxRetries,
			StartedAt:     e.StartedAt,
			CompletedAt:   e.CompletedAt,
			DurationMs:    e.DurationMs,
			ErrorMessage:  e.ErrorMessage,
			ErrorCode:     e.ErrorCode,
		}
	}
	return d
}

func runRow(r models.WatchdogRun) RunRow {
	return RunRow{
		ID:             r.ID,
		Trigger:        r.Trigger,
		Success:        r.Success,
		Message:        r.Message,
		TotalChecked:   r.TotalChecked,
		Healthy:        r.Healthy,
		IssuesDetected: r.IssuesDetected,
		Failed:         r.Failed,
		Errors:         r.Errors,
		NoAgents:       r.NoAgents,
		Retried:        r.Retried,
		StartedAt:      r.StartedAt,
		DurationMs:     r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	}
}

// JobNotes returns the watchdog audit trail of an inspection, oldest first.
func JobNotes(db *gorm.DB, jobID string) ([]NoteRow, error) {
	var notes []models.ExecutionNote
	if err := db.Where("inspection_id = ?", jobID).
		Order("created_at ASC, id ASC").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("dashboard: notes for %s: %w", jobID, err)
	}
	rows := make([]NoteRow, len(notes))
	for i, n := range notes {
		rows[i] = NoteRow{
			ExecutionID: n.ExecutionID,
			AgentName:   n.AgentName,
			FromStatus:  n.FromStatus,
			ToStatus:    n.ToStatus,
			Attempt:     n.Attempt,
			Note:        n.Note,
			CreatedAt:   n.CreatedAt,
		}
	}
	return rows, nil
}

// RecentRuns returns up to limit scan summaries, newest first.
func RecentRuns(db *gorm.DB, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.WatchdogRun
	if err := db.Order("started_at DESC, id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("dashboard: recent runs: %w", err)
	}
	rows := make([]RunRow, len(runs))
	for i, r := range runs {
		rows[i] = runRow(r)
	}
	return rows, nil
}

// runsAfter returns runs with an ID greater than lastID, oldest first.
func runsAfter(db *gorm.DB, lastID uint) ([]models.WatchdogRun, error) {
	var runs []models.WatchdogRun
	err := db.Where("id > ?", lastID).Order("id ASC").Find(&runs).Error
	return runs, err
}
