package models

import "time"

// Inspection is one vehicle inspection job. Its analysis fans out into
// several agents whose attempts are recorded as AgentExecution rows.
type Inspection struct {
	ID           string  `gorm:"primaryKey;size:36"`
	VehicleID    string  `gorm:"size:64;index"`
	VIN          string  `gorm:"size:17"`
	Status       string  `gorm:"size:16;default:queued;index"`
	RunID        *string `gorm:"size:128;index"` // orchestrator run reference
	ErrorMessage string  `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time

	Executions []AgentExecution `gorm:"foreignKey:InspectionID"`
}
