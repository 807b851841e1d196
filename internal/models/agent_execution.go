package models

import "time"

// AgentExecution records one attempt to run an agent for an inspection.
type AgentExecution struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	InspectionID  string `gorm:"size:36;not null;index:idx_inspection_agent"`
	RunID         string `gorm:"size:128"`
	AgentName     string `gorm:"size:64;not null;index:idx_inspection_agent"`
	AgentType     string `gorm:"size:32"`
	Status        string `gorm:"size:16;default:pending;index"`
	AttemptNumber int    `gorm:"default:1"`
	MaxRetries    int    `gorm:"default:0"`
	Lease         uint64 `gorm:"default:0"` // fencing token, bumped on every start
	StartedAt     *time.Time
	CompletedAt   *time.Time
	DurationMs    int64
	ErrorMessage  string `gorm:"type:text"`
	ErrorCode     string `gorm:"size:64"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ExecutionNote is an audit entry written whenever the watchdog rewrites
// an execution's status.
type ExecutionNote struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	ExecutionID  uint   `gorm:"index"`
	InspectionID string `gorm:"size:36;index"`
	AgentName    string `gorm:"size:64"`
	FromStatus   string `gorm:"size:16"`
	ToStatus     string `gorm:"size:16"`
	Attempt      int
	Note         string `gorm:"type:text"`
	CreatedAt    time.Time
}
