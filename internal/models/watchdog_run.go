package models

import "time"

// WatchdogRun is the persisted batch summary of one scan pass.
type WatchdogRun struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	Trigger        string `gorm:"size:16"` // "cron", "http", "cli"
	Success        bool
	Message        string `gorm:"type:text"`
	TotalChecked   int
	Healthy        int
	IssuesDetected int
	Failed         int
	Errors         int
	NoAgents       int
	Retried        int
	StartedAt      time.Time `gorm:"index"`
	FinishedAt     time.Time
}
