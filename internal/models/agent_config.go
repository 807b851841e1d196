package models

// AgentConfig stores the per-agent retry budget and timeout override.
type AgentConfig struct {
	Name           string `gorm:"primaryKey;size:64"`
	Type           string `gorm:"size:32"`
	MaxRetries     int    `gorm:"default:3"`
	TimeoutSeconds int    `gorm:"default:0"`
}
