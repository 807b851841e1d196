package db

import (
	"fmt"

	"github.com/zulandar/inspectyard/internal/config"
	"github.com/zulandar/inspectyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Inspection{},
		&models.AgentExecution{},
		&models.AgentConfig{},
		&models.ExecutionNote{},
		&models.WatchdogRun{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedAgents upserts AgentConfig rows from configuration.
func SeedAgents(db *gorm.DB, agents []config.AgentConfig) error {
	for _, ac := range agents {
		row := models.AgentConfig{
			Name:           ac.Name,
			Type:           ac.Type,
			MaxRetries:     ac.MaxRetries,
			TimeoutSeconds: int(ac.Timeout.Seconds()),
		}

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "max_retries", "timeout_seconds"}),
		}).Create(&row)
		if result.Error != nil {
			return fmt.Errorf("db: seed agent %q: %w", ac.Name, result.Error)
		}
	}
	return nil
}
