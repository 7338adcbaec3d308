package db

import (
	"github.com/codelens/backend/internal/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	// AutoMigrate all models
	err := db.AutoMigrate(
		&domain.Project{},
		&domain.AnalysisTask{},
	)
	if err != nil {
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		return err
	}

	return nil
}

func createCustomIndexes(db *gorm.DB) error {
	// Task history is always listed newest-first per project
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_analysis_tasks_project_created
		ON analysis_tasks (project_id, created_at DESC)
	`).Error; err != nil {
		return err
	}

	// Retention sweeps and dashboard counts filter on status + age
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_analysis_tasks_status_updated
		ON analysis_tasks (status, updated_at)
	`).Error; err != nil {
		return err
	}

	return nil
}
