package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// Models lists every persisted entity in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.Assignment{},
		&models.Submission{},
		&models.SubmissionGradeHistory{},
		&models.DiscussionThread{},
		&models.DiscussionReply{},
		&models.Notification{},
		&models.ActivityLog{},
	}
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
