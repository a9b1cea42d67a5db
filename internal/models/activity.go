package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is an audit record of a state change made by a user.
type ActivityLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	ActorID       uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole     string            `gorm:"size:32;not null" json:"actor_role"`
	Action        string            `gorm:"size:64;not null;index" json:"action"`
	EntityType    string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID      *uint             `json:"entity_id"`
	CourseID      *uint             `gorm:"index" json:"course_id"`
	CorrelationID string            `gorm:"size:64" json:"correlation_id"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
}
