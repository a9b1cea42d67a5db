package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification represents a message targeted to a specific user.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Type      string    `gorm:"size:64" json:"type"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DiscussionThread represents a forum topic inside a course.
type DiscussionThread struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	CourseID  uint              `gorm:"not null;index" json:"course_id"`
	Title     string            `gorm:"size:255;not null" json:"title"`
	Body      string            `gorm:"type:text" json:"body"`
	AuthorID  uint              `gorm:"not null;index" json:"author_id"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Course    Course            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Replies   []DiscussionReply `gorm:"foreignKey:ThreadID;constraint:OnDelete:CASCADE" json:"replies"`
}

// DiscussionReply represents a reply within a discussion thread.
type DiscussionReply struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ThreadID  uint      `gorm:"index;not null" json:"thread_id"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
