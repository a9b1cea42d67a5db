package models

import (
	"strings"
	"time"
)

const (
	// RoleStudent identifies learners who enrol in courses and submit work.
	RoleStudent = "student"
	// RoleTeacher identifies course owners who grade submissions.
	RoleTeacher = "teacher"
	// RoleAdmin identifies operators with access to every course.
	RoleAdmin = "admin"
)

// User represents an account that can act on the platform.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:32;not null;index" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeRole lower-cases and trims a role value.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
