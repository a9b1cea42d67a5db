package models

import "time"

// Assignment represents graded coursework with a point ceiling and deadline.
type Assignment struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	CourseID    uint         `gorm:"not null;index" json:"course_id"`
	Title       string       `gorm:"size:255;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	MaxPoints   float64      `gorm:"not null" json:"max_points"`
	DueDate     time.Time    `gorm:"not null" json:"due_date"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Course      Course       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
	Submissions []Submission `json:"-"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}
