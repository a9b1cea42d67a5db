package models

import "time"

// Course groups assignments and discussions under a single teacher.
type Course struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Code        string       `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Title       string       `gorm:"size:255;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	TeacherID   uint         `gorm:"not null;index" json:"teacher_id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Teacher     User         `gorm:"foreignKey:TeacherID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"teacher"`
	Assignments []Assignment `json:"-"`
}

// Enrollment links a student to a course.
type Enrollment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CourseID   uint      `gorm:"not null;uniqueIndex:idx_enrollment_course_student" json:"course_id"`
	StudentID  uint      `gorm:"not null;uniqueIndex:idx_enrollment_course_student;index" json:"student_id"`
	EnrolledAt time.Time `gorm:"not null" json:"enrolled_at"`
	Course     Course    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"course"`
	Student    User      `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}
