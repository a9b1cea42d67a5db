package models

import "time"

// Submission is a student's recorded work for one assignment.
type Submission struct {
	ID           uint                     `gorm:"primaryKey" json:"id"`
	AssignmentID uint                     `gorm:"not null;uniqueIndex:idx_submission_assignment_student" json:"assignment_id"`
	StudentID    uint                     `gorm:"not null;uniqueIndex:idx_submission_assignment_student;index" json:"student_id"`
	Comment      *string                  `gorm:"type:text" json:"comment"`
	FileURL      string                   `gorm:"size:512" json:"file_url"`
	SubmittedAt  time.Time                `gorm:"not null" json:"submitted_at"`
	IsLate       bool                     `gorm:"not null;default:false" json:"is_late"`
	Grade        *float64                 `json:"grade"`
	Feedback     *string                  `gorm:"type:text" json:"feedback"`
	GradedBy     *uint                    `gorm:"index" json:"graded_by"`
	GradedAt     *time.Time               `json:"graded_at"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
	Assignment   Assignment               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Student      User                     `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	History      []SubmissionGradeHistory `json:"history"`
}

const (
	// SubmissionStatusPending indicates the submission is awaiting a grade.
	SubmissionStatusPending = "pending"
	// SubmissionStatusGraded indicates the submission has been evaluated.
	SubmissionStatusGraded = "graded"
)

// IsGraded reports whether the submission currently carries a grade.
func (s Submission) IsGraded() bool {
	return s.Grade != nil
}

// Status derives the grading status from the grade column.
func (s Submission) Status() string {
	if s.IsGraded() {
		return SubmissionStatusGraded
	}
	return SubmissionStatusPending
}

const (
	// GradeActionGraded marks the first grade placed on a submission.
	GradeActionGraded = "graded"
	// GradeActionRegraded marks an overwrite inside the edit window.
	GradeActionRegraded = "regraded"
	// GradeActionUnmarked marks a grade removal.
	GradeActionUnmarked = "unmarked"
)

// SubmissionGradeHistory is an append-only trail of grade mutations.
type SubmissionGradeHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	Action       string    `gorm:"size:32;not null" json:"action"`
	Score        *float64  `json:"score"`
	Feedback     *string   `gorm:"type:text" json:"feedback"`
	GradedBy     uint      `gorm:"not null" json:"graded_by"`
	GradedAt     time.Time `gorm:"not null" json:"graded_at"`
}
