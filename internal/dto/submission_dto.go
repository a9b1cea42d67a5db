package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// SubmissionCreateRequest describes a submission sent as multipart form or JSON.
type SubmissionCreateRequest struct {
	AssignmentID uint    `form:"assignment_id" json:"assignment_id" validate:"required,gt=0"`
	Comment      *string `form:"comment" json:"comment" validate:"omitempty,max=5000"`
}

// SubmissionListRequest narrows a student's own submissions.
type SubmissionListRequest struct {
	CourseID     *uint
	AssignmentID *uint
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID           uint            `json:"id"`
	AssignmentID uint            `json:"assignment_id"`
	StudentID    uint            `json:"student_id"`
	Comment      *string         `json:"comment"`
	FileURL      string          `json:"file_url,omitempty"`
	SubmittedAt  time.Time       `json:"submitted_at"`
	IsLate       bool            `json:"is_late"`
	Status       string          `json:"status"`
	Grade        *float64        `json:"grade"`
	Feedback     *string         `json:"feedback"`
	GradedBy     *uint           `json:"graded_by"`
	GradedAt     *time.Time      `json:"graded_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Assignment   *AssignmentLite `json:"assignment,omitempty"`
	Student      *UserLite       `json:"student,omitempty"`
}

// SubmissionGradeHistoryResponse serializes grading history entries.
type SubmissionGradeHistoryResponse struct {
	ID       uint      `json:"id"`
	Action   string    `json:"action"`
	Score    *float64  `json:"score"`
	Feedback *string   `json:"feedback"`
	GradedBy uint      `json:"graded_by"`
	GradedAt time.Time `json:"graded_at"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		StudentID:    model.StudentID,
		Comment:      model.Comment,
		FileURL:      model.FileURL,
		SubmittedAt:  model.SubmittedAt,
		IsLate:       model.IsLate,
		Status:       model.Status(),
		Grade:        model.Grade,
		Feedback:     model.Feedback,
		GradedBy:     model.GradedBy,
		GradedAt:     model.GradedAt,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
		Student:      NewUserLite(model.Student),
	}

	if model.Assignment.ID != 0 {
		response.Assignment = &AssignmentLite{
			ID:        model.Assignment.ID,
			CourseID:  model.Assignment.CourseID,
			Title:     model.Assignment.Title,
			MaxPoints: model.Assignment.MaxPoints,
			DueDate:   model.Assignment.DueDate,
		}
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, submission := range items {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}

// NewSubmissionGradeHistoryResponseSlice converts the grading trail.
func NewSubmissionGradeHistoryResponseSlice(entries []models.SubmissionGradeHistory) []SubmissionGradeHistoryResponse {
	out := make([]SubmissionGradeHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, SubmissionGradeHistoryResponse{
			ID:       entry.ID,
			Action:   entry.Action,
			Score:    entry.Score,
			Feedback: entry.Feedback,
			GradedBy: entry.GradedBy,
			GradedAt: entry.GradedAt,
		})
	}
	return out
}
