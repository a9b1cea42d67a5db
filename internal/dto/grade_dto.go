package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/grading"
	"github.com/noah-isme/gema-lms-api/internal/models"
)

// GradeSubmissionRequest carries a grade and optional feedback. Bounds are
// checked against the assignment, not here.
type GradeSubmissionRequest struct {
	Grade    *float64 `json:"grade" validate:"required"`
	Feedback *string  `json:"feedback" validate:"omitempty,max=5000"`
}

// GradeDetailResponse is the grade view of a single submission.
type GradeDetailResponse struct {
	SubmissionResponse
	CourseID      uint                             `json:"course_id"`
	MaxPoints     float64                          `json:"max_points"`
	CanEdit       bool                             `json:"can_edit"`
	EditableUntil *time.Time                       `json:"editable_until"`
	History       []SubmissionGradeHistoryResponse `json:"history"`
}

// GradeCenterItem annotates a submission with its edit state.
type GradeCenterItem struct {
	SubmissionResponse
	CourseID      uint       `json:"course_id"`
	CanEdit       bool       `json:"can_edit"`
	EditableUntil *time.Time `json:"editable_until"`
}

// GradeCenterListRequest filters grade center listings.
type GradeCenterListRequest struct {
	CourseID *uint
}

// AssignmentGradesResponse lists every submission of an assignment.
type AssignmentGradesResponse struct {
	Assignment   AssignmentResponse `json:"assignment"`
	Items        []GradeCenterItem  `json:"items"`
	GradedCount  int                `json:"graded_count"`
	PendingCount int                `json:"pending_count"`
	Average      *float64           `json:"average"`
}

// CourseGradeItem is one assignment line of a course grade.
type CourseGradeItem struct {
	AssignmentID uint     `json:"assignment_id"`
	Title        string   `json:"title"`
	MaxPoints    float64  `json:"max_points"`
	Grade        *float64 `json:"grade"`
	Status       string   `json:"status"`
}

// CourseGradeResponse is the overall grade of one student in one course.
type CourseGradeResponse struct {
	CourseID        uint              `json:"course_id"`
	StudentID       uint              `json:"student_id"`
	TotalScore      float64           `json:"total_score"`
	MaxScore        float64           `json:"max_score"`
	Percentage      float64           `json:"percentage"`
	Formatted       string            `json:"formatted"`
	AssignmentCount int               `json:"assignment_count"`
	GradedCount     int               `json:"graded_count"`
	Message         string            `json:"message,omitempty"`
	Assignments     []CourseGradeItem `json:"assignments"`
	CacheHit        bool              `json:"cache_hit"`
}

// NewGradeCenterItem annotates a submission using the edit window at now.
func NewGradeCenterItem(submission models.Submission, now time.Time) GradeCenterItem {
	return GradeCenterItem{
		SubmissionResponse: NewSubmissionResponse(submission),
		CourseID:           submission.Assignment.CourseID,
		CanEdit:            grading.CanMutateGrade(submission.GradedAt, now),
		EditableUntil:      grading.EditableUntil(submission.GradedAt),
	}
}

// NewGradeCenterItems converts a submission list.
func NewGradeCenterItems(submissions []models.Submission, now time.Time) []GradeCenterItem {
	out := make([]GradeCenterItem, 0, len(submissions))
	for _, submission := range submissions {
		out = append(out, NewGradeCenterItem(submission, now))
	}
	return out
}

// NewGradeDetailResponse builds the detail view including the history trail.
func NewGradeDetailResponse(submission models.Submission, now time.Time) GradeDetailResponse {
	return GradeDetailResponse{
		SubmissionResponse: NewSubmissionResponse(submission),
		CourseID:           submission.Assignment.CourseID,
		MaxPoints:          submission.Assignment.MaxPoints,
		CanEdit:            grading.CanMutateGrade(submission.GradedAt, now),
		EditableUntil:      grading.EditableUntil(submission.GradedAt),
		History:            NewSubmissionGradeHistoryResponseSlice(submission.History),
	}
}

// NewCourseGradeResponse combines the aggregate with a per-assignment breakdown.
func NewCourseGradeResponse(courseID, studentID uint, assignments []models.Assignment, submissions []models.Submission) CourseGradeResponse {
	result := grading.ComputeCourseGrade(assignments, submissions)

	byAssignment := make(map[uint]models.Submission, len(submissions))
	for _, submission := range submissions {
		byAssignment[submission.AssignmentID] = submission
	}

	items := make([]CourseGradeItem, 0, len(assignments))
	for _, assignment := range assignments {
		item := CourseGradeItem{
			AssignmentID: assignment.ID,
			Title:        assignment.Title,
			MaxPoints:    assignment.MaxPoints,
			Status:       "missing",
		}
		if submission, ok := byAssignment[assignment.ID]; ok {
			item.Grade = submission.Grade
			item.Status = submission.Status()
		}
		items = append(items, item)
	}

	return CourseGradeResponse{
		CourseID:        courseID,
		StudentID:       studentID,
		TotalScore:      result.TotalScore,
		MaxScore:        result.MaxScore,
		Percentage:      result.Percentage,
		Formatted:       result.Formatted,
		AssignmentCount: result.AssignmentCount,
		GradedCount:     result.GradedCount,
		Message:         result.Message,
		Assignments:     items,
	}
}
