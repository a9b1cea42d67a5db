package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// CourseCreateRequest describes a new course. Admins must name the owning
// teacher; teachers always own what they create.
type CourseCreateRequest struct {
	Code        string `json:"code" validate:"required,min=2,max=64"`
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	TeacherID   *uint  `json:"teacher_id" validate:"omitempty,gt=0"`
}

// CourseUpdateRequest patches course metadata.
type CourseUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

// CourseListRequest holds listing filters.
type CourseListRequest struct {
	Search   string
	Page     int
	PageSize int
}

// CourseResponse is the serialized course.
type CourseResponse struct {
	ID          uint      `json:"id"`
	Code        string    `json:"code"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	TeacherID   uint      `json:"teacher_id"`
	Teacher     *UserLite `json:"teacher,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CourseListResponse wraps a paginated course listing.
type CourseListResponse struct {
	Items      []CourseResponse `json:"items"`
	Pagination PaginationMeta   `json:"pagination"`
}

// EnrollmentResponse describes one roster entry.
type EnrollmentResponse struct {
	CourseID   uint      `json:"course_id"`
	StudentID  uint      `json:"student_id"`
	Student    *UserLite `json:"student,omitempty"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// NewCourseResponse converts a model into a DTO.
func NewCourseResponse(course models.Course) CourseResponse {
	return CourseResponse{
		ID:          course.ID,
		Code:        course.Code,
		Title:       course.Title,
		Description: course.Description,
		TeacherID:   course.TeacherID,
		Teacher:     NewUserLite(course.Teacher),
		CreatedAt:   course.CreatedAt,
		UpdatedAt:   course.UpdatedAt,
	}
}

// NewEnrollmentResponse converts an enrolment row into a DTO.
func NewEnrollmentResponse(enrollment models.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		CourseID:   enrollment.CourseID,
		StudentID:  enrollment.StudentID,
		Student:    NewUserLite(enrollment.Student),
		EnrolledAt: enrollment.EnrolledAt,
	}
}

// NewEnrollmentResponseSlice converts a roster.
func NewEnrollmentResponseSlice(items []models.Enrollment) []EnrollmentResponse {
	out := make([]EnrollmentResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewEnrollmentResponse(item))
	}
	return out
}
