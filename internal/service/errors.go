package service

import (
	"errors"

	"github.com/noah-isme/gema-lms-api/internal/grading"
)

var (
	// ErrForbidden indicates a role or ownership mismatch.
	ErrForbidden = errors.New("insufficient permissions")

	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken indicates the email already belongs to an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrCourseNotFound indicates the course does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrCourseCodeTaken indicates a duplicate course code.
	ErrCourseCodeTaken = errors.New("course code already in use")
	// ErrTeacherRequired indicates an admin created a course without naming its teacher.
	ErrTeacherRequired = errors.New("teacher_id is required")
	// ErrInvalidTeacher indicates the named owner is not a teacher account.
	ErrInvalidTeacher = errors.New("teacher_id must reference a teacher")
	// ErrAlreadyEnrolled indicates the student already belongs to the course.
	ErrAlreadyEnrolled = errors.New("already enrolled in course")
	// ErrNotEnrolled indicates the student is not a member of the course.
	ErrNotEnrolled = errors.New("not enrolled in course")

	// ErrAssignmentNotFound indicates the assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrInvalidDueDate indicates the due date could not be parsed.
	ErrInvalidDueDate = errors.New("due_date must be RFC3339")
	// ErrMaxPointsBelowGrade indicates maxPoints would invalidate an existing grade.
	ErrMaxPointsBelowGrade = errors.New("max_points cannot be lower than an existing grade")

	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrEmptySubmission indicates neither a comment nor a file was supplied.
	ErrEmptySubmission = errors.New("a comment or file is required")
	// ErrUnsupportedFileType indicates the attachment type is not accepted.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrUploadUnavailable indicates no file storage is configured.
	ErrUploadUnavailable = errors.New("file uploads are not configured")
	// ErrSubmissionLocked indicates a withdrawal after the deadline or after grading.
	ErrSubmissionLocked = errors.New("submission can no longer be withdrawn")

	// ErrGradeOutOfRange indicates the grade falls outside [0, maxPoints].
	ErrGradeOutOfRange = grading.ErrScoreOutOfRange
	// ErrGradeWindowClosed indicates the 24 hour edit window has elapsed.
	ErrGradeWindowClosed = errors.New("grade edit window has closed")
	// ErrNotGraded indicates an un-grade on a pending submission.
	ErrNotGraded = errors.New("submission has not been graded")
	// ErrStudentRequired indicates a course grade query without a student.
	ErrStudentRequired = errors.New("student_id is required")

	// ErrThreadNotFound indicates the discussion thread does not exist.
	ErrThreadNotFound = errors.New("thread not found")
	// ErrEmptyContent indicates user text that sanitised down to nothing.
	ErrEmptyContent = errors.New("content is empty")
	// ErrNotificationNotFound indicates the notification does not exist for the user.
	ErrNotificationNotFound = errors.New("notification not found")
)
