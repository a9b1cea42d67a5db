package grading

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// EditWindow is how long a grade stays mutable after it was last set.
const EditWindow = 24 * time.Hour

// CanMutateGrade reports whether a grade set at gradedAt may still be changed
// or removed at now. A nil gradedAt means the submission was never graded.
func CanMutateGrade(gradedAt *time.Time, now time.Time) bool {
	if gradedAt == nil {
		return true
	}
	return now.Sub(*gradedAt) < EditWindow
}

// EditableUntil returns the instant the edit window closes, or nil when no
// grade has been recorded yet.
func EditableUntil(gradedAt *time.Time) *time.Time {
	if gradedAt == nil {
		return nil
	}
	until := gradedAt.Add(EditWindow)
	return &until
}

// SubmissionMutable applies the window only when both grade and gradedAt are
// present; initial grading is never restricted.
func SubmissionMutable(submission models.Submission, now time.Time) bool {
	if submission.Grade == nil || submission.GradedAt == nil {
		return true
	}
	return CanMutateGrade(submission.GradedAt, now)
}
