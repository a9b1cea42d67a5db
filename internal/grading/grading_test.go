package grading

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

func TestCanMutateGradeWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		gradedAt *time.Time
		want     bool
	}{
		{name: "never graded", gradedAt: nil, want: true},
		{name: "just graded", gradedAt: timePtr(now), want: true},
		{name: "23h59m ago", gradedAt: timePtr(now.Add(-(EditWindow - time.Minute))), want: true},
		{name: "exactly 24h ago", gradedAt: timePtr(now.Add(-EditWindow)), want: false},
		{name: "25h ago", gradedAt: timePtr(now.Add(-25 * time.Hour)), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CanMutateGrade(tc.gradedAt, now))
		})
	}
}

func TestEditableUntil(t *testing.T) {
	require.Nil(t, EditableUntil(nil))

	gradedAt := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	until := EditableUntil(&gradedAt)
	require.NotNil(t, until)
	require.Equal(t, gradedAt.Add(24*time.Hour), *until)
}

func TestSubmissionMutableIgnoresWindowForPending(t *testing.T) {
	now := time.Now()
	stale := now.Add(-48 * time.Hour)

	require.True(t, SubmissionMutable(models.Submission{GradedAt: &stale}, now))
	require.False(t, SubmissionMutable(models.Submission{Grade: floatPtr(10), GradedAt: &stale}, now))
	require.True(t, SubmissionMutable(models.Submission{Grade: floatPtr(10)}, now))
}

func TestValidateScoreBounds(t *testing.T) {
	require.NoError(t, ValidateScore(0, 100))
	require.NoError(t, ValidateScore(100, 100))
	require.NoError(t, ValidateScore(42.5, 50))

	for _, score := range []float64{-0.01, -5, 100.01, 250, math.NaN(), math.Inf(1)} {
		err := ValidateScore(score, 100)
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrScoreOutOfRange))
	}
}

func TestCanManageCourse(t *testing.T) {
	require.True(t, CanManageCourse(7, "teacher", 7))
	require.False(t, CanManageCourse(8, "teacher", 7))
	require.True(t, CanManageCourse(1, "Admin", 7))
	require.False(t, CanManageCourse(7, "student", 7))
	require.False(t, CanManageCourse(0, "teacher", 0))
}

func TestCanViewSubmission(t *testing.T) {
	require.True(t, CanViewSubmission(3, "student", 3, 7))
	require.False(t, CanViewSubmission(4, "student", 3, 7))
	require.True(t, CanViewSubmission(7, "teacher", 3, 7))
	require.False(t, CanViewSubmission(9, "teacher", 3, 7))
	require.True(t, CanViewSubmission(1, "admin", 3, 7))
}

func TestCourseOwnerRequiresLoadedChain(t *testing.T) {
	_, ok := CourseOwner(models.Submission{ID: 1})
	require.False(t, ok)

	owner, ok := CourseOwner(models.Submission{
		ID: 1,
		Assignment: models.Assignment{
			ID:     2,
			Course: models.Course{ID: 3, TeacherID: 9},
		},
	})
	require.True(t, ok)
	require.Equal(t, uint(9), owner)
}

func TestComputeCourseGradeCountsAllAssignmentsInDenominator(t *testing.T) {
	assignments := []models.Assignment{
		{ID: 1, MaxPoints: 50},
		{ID: 2, MaxPoints: 50},
	}
	submissions := []models.Submission{
		{AssignmentID: 1, Grade: floatPtr(40)},
		{AssignmentID: 2},
	}

	result := ComputeCourseGrade(assignments, submissions)
	require.Equal(t, 40.0, result.TotalScore)
	require.Equal(t, 100.0, result.MaxScore)
	require.Equal(t, 40.0, result.Percentage)
	require.Equal(t, "40/100 (40.00%)", result.Formatted)
	require.Equal(t, 2, result.AssignmentCount)
	require.Equal(t, 1, result.GradedCount)
	require.Empty(t, result.Message)

	again := ComputeCourseGrade(assignments, submissions)
	require.Equal(t, result, again)
}

func TestComputeCourseGradeRoundsToTwoDecimals(t *testing.T) {
	assignments := []models.Assignment{{ID: 1, MaxPoints: 30}}
	submissions := []models.Submission{{AssignmentID: 1, Grade: floatPtr(10)}}

	result := ComputeCourseGrade(assignments, submissions)
	require.Equal(t, 33.33, result.Percentage)
	require.Equal(t, "10/30 (33.33%)", result.Formatted)
}

func TestComputeCourseGradeIgnoresForeignSubmissions(t *testing.T) {
	assignments := []models.Assignment{{ID: 1, MaxPoints: 10}}
	submissions := []models.Submission{
		{AssignmentID: 1, Grade: floatPtr(5)},
		{AssignmentID: 99, Grade: floatPtr(100)},
	}

	result := ComputeCourseGrade(assignments, submissions)
	require.Equal(t, 5.0, result.TotalScore)
	require.Equal(t, 50.0, result.Percentage)
}

func TestComputeCourseGradeWithoutAssignments(t *testing.T) {
	result := ComputeCourseGrade(nil, []models.Submission{{AssignmentID: 1, Grade: floatPtr(5)}})
	require.Zero(t, result.TotalScore)
	require.Zero(t, result.MaxScore)
	require.Zero(t, result.Percentage)
	require.Equal(t, "0/0 (0.00%)", result.Formatted)
	require.Equal(t, NoAssignmentsMessage, result.Message)
}

func timePtr(v time.Time) *time.Time {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}
