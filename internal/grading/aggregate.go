package grading

import (
	"fmt"
	"math"
	"strconv"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// NoAssignmentsMessage is reported for courses without any assignment.
const NoAssignmentsMessage = "no assignments found for this course"

// CourseGrade is a student's aggregate over every assignment of a course.
type CourseGrade struct {
	TotalScore      float64
	MaxScore        float64
	Percentage      float64
	Formatted       string
	AssignmentCount int
	GradedCount     int
	Message         string
}

// ComputeCourseGrade sums graded points against the points of all course
// assignments, graded or not.
func ComputeCourseGrade(assignments []models.Assignment, submissions []models.Submission) CourseGrade {
	if len(assignments) == 0 {
		return CourseGrade{
			Formatted: formatGrade(0, 0, 0),
			Message:   NoAssignmentsMessage,
		}
	}

	inCourse := make(map[uint]struct{}, len(assignments))
	var maxScore float64
	for _, assignment := range assignments {
		inCourse[assignment.ID] = struct{}{}
		maxScore += assignment.MaxPoints
	}

	seen := make(map[uint]struct{}, len(submissions))
	var earned float64
	graded := 0
	for _, submission := range submissions {
		if submission.Grade == nil {
			continue
		}
		if _, ok := inCourse[submission.AssignmentID]; !ok {
			continue
		}
		if _, dup := seen[submission.AssignmentID]; dup {
			continue
		}
		seen[submission.AssignmentID] = struct{}{}
		earned += *submission.Grade
		graded++
	}

	result := CourseGrade{
		TotalScore:      round2(earned),
		MaxScore:        round2(maxScore),
		AssignmentCount: len(assignments),
		GradedCount:     graded,
	}
	if maxScore > 0 {
		result.Percentage = round2(earned / maxScore * 100)
	}
	result.Formatted = formatGrade(result.TotalScore, result.MaxScore, result.Percentage)
	if graded == 0 {
		result.Message = "no graded submissions yet"
	}

	return result
}

func formatGrade(earned, max, pct float64) string {
	return fmt.Sprintf("%s/%s (%.2f%%)", formatPoints(earned), formatPoints(max), pct)
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', -1, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
