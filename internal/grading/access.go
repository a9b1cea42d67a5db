package grading

import "github.com/noah-isme/gema-lms-api/internal/models"

// CanManageCourse is the ownership rule shared by every grading and course
// mutation: admins manage any course, teachers only the ones they own.
func CanManageCourse(actorID uint, role string, teacherID uint) bool {
	switch models.NormalizeRole(role) {
	case models.RoleAdmin:
		return true
	case models.RoleTeacher:
		return actorID != 0 && actorID == teacherID
	default:
		return false
	}
}

// CanViewSubmission extends CanManageCourse with the submitting student.
func CanViewSubmission(actorID uint, role string, studentID, teacherID uint) bool {
	if CanManageCourse(actorID, role, teacherID) {
		return true
	}
	return models.NormalizeRole(role) == models.RoleStudent && actorID != 0 && actorID == studentID
}

// CourseOwner resolves Submission -> Assignment -> Course -> teacher. The
// second return value is false when any link of the chain was not loaded.
func CourseOwner(submission models.Submission) (uint, bool) {
	if submission.Assignment.ID == 0 || submission.Assignment.Course.ID == 0 {
		return 0, false
	}
	return submission.Assignment.Course.TeacherID, true
}
