package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
)

func gradePath(id uint) string {
	return fmt.Sprintf("/api/grades/submission/%d", id)
}

func TestGradeSubmissionByOwningTeacher(t *testing.T) {
	env := setupEnv(t)
	submission := env.submission(t, env.assignment.ID, env.student.ID)

	resp, body := env.do(t, &env.teacher, http.MethodPatch, gradePath(submission.ID), map[string]interface{}{
		"grade":    85,
		"feedback": "Bagus <script>alert(1)</script>",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	require.True(t, body.Success)

	var detail dto.GradeDetailResponse
	decodeData(t, body, &detail)
	require.NotNil(t, detail.Grade)
	require.Equal(t, 85.0, *detail.Grade)
	require.Equal(t, "Bagus", *detail.Feedback)
	require.Equal(t, env.teacher.ID, *detail.GradedBy)
	require.True(t, detail.CanEdit)
	require.Len(t, detail.History, 1)
}

func TestGradeSubmissionErrors(t *testing.T) {
	env := setupEnv(t)
	submission := env.submission(t, env.assignment.ID, env.student.ID)

	cases := []struct {
		name   string
		user   *models.User
		path   string
		body   interface{}
		status int
	}{
		{"above max points", &env.teacher, gradePath(submission.ID), map[string]interface{}{"grade": 101}, http.StatusForbidden},
		{"negative grade", &env.teacher, gradePath(submission.ID), map[string]interface{}{"grade": -1}, http.StatusForbidden},
		{"other teacher", &env.other, gradePath(submission.ID), map[string]interface{}{"grade": 50}, http.StatusForbidden},
		{"student", &env.student, gradePath(submission.ID), map[string]interface{}{"grade": 50}, http.StatusForbidden},
		{"unknown submission", &env.teacher, gradePath(9999), map[string]interface{}{"grade": 50}, http.StatusNotFound},
		{"missing grade", &env.teacher, gradePath(submission.ID), map[string]interface{}{"feedback": "ok"}, http.StatusBadRequest},
		{"invalid id", &env.teacher, "/api/grades/submission/abc", map[string]interface{}{"grade": 50}, http.StatusBadRequest},
		{"no token", nil, gradePath(submission.ID), map[string]interface{}{"grade": 50}, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := env.do(t, tc.user, http.MethodPatch, tc.path, tc.body)
			require.Equal(t, tc.status, resp.StatusCode, body.Message)
			require.False(t, body.Success)
		})
	}

	var stored models.Submission
	require.NoError(t, env.db.First(&stored, submission.ID).Error)
	require.Nil(t, stored.Grade)
}

func TestGradeWindowClosedReturnsForbidden(t *testing.T) {
	env := setupEnv(t)
	submission := env.submission(t, env.assignment.ID, env.student.ID)

	gradedAt := time.Now().Add(-25 * time.Hour)
	require.NoError(t, env.db.Model(&models.Submission{}).Where("id = ?", submission.ID).Updates(map[string]interface{}{
		"grade":     70,
		"graded_by": env.teacher.ID,
		"graded_at": gradedAt,
	}).Error)

	resp, body := env.do(t, &env.teacher, http.MethodPatch, gradePath(submission.ID), map[string]interface{}{"grade": 90})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Contains(t, body.Message, "window")

	resp, _ = env.do(t, &env.teacher, http.MethodPatch, gradePath(submission.ID)+"/unmark", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, &env.teacher, http.MethodDelete, fmt.Sprintf("/api/gradecenter/submission/%d", submission.ID), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUnmarkSubmission(t *testing.T) {
	env := setupEnv(t)
	submission := env.submission(t, env.assignment.ID, env.student.ID)

	resp, _ := env.do(t, &env.teacher, http.MethodPatch, gradePath(submission.ID)+"/unmark", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, &env.teacher, http.MethodPatch, gradePath(submission.ID), map[string]interface{}{"grade": 60})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, &env.teacher, http.MethodPatch, gradePath(submission.ID)+"/unmark", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail dto.GradeDetailResponse
	decodeData(t, body, &detail)
	require.Nil(t, detail.Grade)
	require.Nil(t, detail.Feedback)
	require.Nil(t, detail.GradedBy)
	require.Nil(t, detail.GradedAt)
	require.Equal(t, models.SubmissionStatusPending, detail.Status)
}

func TestGradeDetailVisibility(t *testing.T) {
	env := setupEnv(t)
	submission := env.submission(t, env.assignment.ID, env.student.ID)

	for _, user := range []*models.User{&env.student, &env.teacher, &env.admin} {
		resp, _ := env.do(t, user, http.MethodGet, gradePath(submission.ID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, user.Email)
	}

	resp, _ := env.do(t, &env.outsider, http.MethodGet, gradePath(submission.ID), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, &env.other, http.MethodGet, gradePath(submission.ID)+"/history", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCourseGradeMatchesContract(t *testing.T) {
	env := setupEnv(t)
	submission := env.submission(t, env.assignment.ID, env.student.ID)

	second := models.Assignment{CourseID: env.course.ID, Title: "Geometri", MaxPoints: 50, DueDate: time.Now().Add(48 * time.Hour)}
	require.NoError(t, env.db.Omit("Course").Create(&second).Error)

	resp, _ := env.do(t, &env.teacher, http.MethodPatch, gradePath(submission.ID), map[string]interface{}{"grade": 75})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, &env.student, http.MethodGet, fmt.Sprintf("/api/grades/course/%d", env.course.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)

	schemaPath, err := filepath.Abs(filepath.Join("testdata", "course_grade.schema.json"))
	require.NoError(t, err)
	schema, err := jsonschema.NewCompiler().Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)

	var document interface{}
	require.NoError(t, json.Unmarshal(body.Data, &document))
	require.NoError(t, schema.Validate(document))

	var grade dto.CourseGradeResponse
	decodeData(t, body, &grade)
	require.Equal(t, 75.0, grade.TotalScore)
	require.Equal(t, 150.0, grade.MaxScore)
	require.Equal(t, 50.0, grade.Percentage)
	require.Equal(t, "75/150 (50.00%)", grade.Formatted)
	require.Equal(t, 2, grade.AssignmentCount)
	require.Equal(t, 1, grade.GradedCount)

	resp, body = env.do(t, &env.teacher, http.MethodGet, fmt.Sprintf("/api/grades/course/%d?student_id=%d", env.course.ID, env.student.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	decodeData(t, body, &grade)
	require.Equal(t, "75/150 (50.00%)", grade.Formatted)

	resp, _ = env.do(t, &env.outsider, http.MethodGet, fmt.Sprintf("/api/grades/course/%d", env.course.ID), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCourseGradeWithoutAssignments(t *testing.T) {
	env := setupEnv(t)

	empty := models.Course{Code: "BIO10", Title: "Biologi", TeacherID: env.teacher.ID}
	require.NoError(t, env.db.Omit("Teacher").Create(&empty).Error)
	require.NoError(t, env.db.Omit("Course", "Student").Create(&models.Enrollment{
		CourseID:   empty.ID,
		StudentID:  env.student.ID,
		EnrolledAt: time.Now(),
	}).Error)

	resp, body := env.do(t, &env.student, http.MethodGet, fmt.Sprintf("/api/grades/course/%d", empty.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var grade dto.CourseGradeResponse
	decodeData(t, body, &grade)
	require.Zero(t, grade.TotalScore)
	require.Zero(t, grade.MaxScore)
	require.Zero(t, grade.Percentage)
	require.NotEmpty(t, grade.Message)
	require.Equal(t, grade.Message, body.Message)
}

func TestAssignmentGrades(t *testing.T) {
	env := setupEnv(t)
	submission := env.submission(t, env.assignment.ID, env.student.ID)

	resp, _ := env.do(t, &env.teacher, http.MethodPatch, gradePath(submission.ID), map[string]interface{}{"grade": 64.5})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, &env.teacher, http.MethodGet, fmt.Sprintf("/api/grades/assignment/%d/all", env.assignment.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var grades dto.AssignmentGradesResponse
	decodeData(t, body, &grades)
	require.Len(t, grades.Items, 1)
	require.Equal(t, 1, grades.GradedCount)
	require.Equal(t, 0, grades.PendingCount)
	require.NotNil(t, grades.Average)
	require.Equal(t, 64.5, *grades.Average)

	resp, _ = env.do(t, &env.student, http.MethodGet, fmt.Sprintf("/api/grades/assignment/%d/all", env.assignment.ID), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
