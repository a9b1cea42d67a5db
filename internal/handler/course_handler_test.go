package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
)

func TestCourseLifecycle(t *testing.T) {
	env := setupEnv(t)

	resp, body := env.do(t, &env.teacher, http.MethodPost, "/api/courses", map[string]interface{}{
		"code":  "FIS11",
		"title": "Fisika Dasar",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)

	var course dto.CourseResponse
	decodeData(t, body, &course)
	require.Equal(t, env.teacher.ID, course.TeacherID)

	resp, _ = env.do(t, &env.teacher, http.MethodPost, "/api/courses", map[string]interface{}{"code": "FIS11", "title": "Duplikat"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, &env.student, http.MethodPost, "/api/courses", map[string]interface{}{"code": "XX1", "title": "Tidak boleh"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	enrollPath := fmt.Sprintf("/api/courses/%d/enroll", course.ID)
	resp, _ = env.do(t, &env.outsider, http.MethodPost, enrollPath, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = env.do(t, &env.outsider, http.MethodPost, enrollPath, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = env.do(t, &env.teacher, http.MethodGet, fmt.Sprintf("/api/courses/%d/students", course.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var roster []dto.EnrollmentResponse
	decodeData(t, body, &roster)
	require.Len(t, roster, 1)
	require.Equal(t, env.outsider.ID, roster[0].StudentID)

	resp, _ = env.do(t, &env.other, http.MethodPut, fmt.Sprintf("/api/courses/%d", course.ID), map[string]interface{}{"title": "Diambil alih"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, &env.outsider, http.MethodDelete, enrollPath, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, &env.teacher, http.MethodDelete, fmt.Sprintf("/api/courses/%d", course.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, &env.teacher, http.MethodGet, fmt.Sprintf("/api/courses/%d", course.ID), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCourseListScopedByRole(t *testing.T) {
	env := setupEnv(t)

	resp, body := env.do(t, &env.student, http.MethodGet, "/api/courses", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var courses []dto.CourseResponse
	decodeData(t, body, &courses)
	require.Len(t, courses, 1)

	resp, body = env.do(t, &env.outsider, http.MethodGet, "/api/courses", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, body, &courses)
	require.Empty(t, courses)

	resp, _ = env.do(t, &env.outsider, http.MethodGet, fmt.Sprintf("/api/courses/%d/assignments", env.course.ID), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = env.do(t, &env.student, http.MethodGet, fmt.Sprintf("/api/courses/%d/assignments", env.course.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var assignments []dto.AssignmentResponse
	decodeData(t, body, &assignments)
	require.Len(t, assignments, 1)
}

func TestAssignmentEndpoints(t *testing.T) {
	env := setupEnv(t)

	resp, body := env.do(t, &env.teacher, http.MethodPost, "/api/assignments", map[string]interface{}{
		"course_id":  env.course.ID,
		"title":      "Trigonometri",
		"max_points": 40,
		"due_date":   "2030-01-01T10:00:00Z",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)

	var assignment dto.AssignmentResponse
	decodeData(t, body, &assignment)
	require.Equal(t, 40.0, assignment.MaxPoints)

	resp, body = env.do(t, &env.teacher, http.MethodPost, "/api/assignments", map[string]interface{}{
		"course_id": env.course.ID,
		"title":     "Tanpa nilai",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation failed", body.Message)

	resp, _ = env.do(t, &env.other, http.MethodPost, "/api/assignments", map[string]interface{}{
		"course_id":  env.course.ID,
		"title":      "Bukan kelas saya",
		"max_points": 10,
		"due_date":   "2030-01-01T10:00:00Z",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	submission := env.submission(t, assignment.ID, env.student.ID)
	resp, _ = env.do(t, &env.teacher, http.MethodPatch, gradePath(submission.ID), map[string]interface{}{"grade": 35})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, &env.teacher, http.MethodPut, fmt.Sprintf("/api/assignments/%d", assignment.ID), map[string]interface{}{"max_points": 30})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, &env.student, http.MethodGet, fmt.Sprintf("/api/assignments/%d", assignment.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
