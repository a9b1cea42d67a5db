package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/database"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/internal/router"
	"github.com/noah-isme/gema-lms-api/internal/service"
)

const testJWTSecret = "handler-test-secret"

type testEnv struct {
	app        *fiber.App
	db         *gorm.DB
	teacher    models.User
	other      models.User
	student    models.User
	outsider   models.User
	admin      models.User
	course     models.Course
	assignment models.Assignment
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	env := &testEnv{db: db}
	env.seed(t)

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	activity := service.NewActivityService(repository.NewActivityLogRepository(db), validate, logger)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), nil, "", nil, validate, logger)
	cache := service.NewCourseGradeCache(nil, time.Minute, logger)

	courseService := service.NewCourseService(courseRepo, userRepo, validate, activity, notifications, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, courseRepo, validate, activity, cache, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, courseRepo, validate, nil, activity, notifications, logger)
	gradingService := service.NewGradingService(submissionRepo, assignmentRepo, courseRepo, cache, validate, activity, notifications, logger)
	discussionService := service.NewDiscussionService(repository.NewDiscussionRepository(db), courseRepo, notifications, validate, logger)
	userService := service.NewUserService(userRepo, validate, activity, logger)

	cfg := config.Config{AppName: "GEMA LMS API", AppEnv: "test"}

	env.app = fiber.New()
	router.Register(env.app, cfg, router.Dependencies{
		CourseHandler:        handler.NewCourseHandler(courseService, assignmentService, logger),
		AssignmentHandler:    handler.NewAssignmentHandler(assignmentService, logger),
		SubmissionHandler:    handler.NewSubmissionHandler(submissionService, logger),
		GradeHandler:         handler.NewGradeHandler(gradingService, nil, logger),
		GradeCenterHandler:   handler.NewGradeCenterHandler(gradingService, nil, logger),
		DiscussionHandler:    handler.NewDiscussionHandler(discussionService, logger),
		NotificationHandler:  handler.NewNotificationHandler(notifications, logger, time.Second),
		UserHandler:          handler.NewUserHandler(userService, logger),
		AdminActivityHandler: handler.NewAdminActivityHandler(activity, logger),
		JWTMiddleware:        middleware.JWTProtected(testJWTSecret),
	})

	return env
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()

	e.teacher = models.User{Name: "Bu Sari", Email: "sari@example.com", Role: models.RoleTeacher}
	e.other = models.User{Name: "Pak Budi", Email: "budi@example.com", Role: models.RoleTeacher}
	e.student = models.User{Name: "Rina", Email: "rina@example.com", Role: models.RoleStudent}
	e.outsider = models.User{Name: "Dodi", Email: "dodi@example.com", Role: models.RoleStudent}
	e.admin = models.User{Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin}
	for _, user := range []*models.User{&e.teacher, &e.other, &e.student, &e.outsider, &e.admin} {
		require.NoError(t, e.db.Create(user).Error)
	}

	e.course = models.Course{Code: "MTK10", Title: "Matematika", TeacherID: e.teacher.ID}
	require.NoError(t, e.db.Omit("Teacher").Create(&e.course).Error)
	require.NoError(t, e.db.Omit("Course", "Student").Create(&models.Enrollment{
		CourseID:   e.course.ID,
		StudentID:  e.student.ID,
		EnrolledAt: time.Now(),
	}).Error)

	e.assignment = models.Assignment{
		CourseID:  e.course.ID,
		Title:     "Aljabar",
		MaxPoints: 100,
		DueDate:   time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, e.db.Omit("Course").Create(&e.assignment).Error)
}

func (e *testEnv) submission(t *testing.T, assignmentID, studentID uint) models.Submission {
	t.Helper()
	submission := models.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		SubmittedAt:  time.Now(),
	}
	require.NoError(t, e.db.Omit("Assignment", "Student", "History").Create(&submission).Error)
	return submission
}

func tokenFor(t *testing.T, user models.User) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", user.ID),
		"role": user.Role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, user *models.User, method, path string, body interface{}) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if user != nil {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tokenFor(t, *user))
	}

	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (*http.Response, envelope) {
	t.Helper()

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out envelope
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func decodeData(t *testing.T, env envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, target))
}
