package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/database"
	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

type courseFixture struct {
	teacher    models.User
	other      models.User
	student    models.User
	outsider   models.User
	admin      models.User
	course     models.Course
	assignment models.Assignment
}

// seedCourse creates a course owned by teacher with one enrolled student and a
// single 100 point assignment due tomorrow.
func seedCourse(t *testing.T, db *gorm.DB) courseFixture {
	t.Helper()

	f := courseFixture{
		teacher:  models.User{Name: "Bu Sari", Email: "sari@example.com", Role: models.RoleTeacher},
		other:    models.User{Name: "Pak Budi", Email: "budi@example.com", Role: models.RoleTeacher},
		student:  models.User{Name: "Rina", Email: "rina@example.com", Role: models.RoleStudent},
		outsider: models.User{Name: "Dodi", Email: "dodi@example.com", Role: models.RoleStudent},
		admin:    models.User{Name: "Admin", Email: "admin@example.com", Role: models.RoleAdmin},
	}
	for _, user := range []*models.User{&f.teacher, &f.other, &f.student, &f.outsider, &f.admin} {
		require.NoError(t, db.Create(user).Error)
	}

	f.course = models.Course{Code: "MTK10", Title: "Matematika", TeacherID: f.teacher.ID}
	require.NoError(t, db.Omit("Teacher").Create(&f.course).Error)

	require.NoError(t, db.Omit("Course", "Student").Create(&models.Enrollment{
		CourseID:   f.course.ID,
		StudentID:  f.student.ID,
		EnrolledAt: time.Now(),
	}).Error)

	f.assignment = seedAssignment(t, db, f.course.ID, "Aljabar", 100)
	return f
}

func seedAssignment(t *testing.T, db *gorm.DB, courseID uint, title string, maxPoints float64) models.Assignment {
	t.Helper()
	assignment := models.Assignment{
		CourseID:  courseID,
		Title:     title,
		MaxPoints: maxPoints,
		DueDate:   time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, db.Omit("Course").Create(&assignment).Error)
	return assignment
}

func seedSubmission(t *testing.T, db *gorm.DB, assignmentID, studentID uint) models.Submission {
	t.Helper()
	comment := "jawaban saya"
	submission := models.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Comment:      &comment,
		SubmittedAt:  time.Now(),
	}
	require.NoError(t, db.Omit("Assignment", "Student", "History").Create(&submission).Error)
	return submission
}

func actorOf(user models.User) Actor {
	return Actor{ID: user.ID, Role: user.Role}
}

type recordingActivity struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (r *recordingActivity) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return dto.ActivityResponse{ID: uint(len(r.entries)), Action: entry.Action}, nil
}

func (r *recordingActivity) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.Action)
	}
	return out
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []dto.NotificationCreateRequest
}

func (p *recordingPublisher) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, payload)
	return dto.NotificationResponse{ID: uint(len(p.sent)), UserID: payload.UserID, Type: payload.Type, Message: payload.Message}, nil
}

func (p *recordingPublisher) last() dto.NotificationCreateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sent) == 0 {
		return dto.NotificationCreateRequest{}
	}
	return p.sent[len(p.sent)-1]
}

func floatPtr(v float64) *float64 {
	return &v
}

func stringPtr(v string) *string {
	return &v
}
