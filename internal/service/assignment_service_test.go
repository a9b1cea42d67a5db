package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

func TestAssignmentServiceCreateRequiresCourseOwner(t *testing.T) {
	db := setupServiceDB(t)
	f := seedCourse(t, db)
	activity := &recordingActivity{}
	svc := NewAssignmentService(repository.NewAssignmentRepository(db), repository.NewCourseRepository(db), testValidator(), activity, nil, testLogger())
	ctx := context.Background()

	payload := dto.AssignmentCreateRequest{
		CourseID:  f.course.ID,
		Title:     "Statistika",
		MaxPoints: 40,
		DueDate:   time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	}

	_, err := svc.Create(ctx, actorOf(f.other), payload)
	require.ErrorIs(t, err, ErrForbidden)

	created, err := svc.Create(ctx, actorOf(f.teacher), payload)
	require.NoError(t, err)
	require.Equal(t, 40.0, created.MaxPoints)
	require.Equal(t, []string{"assignment.created"}, activity.actions())

	payload.MaxPoints = 0
	_, err = svc.Create(ctx, actorOf(f.teacher), payload)
	require.Error(t, err)

	list, err := svc.ListByCourse(ctx, actorOf(f.student), f.course.ID, "")
	require.NoError(t, err)
	require.Len(t, list, 2)

	_, err = svc.ListByCourse(ctx, actorOf(f.outsider), f.course.ID, "")
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAssignmentServiceMaxPointsCannotDropBelowExistingGrade(t *testing.T) {
	db := setupServiceDB(t)
	f := seedCourse(t, db)
	svc := NewAssignmentService(repository.NewAssignmentRepository(db), repository.NewCourseRepository(db), testValidator(), nil, nil, testLogger())
	ctx := context.Background()

	submission := seedSubmission(t, db, f.assignment.ID, f.student.ID)
	require.NoError(t, db.Model(&submission).Update("grade", 90).Error)

	_, err := svc.Update(ctx, actorOf(f.teacher), f.assignment.ID, dto.AssignmentUpdateRequest{MaxPoints: floatPtr(80)})
	require.ErrorIs(t, err, ErrMaxPointsBelowGrade)

	updated, err := svc.Update(ctx, actorOf(f.teacher), f.assignment.ID, dto.AssignmentUpdateRequest{MaxPoints: floatPtr(90)})
	require.NoError(t, err)
	require.Equal(t, 90.0, updated.MaxPoints)

	bad := "tomorrow"
	_, err = svc.Update(ctx, actorOf(f.teacher), f.assignment.ID, dto.AssignmentUpdateRequest{DueDate: &bad})
	require.Error(t, err)
}

func TestAssignmentServiceMutationInvalidatesCourseGrades(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db := setupServiceDB(t)
	f := seedCourse(t, db)
	cache := NewCourseGradeCache(client, time.Minute, testLogger())
	svc := NewAssignmentService(repository.NewAssignmentRepository(db), repository.NewCourseRepository(db), testValidator(), nil, cache, testLogger())
	ctx := context.Background()

	cache.Set(ctx, dto.CourseGradeResponse{CourseID: f.course.ID, StudentID: f.student.ID, Formatted: "0/100 (0.00%)"})
	_, hit := cache.Get(ctx, f.course.ID, f.student.ID)
	require.True(t, hit)

	require.NoError(t, svc.Delete(ctx, actorOf(f.teacher), f.assignment.ID))

	_, hit = cache.Get(ctx, f.course.ID, f.student.ID)
	require.False(t, hit)

	_, err := svc.Get(ctx, actorOf(f.teacher), f.assignment.ID)
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}
