package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

func newCourseServiceForTest(t *testing.T) (CourseService, courseFixture, *recordingActivity, *recordingPublisher) {
	t.Helper()
	db := setupServiceDB(t)
	fixture := seedCourse(t, db)
	activity := &recordingActivity{}
	publisher := &recordingPublisher{}
	svc := NewCourseService(
		repository.NewCourseRepository(db),
		repository.NewUserRepository(db),
		testValidator(),
		activity,
		publisher,
		testLogger(),
	)
	return svc, fixture, activity, publisher
}

func TestCourseServiceCreateByTeacher(t *testing.T) {
	svc, f, activity, _ := newCourseServiceForTest(t)

	course, err := svc.Create(context.Background(), actorOf(f.teacher), dto.CourseCreateRequest{
		Code:  " fis11 ",
		Title: "Fisika",
	})
	require.NoError(t, err)
	require.Equal(t, "FIS11", course.Code)
	require.Equal(t, f.teacher.ID, course.TeacherID)
	require.NotNil(t, course.Teacher)
	require.Equal(t, []string{"course.created"}, activity.actions())

	_, err = svc.Create(context.Background(), actorOf(f.teacher), dto.CourseCreateRequest{Code: "FIS11", Title: "Lagi"})
	require.ErrorIs(t, err, ErrCourseCodeTaken)

	_, err = svc.Create(context.Background(), actorOf(f.teacher), dto.CourseCreateRequest{Code: "BIO", Title: "Biologi", TeacherID: &f.other.ID})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(context.Background(), actorOf(f.student), dto.CourseCreateRequest{Code: "KIM", Title: "Kimia"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCourseServiceCreateByAdminNeedsTeacher(t *testing.T) {
	svc, f, _, _ := newCourseServiceForTest(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, actorOf(f.admin), dto.CourseCreateRequest{Code: "SEJ", Title: "Sejarah"})
	require.ErrorIs(t, err, ErrTeacherRequired)

	_, err = svc.Create(ctx, actorOf(f.admin), dto.CourseCreateRequest{Code: "SEJ", Title: "Sejarah", TeacherID: &f.student.ID})
	require.ErrorIs(t, err, ErrInvalidTeacher)

	course, err := svc.Create(ctx, actorOf(f.admin), dto.CourseCreateRequest{Code: "SEJ", Title: "Sejarah", TeacherID: &f.other.ID})
	require.NoError(t, err)
	require.Equal(t, f.other.ID, course.TeacherID)
}

func TestCourseServiceListIsScopedByRole(t *testing.T) {
	svc, f, _, _ := newCourseServiceForTest(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, actorOf(f.other), dto.CourseCreateRequest{Code: "ENG", Title: "English"})
	require.NoError(t, err)

	own, err := svc.List(ctx, actorOf(f.teacher), dto.CourseListRequest{})
	require.NoError(t, err)
	require.Len(t, own.Items, 1)
	require.Equal(t, f.course.ID, own.Items[0].ID)

	enrolled, err := svc.List(ctx, actorOf(f.student), dto.CourseListRequest{})
	require.NoError(t, err)
	require.Len(t, enrolled.Items, 1)

	none, err := svc.List(ctx, actorOf(f.outsider), dto.CourseListRequest{})
	require.NoError(t, err)
	require.Empty(t, none.Items)

	all, err := svc.List(ctx, actorOf(f.admin), dto.CourseListRequest{})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
	require.Equal(t, int64(2), all.Pagination.TotalItems)
}

func TestCourseServiceEnrollment(t *testing.T) {
	svc, f, _, publisher := newCourseServiceForTest(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, actorOf(f.outsider), f.course.ID)
	require.ErrorIs(t, err, ErrForbidden)

	enrollment, err := svc.Enroll(ctx, actorOf(f.outsider), f.course.ID)
	require.NoError(t, err)
	require.Equal(t, f.outsider.ID, enrollment.StudentID)
	require.Equal(t, f.teacher.ID, publisher.last().UserID)

	_, err = svc.Enroll(ctx, actorOf(f.outsider), f.course.ID)
	require.ErrorIs(t, err, ErrAlreadyEnrolled)

	_, err = svc.Get(ctx, actorOf(f.outsider), f.course.ID)
	require.NoError(t, err)

	roster, err := svc.ListStudents(ctx, actorOf(f.teacher), f.course.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)

	_, err = svc.ListStudents(ctx, actorOf(f.other), f.course.ID)
	require.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.Unenroll(ctx, actorOf(f.outsider), f.course.ID))
	require.ErrorIs(t, svc.Unenroll(ctx, actorOf(f.outsider), f.course.ID), ErrNotEnrolled)

	_, err = svc.Enroll(ctx, actorOf(f.teacher), f.course.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCourseServiceUpdateAndDeleteRequireOwner(t *testing.T) {
	svc, f, _, _ := newCourseServiceForTest(t)
	ctx := context.Background()
	title := "Matematika Lanjut"

	_, err := svc.Update(ctx, actorOf(f.other), f.course.ID, dto.CourseUpdateRequest{Title: &title})
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Update(ctx, actorOf(f.teacher), f.course.ID, dto.CourseUpdateRequest{Title: &title})
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)

	require.ErrorIs(t, svc.Delete(ctx, actorOf(f.student), f.course.ID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, actorOf(f.admin), f.course.ID))

	_, err = svc.Get(ctx, actorOf(f.admin), f.course.ID)
	require.ErrorIs(t, err, ErrCourseNotFound)
}
