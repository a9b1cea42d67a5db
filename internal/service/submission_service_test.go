package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

type stubUploader struct {
	uploads      int
	contentTypes []string
}

func (s *stubUploader) Upload(_ context.Context, name, contentType string, reader io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	s.uploads++
	s.contentTypes = append(s.contentTypes, contentType)
	return "https://cdn.example.com/" + name, nil
}

func createFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(int64(len(content))+1024))
	files := req.MultipartForm.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func newSubmissionServiceForTest(t *testing.T, uploader FileUploader) (*submissionService, *gorm.DB, courseFixture, *recordingPublisher) {
	t.Helper()
	db := setupServiceDB(t)
	f := seedCourse(t, db)
	publisher := &recordingPublisher{}
	svc := NewSubmissionService(
		repository.NewSubmissionRepository(db),
		repository.NewAssignmentRepository(db),
		repository.NewCourseRepository(db),
		testValidator(),
		uploader,
		&recordingActivity{},
		publisher,
		testLogger(),
	).(*submissionService)
	return svc, db, f, publisher
}

func TestSubmissionServiceSubmitAndResubmit(t *testing.T) {
	svc, db, f, publisher := newSubmissionServiceForTest(t, nil)
	ctx := context.Background()

	created, isNew, err := svc.Submit(ctx, actorOf(f.student), dto.SubmissionCreateRequest{
		AssignmentID: f.assignment.ID,
		Comment:      stringPtr("first draft"),
	}, nil)
	require.NoError(t, err)
	require.True(t, isNew)
	require.False(t, created.IsLate)
	require.Equal(t, models.SubmissionStatusPending, created.Status)
	require.Equal(t, f.teacher.ID, publisher.last().UserID)

	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", created.ID).Update("grade", 50).Error)

	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	resubmitted, isNew, err := svc.Submit(ctx, actorOf(f.student), dto.SubmissionCreateRequest{
		AssignmentID: f.assignment.ID,
		Comment:      stringPtr("final version"),
	}, nil)
	require.NoError(t, err)
	require.False(t, isNew)
	require.Equal(t, created.ID, resubmitted.ID)
	require.True(t, resubmitted.IsLate)
	require.Equal(t, "final version", *resubmitted.Comment)
	require.NotNil(t, resubmitted.Grade)
	require.Equal(t, 50.0, *resubmitted.Grade)
	require.Contains(t, publisher.last().Message, "(late)")
}

func TestSubmissionServiceSubmitGuards(t *testing.T) {
	svc, _, f, _ := newSubmissionServiceForTest(t, nil)
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, actorOf(f.outsider), dto.SubmissionCreateRequest{AssignmentID: f.assignment.ID, Comment: stringPtr("hi")}, nil)
	require.ErrorIs(t, err, ErrNotEnrolled)

	_, _, err = svc.Submit(ctx, actorOf(f.teacher), dto.SubmissionCreateRequest{AssignmentID: f.assignment.ID, Comment: stringPtr("hi")}, nil)
	require.ErrorIs(t, err, ErrForbidden)

	_, _, err = svc.Submit(ctx, actorOf(f.student), dto.SubmissionCreateRequest{AssignmentID: 9999, Comment: stringPtr("hi")}, nil)
	require.ErrorIs(t, err, ErrAssignmentNotFound)

	_, _, err = svc.Submit(ctx, actorOf(f.student), dto.SubmissionCreateRequest{AssignmentID: f.assignment.ID, Comment: stringPtr("  <b></b> ")}, nil)
	require.ErrorIs(t, err, ErrEmptySubmission)

	file := createFileHeader(t, "answer.txt", []byte("plain text answer"))
	_, _, err = svc.Submit(ctx, actorOf(f.student), dto.SubmissionCreateRequest{AssignmentID: f.assignment.ID}, file)
	require.ErrorIs(t, err, ErrUploadUnavailable)
}

func TestSubmissionServiceUploadsAllowedFiles(t *testing.T) {
	uploader := &stubUploader{}
	svc, _, f, _ := newSubmissionServiceForTest(t, uploader)
	ctx := context.Background()

	file := createFileHeader(t, "answer.txt", []byte("plain text answer"))
	created, _, err := svc.Submit(ctx, actorOf(f.student), dto.SubmissionCreateRequest{AssignmentID: f.assignment.ID}, file)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/answer.txt", created.FileURL)
	require.Equal(t, 1, uploader.uploads)
	require.Contains(t, uploader.contentTypes[0], "text/plain")

	resubmitted, _, err := svc.Submit(ctx, actorOf(f.student), dto.SubmissionCreateRequest{AssignmentID: f.assignment.ID, Comment: stringPtr("note")}, nil)
	require.NoError(t, err)
	require.Equal(t, created.FileURL, resubmitted.FileURL)

	binary := createFileHeader(t, "tool.exe", []byte{0x4d, 0x5a, 0x90, 0x00, 0x03, 0x00, 0x00, 0x00})
	_, _, err = svc.Submit(ctx, actorOf(f.student), dto.SubmissionCreateRequest{AssignmentID: f.assignment.ID}, binary)
	require.ErrorIs(t, err, ErrUnsupportedFileType)
	require.Equal(t, 1, uploader.uploads)
}

func TestSubmissionServiceVisibilityAndWithdraw(t *testing.T) {
	svc, db, f, _ := newSubmissionServiceForTest(t, nil)
	ctx := context.Background()

	created, _, err := svc.Submit(ctx, actorOf(f.student), dto.SubmissionCreateRequest{AssignmentID: f.assignment.ID, Comment: stringPtr("hello")}, nil)
	require.NoError(t, err)

	_, err = svc.Get(ctx, actorOf(f.teacher), created.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, actorOf(f.other), created.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Get(ctx, actorOf(f.outsider), created.ID)
	require.ErrorIs(t, err, ErrForbidden)

	mine, err := svc.ListMine(ctx, actorOf(f.student), dto.SubmissionListRequest{CourseID: &f.course.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	require.ErrorIs(t, svc.Withdraw(ctx, actorOf(f.teacher), created.ID), ErrForbidden)

	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", created.ID).Update("grade", 10).Error)
	require.ErrorIs(t, svc.Withdraw(ctx, actorOf(f.student), created.ID), ErrSubmissionLocked)

	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", created.ID).Update("grade", gorm.Expr("NULL")).Error)
	require.NoError(t, svc.Withdraw(ctx, actorOf(f.student), created.ID))

	_, err = svc.Get(ctx, actorOf(f.student), created.ID)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

// staleLookupRepo misses the first lookup, as if another request inserted the
// row between the read and the insert.
type staleLookupRepo struct {
	repository.SubmissionRepository
	missed bool
}

func (r *staleLookupRepo) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	if !r.missed {
		r.missed = true
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return r.SubmissionRepository.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
}

func TestSubmissionServiceConcurrentFirstSubmitFallsBackToResubmit(t *testing.T) {
	svc, db, f, _ := newSubmissionServiceForTest(t, nil)
	existing := seedSubmission(t, db, f.assignment.ID, f.student.ID)
	svc.submissions = &staleLookupRepo{SubmissionRepository: svc.submissions}

	response, isNew, err := svc.Submit(context.Background(), actorOf(f.student), dto.SubmissionCreateRequest{
		AssignmentID: f.assignment.ID,
		Comment:      stringPtr("versi balapan"),
	}, nil)
	require.NoError(t, err)
	require.False(t, isNew)
	require.Equal(t, existing.ID, response.ID)
	require.Equal(t, "versi balapan", *response.Comment)

	var count int64
	require.NoError(t, db.Model(&models.Submission{}).Where("assignment_id = ? AND student_id = ?", f.assignment.ID, f.student.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
}
