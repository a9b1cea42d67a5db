package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/grading"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name, contentType string, reader io.Reader) (string, error)
}

var allowedSubmissionTypes = []string{
	"application/pdf",
	"application/zip",
	"application/x-zip-compressed",
	"text/plain",
	"image/png",
	"image/jpeg",
}

// SubmissionService orchestrates student submission workflows.
type SubmissionService interface {
	Submit(ctx context.Context, actor Actor, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, bool, error)
	ListMine(ctx context.Context, actor Actor, req dto.SubmissionListRequest) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.SubmissionResponse, error)
	Withdraw(ctx context.Context, actor Actor, id uint) error
}

type submissionService struct {
	submissions   repository.SubmissionRepository
	assignments   repository.AssignmentRepository
	courses       repository.CourseRepository
	validator     *validator.Validate
	uploader      FileUploader
	activity      ActivityRecorder
	notifications NotificationPublisher
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	now           func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance. uploader may
// be nil, in which case attachments are rejected.
func NewSubmissionService(subRepo repository.SubmissionRepository, assignmentRepo repository.AssignmentRepository, courseRepo repository.CourseRepository, validate *validator.Validate, uploader FileUploader, activity ActivityRecorder, notifications NotificationPublisher, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions:   subRepo,
		assignments:   assignmentRepo,
		courses:       courseRepo,
		validator:     validate,
		uploader:      uploader,
		activity:      activity,
		notifications: notifications,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "submission_service").Logger(),
		now:           time.Now,
	}
}

// Submit creates the student's submission or resubmits it. The boolean
// result reports whether a new record was created.
func (s *submissionService) Submit(ctx context.Context, actor Actor, payload dto.SubmissionCreateRequest, file *multipart.FileHeader) (dto.SubmissionResponse, bool, error) {
	if !actor.IsStudent() {
		return dto.SubmissionResponse{}, false, ErrForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, false, err
	}

	assignment, err := s.assignments.GetByID(ctx, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, false, ErrAssignmentNotFound
		}
		return dto.SubmissionResponse{}, false, err
	}

	enrolled, err := s.courses.IsEnrolled(ctx, assignment.CourseID, actor.ID)
	if err != nil {
		return dto.SubmissionResponse{}, false, err
	}
	if !enrolled {
		return dto.SubmissionResponse{}, false, ErrNotEnrolled
	}

	comment := s.cleanComment(payload.Comment)
	if comment == nil && file == nil {
		return dto.SubmissionResponse{}, false, ErrEmptySubmission
	}

	fileURL := ""
	if file != nil {
		fileURL, err = s.upload(ctx, file)
		if err != nil {
			return dto.SubmissionResponse{}, false, err
		}
	}

	submittedAt := s.now().UTC()
	isLate := assignment.IsPastDue(submittedAt)

	resubmit := func(existing models.Submission) (dto.SubmissionResponse, bool, error) {
		existing.Comment = comment
		if fileURL != "" {
			existing.FileURL = fileURL
		}
		existing.SubmittedAt = submittedAt
		existing.IsLate = isLate
		if err := s.submissions.Resubmit(ctx, &existing); err != nil {
			return dto.SubmissionResponse{}, false, err
		}
		response, err := s.finish(ctx, actor, existing.ID, assignment, "submission.resubmitted")
		return response, false, err
	}

	existing, err := s.submissions.GetByAssignmentAndStudent(ctx, assignment.ID, actor.ID)
	switch {
	case err == nil:
		return resubmit(existing)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.SubmissionResponse{}, false, err
	}

	submission := models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    actor.ID,
		Comment:      comment,
		FileURL:      fileURL,
		SubmittedAt:  submittedAt,
		IsLate:       isLate,
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.SubmissionResponse{}, false, err
		}
		// a concurrent first submission won the unique index
		existing, err := s.submissions.GetByAssignmentAndStudent(ctx, assignment.ID, actor.ID)
		if err != nil {
			return dto.SubmissionResponse{}, false, err
		}
		return resubmit(existing)
	}

	response, err := s.finish(ctx, actor, submission.ID, assignment, "submission.created")
	return response, true, err
}

func (s *submissionService) finish(ctx context.Context, actor Actor, submissionID uint, assignment models.Assignment, action string) (dto.SubmissionResponse, error) {
	stored, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", stored.ID).
		Uint("assignment_id", assignment.ID).
		Bool("late", stored.IsLate).
		Msg(strings.ReplaceAll(action, ".", " "))

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "submission",
		EntityID:   uintPtr(stored.ID),
		CourseID:   uintPtr(assignment.CourseID),
		Metadata:   map[string]interface{}{"assignment_id": assignment.ID, "late": stored.IsLate},
	})

	if s.notifications != nil && assignment.Course.TeacherID != 0 {
		message := fmt.Sprintf("New submission for '%s'", assignment.Title)
		if stored.IsLate {
			message += " (late)"
		}
		if _, err := s.notifications.Publish(ctx, dto.NotificationCreateRequest{
			UserID:  assignment.Course.TeacherID,
			Type:    "submission_received",
			Message: message,
		}); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", stored.ID).Msg("failed to notify teacher about submission")
		}
	}

	return dto.NewSubmissionResponse(stored), nil
}

func (s *submissionService) ListMine(ctx context.Context, actor Actor, req dto.SubmissionListRequest) ([]dto.SubmissionResponse, error) {
	if !actor.IsStudent() {
		return nil, ErrForbidden
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		StudentID:    uintPtr(actor.ID),
		CourseID:     req.CourseID,
		AssignmentID: req.AssignmentID,
	})
	if err != nil {
		return nil, err
	}
	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, actor Actor, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.load(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	teacherID, ok := grading.CourseOwner(submission)
	if !ok {
		return dto.SubmissionResponse{}, ErrCourseNotFound
	}
	if !grading.CanViewSubmission(actor.ID, actor.Role, submission.StudentID, teacherID) {
		return dto.SubmissionResponse{}, ErrForbidden
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) Withdraw(ctx context.Context, actor Actor, id uint) error {
	submission, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if !actor.IsStudent() || submission.StudentID != actor.ID {
		return ErrForbidden
	}
	if submission.IsGraded() || submission.Assignment.IsPastDue(s.now()) {
		return ErrSubmissionLocked
	}

	if err := s.submissions.Delete(ctx, submission.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "submission.withdrawn",
		EntityType: "submission",
		EntityID:   uintPtr(submission.ID),
		CourseID:   uintPtr(submission.Assignment.CourseID),
	})
	return nil
}

func (s *submissionService) load(ctx context.Context, id uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}
	return submission, nil
}

func (s *submissionService) cleanComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	cleaned := strings.TrimSpace(s.sanitizer.Sanitize(*comment))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func (s *submissionService) upload(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if s.uploader == nil {
		return "", ErrUploadUnavailable
	}

	contentType, err := detectFileType(file)
	if err != nil {
		return "", err
	}

	reader, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	uploadURL, err := s.uploader.Upload(ctx, file.Filename, contentType, reader)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return uploadURL, nil
}

func detectFileType(file *multipart.FileHeader) (string, error) {
	reader, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	mime, err := mimetype.DetectReader(reader)
	if err != nil {
		return "", fmt.Errorf("failed to detect file type: %w", err)
	}

	for _, allowed := range allowedSubmissionTypes {
		if mime.Is(allowed) {
			return mime.String(), nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, mime.String())
}
