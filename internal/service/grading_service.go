package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/grading"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// GradingService implements the grade lifecycle: grading, un-grading, the
// grade views and the course aggregate. Every entry point resolves ownership
// through the grading package predicates.
type GradingService interface {
	Grade(ctx context.Context, actor Actor, submissionID uint, payload dto.GradeSubmissionRequest) (dto.GradeDetailResponse, error)
	Ungrade(ctx context.Context, actor Actor, submissionID uint) (dto.GradeDetailResponse, error)
	Detail(ctx context.Context, actor Actor, submissionID uint) (dto.GradeDetailResponse, error)
	History(ctx context.Context, actor Actor, submissionID uint) ([]dto.SubmissionGradeHistoryResponse, error)
	CourseGrade(ctx context.Context, actor Actor, courseID uint, studentID *uint) (dto.CourseGradeResponse, error)
	AssignmentGrades(ctx context.Context, actor Actor, assignmentID uint) (dto.AssignmentGradesResponse, error)
	Pending(ctx context.Context, actor Actor, req dto.GradeCenterListRequest) ([]dto.GradeCenterItem, error)
	CourseGradeCenter(ctx context.Context, actor Actor, courseID uint) ([]dto.GradeCenterItem, error)
}

type gradingService struct {
	submissions   repository.SubmissionRepository
	assignments   repository.AssignmentRepository
	courses       repository.CourseRepository
	cache         CourseGradeCache
	validator     *validator.Validate
	activity      ActivityRecorder
	notifications NotificationPublisher
	sanitizer     *bluemonday.Policy
	tracer        trace.Tracer
	logger        zerolog.Logger
	now           func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(
	submissions repository.SubmissionRepository,
	assignments repository.AssignmentRepository,
	courses repository.CourseRepository,
	cache CourseGradeCache,
	validate *validator.Validate,
	activity ActivityRecorder,
	notifications NotificationPublisher,
	logger zerolog.Logger,
) GradingService {
	return &gradingService{
		submissions:   submissions,
		assignments:   assignments,
		courses:       courses,
		cache:         cache,
		validator:     validate,
		activity:      activity,
		notifications: notifications,
		sanitizer:     bluemonday.StrictPolicy(),
		tracer:        otel.Tracer("github.com/noah-isme/gema-lms-api/internal/service/grading"),
		logger:        logger.With().Str("component", "grading_service").Logger(),
		now:           time.Now,
	}
}

func (s *gradingService) Grade(ctx context.Context, actor Actor, submissionID uint, payload dto.GradeSubmissionRequest) (_ dto.GradeDetailResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "grading.grade", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer func() { s.finishSpan(span, "grade", err) }()

	if err := s.validator.Struct(payload); err != nil {
		return dto.GradeDetailResponse{}, err
	}

	submission, err := s.loadOwned(ctx, actor, submissionID)
	if err != nil {
		return dto.GradeDetailResponse{}, err
	}

	score := *payload.Grade
	if err := grading.ValidateScore(score, submission.Assignment.MaxPoints); err != nil {
		return dto.GradeDetailResponse{}, err
	}

	now := s.now().UTC()
	if !grading.SubmissionMutable(submission, now) {
		return dto.GradeDetailResponse{}, ErrGradeWindowClosed
	}

	feedback := s.cleanFeedback(payload.Feedback)
	if sameGrade(submission, score, feedback, actor.ID) {
		// identical re-grade: no write, so the edit window is not extended
		span.SetAttributes(attribute.Bool("grading.idempotent", true))
		return dto.NewGradeDetailResponse(submission, now), nil
	}

	action := models.GradeActionGraded
	if submission.IsGraded() {
		action = models.GradeActionRegraded
	}

	gradedBy := actor.ID
	submission.Grade = &score
	submission.Feedback = feedback
	submission.GradedBy = &gradedBy
	submission.GradedAt = &now

	history := models.SubmissionGradeHistory{
		SubmissionID: submission.ID,
		Action:       action,
		Score:        &score,
		Feedback:     feedback,
		GradedBy:     actor.ID,
		GradedAt:     now,
	}
	if err := s.submissions.ApplyGrade(ctx, &submission, &history); err != nil {
		return dto.GradeDetailResponse{}, s.translateWriteError(err)
	}

	span.SetAttributes(
		attribute.Float64("grading.score", score),
		attribute.String("grading.action", action),
	)

	s.afterMutation(ctx, actor, submission, "submission."+action, map[string]interface{}{
		"submission_id": submission.ID,
		"student_id":    submission.StudentID,
		"assignment_id": submission.AssignmentID,
		"score":         score,
	})

	message := fmt.Sprintf("Your submission for '%s' was graded: %s/%s",
		submission.Assignment.Title, formatPoints(score), formatPoints(submission.Assignment.MaxPoints))
	kind := "grade_posted"
	if action == models.GradeActionRegraded {
		message = fmt.Sprintf("Your grade for '%s' was updated: %s/%s",
			submission.Assignment.Title, formatPoints(score), formatPoints(submission.Assignment.MaxPoints))
		kind = "grade_updated"
	}
	s.notifyStudent(ctx, submission.StudentID, kind, message)

	return s.detail(ctx, submission.ID)
}

func (s *gradingService) Ungrade(ctx context.Context, actor Actor, submissionID uint) (_ dto.GradeDetailResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "grading.ungrade", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer func() { s.finishSpan(span, "ungrade", err) }()

	submission, err := s.loadOwned(ctx, actor, submissionID)
	if err != nil {
		return dto.GradeDetailResponse{}, err
	}

	if !submission.IsGraded() {
		return dto.GradeDetailResponse{}, ErrNotGraded
	}

	now := s.now().UTC()
	if !grading.CanMutateGrade(submission.GradedAt, now) {
		return dto.GradeDetailResponse{}, ErrGradeWindowClosed
	}

	previous := *submission.Grade
	submission.Grade = nil
	submission.Feedback = nil
	submission.GradedBy = nil
	submission.GradedAt = nil

	history := models.SubmissionGradeHistory{
		SubmissionID: submission.ID,
		Action:       models.GradeActionUnmarked,
		GradedBy:     actor.ID,
		GradedAt:     now,
	}
	if err := s.submissions.ApplyGrade(ctx, &submission, &history); err != nil {
		return dto.GradeDetailResponse{}, s.translateWriteError(err)
	}

	s.afterMutation(ctx, actor, submission, "submission.unmarked", map[string]interface{}{
		"submission_id":  submission.ID,
		"student_id":     submission.StudentID,
		"assignment_id":  submission.AssignmentID,
		"previous_score": previous,
	})
	s.notifyStudent(ctx, submission.StudentID, "grade_removed",
		fmt.Sprintf("The grade for '%s' was removed and is pending review", submission.Assignment.Title))

	return s.detail(ctx, submission.ID)
}

func (s *gradingService) Detail(ctx context.Context, actor Actor, submissionID uint) (dto.GradeDetailResponse, error) {
	submission, err := s.loadVisible(ctx, actor, submissionID)
	if err != nil {
		return dto.GradeDetailResponse{}, err
	}
	return dto.NewGradeDetailResponse(submission, s.now().UTC()), nil
}

func (s *gradingService) History(ctx context.Context, actor Actor, submissionID uint) ([]dto.SubmissionGradeHistoryResponse, error) {
	submission, err := s.loadVisible(ctx, actor, submissionID)
	if err != nil {
		return nil, err
	}

	entries, err := s.submissions.ListHistory(ctx, submission.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubmissionGradeHistoryResponseSlice(entries), nil
}

func (s *gradingService) CourseGrade(ctx context.Context, actor Actor, courseID uint, studentID *uint) (dto.CourseGradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.course_grade", trace.WithAttributes(
		attribute.Int64("grading.course_id", int64(courseID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return dto.CourseGradeResponse{}, err
	}

	var target uint
	switch {
	case actor.IsStudent():
		if studentID != nil && *studentID != actor.ID {
			return dto.CourseGradeResponse{}, ErrForbidden
		}
		target = actor.ID
	case grading.CanManageCourse(actor.ID, actor.Role, course.TeacherID):
		if studentID == nil || *studentID == 0 {
			return dto.CourseGradeResponse{}, ErrStudentRequired
		}
		target = *studentID
	default:
		return dto.CourseGradeResponse{}, ErrForbidden
	}

	enrolled, err := s.courses.IsEnrolled(ctx, course.ID, target)
	if err != nil {
		return dto.CourseGradeResponse{}, err
	}
	if !enrolled {
		return dto.CourseGradeResponse{}, ErrNotEnrolled
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, course.ID, target); ok {
			span.SetAttributes(attribute.Bool("grading.cache_hit", true))
			return cached, nil
		}
	}

	assignments, err := s.assignments.ListByCourse(ctx, repository.AssignmentFilter{CourseID: course.ID})
	if err != nil {
		return dto.CourseGradeResponse{}, err
	}
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		StudentID: uintPtr(target),
		CourseID:  uintPtr(course.ID),
	})
	if err != nil {
		return dto.CourseGradeResponse{}, err
	}

	response := dto.NewCourseGradeResponse(course.ID, target, assignments, submissions)
	if s.cache != nil {
		s.cache.Set(ctx, response)
	}

	span.SetAttributes(attribute.Float64("grading.percentage", response.Percentage))
	return response, nil
}

func (s *gradingService) AssignmentGrades(ctx context.Context, actor Actor, assignmentID uint) (dto.AssignmentGradesResponse, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentGradesResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentGradesResponse{}, err
	}
	if assignment.Course.ID == 0 {
		return dto.AssignmentGradesResponse{}, ErrCourseNotFound
	}
	if !grading.CanManageCourse(actor.ID, actor.Role, assignment.Course.TeacherID) {
		return dto.AssignmentGradesResponse{}, ErrForbidden
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{AssignmentID: uintPtr(assignment.ID)})
	if err != nil {
		return dto.AssignmentGradesResponse{}, err
	}

	response := dto.AssignmentGradesResponse{
		Assignment: dto.NewAssignmentResponse(assignment),
		Items:      dto.NewGradeCenterItems(submissions, s.now().UTC()),
	}

	var total float64
	for _, submission := range submissions {
		if submission.IsGraded() {
			response.GradedCount++
			total += *submission.Grade
		} else {
			response.PendingCount++
		}
	}
	if response.GradedCount > 0 {
		average := math.Round(total/float64(response.GradedCount)*100) / 100
		response.Average = &average
	}

	return response, nil
}

func (s *gradingService) Pending(ctx context.Context, actor Actor, req dto.GradeCenterListRequest) ([]dto.GradeCenterItem, error) {
	filter := repository.SubmissionFilter{PendingOnly: true}
	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		filter.TeacherID = uintPtr(actor.ID)
	default:
		return nil, ErrForbidden
	}

	if req.CourseID != nil {
		course, err := loadCourse(ctx, s.courses, *req.CourseID)
		if err != nil {
			return nil, err
		}
		if !grading.CanManageCourse(actor.ID, actor.Role, course.TeacherID) {
			return nil, ErrForbidden
		}
		filter.CourseID = uintPtr(course.ID)
	}

	submissions, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewGradeCenterItems(submissions, s.now().UTC()), nil
}

func (s *gradingService) CourseGradeCenter(ctx context.Context, actor Actor, courseID uint) ([]dto.GradeCenterItem, error) {
	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return nil, err
	}
	if !grading.CanManageCourse(actor.ID, actor.Role, course.TeacherID) {
		return nil, ErrForbidden
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{CourseID: uintPtr(course.ID)})
	if err != nil {
		return nil, err
	}
	return dto.NewGradeCenterItems(submissions, s.now().UTC()), nil
}

func (s *gradingService) load(ctx context.Context, submissionID uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}
	return submission, nil
}

// loadOwned resolves Submission -> Assignment -> Course -> teacher and admits
// only the owning teacher or an admin.
func (s *gradingService) loadOwned(ctx context.Context, actor Actor, submissionID uint) (models.Submission, error) {
	if !actor.IsTeacher() && !actor.IsAdmin() {
		return models.Submission{}, ErrForbidden
	}

	submission, err := s.load(ctx, submissionID)
	if err != nil {
		return models.Submission{}, err
	}

	teacherID, err := courseOwnerOf(submission)
	if err != nil {
		return models.Submission{}, err
	}
	if !grading.CanManageCourse(actor.ID, actor.Role, teacherID) {
		return models.Submission{}, ErrForbidden
	}
	return submission, nil
}

func (s *gradingService) loadVisible(ctx context.Context, actor Actor, submissionID uint) (models.Submission, error) {
	submission, err := s.load(ctx, submissionID)
	if err != nil {
		return models.Submission{}, err
	}

	teacherID, err := courseOwnerOf(submission)
	if err != nil {
		return models.Submission{}, err
	}
	if !grading.CanViewSubmission(actor.ID, actor.Role, submission.StudentID, teacherID) {
		return models.Submission{}, ErrForbidden
	}
	return submission, nil
}

func courseOwnerOf(submission models.Submission) (uint, error) {
	teacherID, ok := grading.CourseOwner(submission)
	if ok {
		return teacherID, nil
	}
	if submission.Assignment.ID == 0 {
		return 0, ErrAssignmentNotFound
	}
	return 0, ErrCourseNotFound
}

func (s *gradingService) detail(ctx context.Context, submissionID uint) (dto.GradeDetailResponse, error) {
	stored, err := s.load(ctx, submissionID)
	if err != nil {
		return dto.GradeDetailResponse{}, err
	}
	return dto.NewGradeDetailResponse(stored, s.now().UTC()), nil
}

func (s *gradingService) translateWriteError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSubmissionNotFound
	}
	return err
}

func (s *gradingService) afterMutation(ctx context.Context, actor Actor, submission models.Submission, action string, metadata map[string]interface{}) {
	courseID := submission.Assignment.CourseID
	if s.cache != nil {
		s.cache.InvalidateStudent(ctx, courseID, submission.StudentID)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "submission",
		EntityID:   uintPtr(submission.ID),
		CourseID:   uintPtr(courseID),
		Metadata:   metadata,
	})

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("actor_id", actor.ID).
		Str("action", action).
		Msg("grade mutated")
}

func (s *gradingService) notifyStudent(ctx context.Context, studentID uint, kind, message string) {
	if s.notifications == nil {
		return
	}
	if _, err := s.notifications.Publish(ctx, dto.NotificationCreateRequest{
		UserID:  studentID,
		Type:    kind,
		Message: message,
	}); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to notify student about grade change")
	}
}

func (s *gradingService) finishSpan(span trace.Span, operation string, err error) {
	outcome := gradingOutcome(err)
	observability.GradingOperations().WithLabelValues(operation, outcome).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		if outcome == "error" {
			s.logger.Error().Err(err).Str("operation", operation).Msg("grading operation failed")
		}
	}
	span.End()
}

func gradingOutcome(err error) string {
	var validationErrors validator.ValidationErrors
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSubmissionNotFound), errors.Is(err, ErrAssignmentNotFound), errors.Is(err, ErrCourseNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrGradeOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrGradeWindowClosed):
		return "window_closed"
	case errors.Is(err, ErrNotGraded), errors.As(err, &validationErrors):
		return "invalid"
	default:
		return "error"
	}
}

func (s *gradingService) cleanFeedback(feedback *string) *string {
	if feedback == nil {
		return nil
	}
	cleaned := strings.TrimSpace(s.sanitizer.Sanitize(*feedback))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// sameGrade reports a repeated request from the same grader; it must not
// refresh gradedAt.
func sameGrade(submission models.Submission, score float64, feedback *string, actorID uint) bool {
	if submission.Grade == nil || submission.GradedBy == nil || *submission.GradedBy != actorID {
		return false
	}
	if math.Abs(*submission.Grade-score) >= 1e-6 {
		return false
	}
	current := ""
	if submission.Feedback != nil {
		current = *submission.Feedback
	}
	next := ""
	if feedback != nil {
		next = *feedback
	}
	return current == next
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
