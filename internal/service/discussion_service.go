package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// DiscussionService exposes course discussion use-cases.
type DiscussionService interface {
	ListThreads(ctx context.Context, actor Actor, courseID uint, page, pageSize int) (dto.DiscussionThreadListResponse, error)
	GetThread(ctx context.Context, actor Actor, id uint) (dto.DiscussionThreadResponse, error)
	CreateThread(ctx context.Context, actor Actor, courseID uint, payload dto.DiscussionThreadCreateRequest) (dto.DiscussionThreadResponse, error)
	UpdateThread(ctx context.Context, actor Actor, id uint, payload dto.DiscussionThreadUpdateRequest) (dto.DiscussionThreadResponse, error)
	DeleteThread(ctx context.Context, actor Actor, id uint) error
	ListReplies(ctx context.Context, actor Actor, threadID uint, limit, offset int) ([]dto.DiscussionReplyResponse, error)
	CreateReply(ctx context.Context, actor Actor, threadID uint, payload dto.DiscussionReplyCreateRequest) (dto.DiscussionReplyResponse, error)
}

type discussionService struct {
	repo           repository.DiscussionRepository
	courses        repository.CourseRepository
	notifications  NotificationPublisher
	validator      *validator.Validate
	logger         zerolog.Logger
	tracer         trace.Tracer
	sanitizer      *bluemonday.Policy
	textOnly       *bluemonday.Policy
	mentionPattern *regexp.Regexp
	now            func() time.Time
}

// NewDiscussionService constructs a discussion service.
func NewDiscussionService(repo repository.DiscussionRepository, courses repository.CourseRepository, notifications NotificationPublisher, validate *validator.Validate, logger zerolog.Logger) DiscussionService {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("br")

	return &discussionService{
		repo:           repo,
		courses:        courses,
		notifications:  notifications,
		validator:      validate,
		logger:         logger.With().Str("component", "discussion_service").Logger(),
		tracer:         otel.Tracer("github.com/noah-isme/gema-lms-api/internal/service/discussion"),
		sanitizer:      policy,
		textOnly:       bluemonday.StrictPolicy(),
		mentionPattern: regexp.MustCompile(`@(\d+)\b`),
		now:            time.Now,
	}
}

func (s *discussionService) ListThreads(ctx context.Context, actor Actor, courseID uint, page, pageSize int) (dto.DiscussionThreadListResponse, error) {
	if _, err := s.authorizeMember(ctx, actor, courseID); err != nil {
		return dto.DiscussionThreadListResponse{}, err
	}

	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}

	threads, total, err := s.repo.ListThreads(ctx, courseID, pageSize, (page-1)*pageSize)
	if err != nil {
		return dto.DiscussionThreadListResponse{}, err
	}

	return dto.DiscussionThreadListResponse{
		Items:      dto.NewDiscussionThreadResponseSlice(threads),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *discussionService) GetThread(ctx context.Context, actor Actor, id uint) (dto.DiscussionThreadResponse, error) {
	thread, err := s.repo.GetThreadWithReplies(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DiscussionThreadResponse{}, ErrThreadNotFound
		}
		return dto.DiscussionThreadResponse{}, err
	}

	if _, err := s.authorizeMember(ctx, actor, thread.CourseID); err != nil {
		return dto.DiscussionThreadResponse{}, err
	}

	return dto.NewDiscussionThreadResponse(thread), nil
}

func (s *discussionService) CreateThread(ctx context.Context, actor Actor, courseID uint, payload dto.DiscussionThreadCreateRequest) (dto.DiscussionThreadResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DiscussionThreadResponse{}, err
	}

	course, err := s.authorizeMember(ctx, actor, courseID)
	if err != nil {
		return dto.DiscussionThreadResponse{}, err
	}

	sanitizedTitle, ok := s.cleanTitle(payload.Title)
	if !ok {
		return dto.DiscussionThreadResponse{}, ErrEmptyContent
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("discussion.author_id", int64(actor.ID)),
		attribute.Int64("discussion.course_id", int64(courseID)),
		attribute.String("discussion.role", actor.Role),
	}

	spanCtx, span := s.tracer.Start(ctx, "discussion.create", trace.WithAttributes(attrs...))
	defer span.End()

	thread := models.DiscussionThread{
		CourseID: course.ID,
		Title:    sanitizedTitle,
		Body:     strings.TrimSpace(s.sanitizer.Sanitize(payload.Body)),
		AuthorID: actor.ID,
		Metadata: datatypes.JSONMap{"created_by_role": normalizeRole(actor.Role)},
	}

	if err := s.repo.CreateThread(spanCtx, &thread); err != nil {
		span.RecordError(err)
		return dto.DiscussionThreadResponse{}, err
	}

	s.logger.Info().Uint("thread_id", thread.ID).Uint("author_id", actor.ID).Msg("discussion thread created")

	targets := s.mentionTargets(thread.Body, actor.ID)
	s.notify(spanCtx, targets, "discussion_mention", fmt.Sprintf("You were mentioned in '%s'", thread.Title))

	return dto.NewDiscussionThreadResponse(thread), nil
}

func (s *discussionService) UpdateThread(ctx context.Context, actor Actor, id uint, payload dto.DiscussionThreadUpdateRequest) (dto.DiscussionThreadResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DiscussionThreadResponse{}, err
	}

	thread, err := s.loadThread(ctx, id)
	if err != nil {
		return dto.DiscussionThreadResponse{}, err
	}

	if err := s.authorizeMutation(ctx, actor, thread); err != nil {
		return dto.DiscussionThreadResponse{}, err
	}

	if payload.Title != nil {
		sanitized, ok := s.cleanTitle(*payload.Title)
		if !ok {
			return dto.DiscussionThreadResponse{}, ErrEmptyContent
		}
		thread.Title = sanitized
	}
	if payload.Body != nil {
		thread.Body = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Body))
	}

	if err := s.repo.UpdateThread(ctx, &thread); err != nil {
		return dto.DiscussionThreadResponse{}, err
	}

	return dto.NewDiscussionThreadResponse(thread), nil
}

// cleanContent keeps UGC markup for storage; the boolean reports whether any
// text survives once markup is stripped.
func (s *discussionService) cleanContent(content string) (string, bool) {
	sanitized := strings.TrimSpace(s.sanitizer.Sanitize(content))
	return sanitized, strings.TrimSpace(s.textOnly.Sanitize(sanitized)) != ""
}

// Titles are plain text.
func (s *discussionService) cleanTitle(title string) (string, bool) {
	cleaned := strings.TrimSpace(s.textOnly.Sanitize(title))
	return cleaned, cleaned != ""
}

func (s *discussionService) DeleteThread(ctx context.Context, actor Actor, id uint) error {
	thread, err := s.loadThread(ctx, id)
	if err != nil {
		return err
	}

	if err := s.authorizeMutation(ctx, actor, thread); err != nil {
		return err
	}

	return s.repo.DeleteThread(ctx, id)
}

func (s *discussionService) ListReplies(ctx context.Context, actor Actor, threadID uint, limit, offset int) ([]dto.DiscussionReplyResponse, error) {
	thread, err := s.loadThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeMember(ctx, actor, thread.CourseID); err != nil {
		return nil, err
	}

	replies, err := s.repo.ListReplies(ctx, threadID, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewDiscussionReplyResponseSlice(replies), nil
}

func (s *discussionService) CreateReply(ctx context.Context, actor Actor, threadID uint, payload dto.DiscussionReplyCreateRequest) (dto.DiscussionReplyResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DiscussionReplyResponse{}, err
	}

	sanitized, ok := s.cleanContent(payload.Content)
	if !ok {
		return dto.DiscussionReplyResponse{}, ErrEmptyContent
	}

	thread, err := s.loadThread(ctx, threadID)
	if err != nil {
		return dto.DiscussionReplyResponse{}, err
	}
	if _, err := s.authorizeMember(ctx, actor, thread.CourseID); err != nil {
		return dto.DiscussionReplyResponse{}, err
	}

	reply := models.DiscussionReply{
		ThreadID:  thread.ID,
		AuthorID:  actor.ID,
		Content:   sanitized,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.CreateReply(ctx, &reply); err != nil {
		return dto.DiscussionReplyResponse{}, err
	}

	targets := s.mentionTargets(reply.Content, actor.ID)
	if thread.AuthorID != 0 && thread.AuthorID != actor.ID {
		targets[thread.AuthorID] = struct{}{}
	}
	s.notify(ctx, targets, "discussion_reply", fmt.Sprintf("New reply in thread '%s'", thread.Title))

	return dto.NewDiscussionReplyResponse(reply), nil
}

func (s *discussionService) loadThread(ctx context.Context, id uint) (models.DiscussionThread, error) {
	thread, err := s.repo.GetThread(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DiscussionThread{}, ErrThreadNotFound
		}
		return models.DiscussionThread{}, err
	}
	return thread, nil
}

// authorizeMember admits the course teacher, enrolled students and admins.
func (s *discussionService) authorizeMember(ctx context.Context, actor Actor, courseID uint) (models.Course, error) {
	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return models.Course{}, err
	}

	ok, err := isCourseMember(ctx, s.courses, actor, course)
	if err != nil {
		return models.Course{}, err
	}
	if !ok {
		return models.Course{}, ErrForbidden
	}
	return course, nil
}

func (s *discussionService) authorizeMutation(ctx context.Context, actor Actor, thread models.DiscussionThread) error {
	if actor.ID != 0 && actor.ID == thread.AuthorID {
		return nil
	}
	if actor.IsAdmin() {
		return nil
	}

	course, err := loadCourse(ctx, s.courses, thread.CourseID)
	if err != nil {
		return err
	}
	if actor.IsTeacher() && course.TeacherID == actor.ID {
		return nil
	}
	return ErrForbidden
}

func (s *discussionService) notify(ctx context.Context, targets map[uint]struct{}, kind, message string) {
	if s.notifications == nil {
		return
	}

	for userID := range targets {
		payload := dto.NotificationCreateRequest{
			UserID:  userID,
			Type:    kind,
			Message: message,
		}
		if _, err := s.notifications.Publish(ctx, payload); err != nil {
			s.logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to publish discussion notification")
		}
	}
}

func (s *discussionService) mentionTargets(content string, authorID uint) map[uint]struct{} {
	targets := make(map[uint]struct{})
	for _, match := range s.mentionPattern.FindAllStringSubmatch(content, -1) {
		if len(match) < 2 {
			continue
		}
		id, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil || id == 0 || uint(id) == authorID {
			continue
		}
		targets[uint(id)] = struct{}{}
	}
	return targets
}
