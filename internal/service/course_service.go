package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/grading"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// CourseService exposes course and enrolment use cases.
type CourseService interface {
	List(ctx context.Context, actor Actor, req dto.CourseListRequest) (dto.CourseListResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.CourseResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	Enroll(ctx context.Context, actor Actor, courseID uint) (dto.EnrollmentResponse, error)
	Unenroll(ctx context.Context, actor Actor, courseID uint) error
	ListStudents(ctx context.Context, actor Actor, courseID uint) ([]dto.EnrollmentResponse, error)
}

type courseService struct {
	repo          repository.CourseRepository
	users         repository.UserRepository
	validator     *validator.Validate
	activity      ActivityRecorder
	notifications NotificationPublisher
	logger        zerolog.Logger
	now           func() time.Time
}

// NewCourseService builds the course service.
func NewCourseService(repo repository.CourseRepository, users repository.UserRepository, validate *validator.Validate, activity ActivityRecorder, notifications NotificationPublisher, logger zerolog.Logger) CourseService {
	return &courseService{
		repo:          repo,
		users:         users,
		validator:     validate,
		activity:      activity,
		notifications: notifications,
		logger:        logger.With().Str("component", "course_service").Logger(),
		now:           time.Now,
	}
}

func (s *courseService) List(ctx context.Context, actor Actor, req dto.CourseListRequest) (dto.CourseListResponse, error) {
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	filter := repository.CourseFilter{
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		filter.TeacherID = uintPtr(actor.ID)
	case actor.IsStudent():
		filter.StudentID = uintPtr(actor.ID)
	default:
		return dto.CourseListResponse{}, ErrForbidden
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.CourseListResponse{}, err
	}

	items := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		items = append(items, dto.NewCourseResponse(course))
	}

	return dto.CourseListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *courseService) Get(ctx context.Context, actor Actor, id uint) (dto.CourseResponse, error) {
	course, err := loadCourse(ctx, s.repo, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	ok, err := isCourseMember(ctx, s.repo, actor, course)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	if !ok {
		return dto.CourseResponse{}, ErrForbidden
	}

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Create(ctx context.Context, actor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	teacherID, err := s.resolveOwner(ctx, actor, payload.TeacherID)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	if _, err := s.repo.GetByCode(ctx, code); err == nil {
		return dto.CourseResponse{}, ErrCourseCodeTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.CourseResponse{}, err
	}

	course := models.Course{
		Code:        code,
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		TeacherID:   teacherID,
	}
	if err := s.repo.Create(ctx, &course); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.CourseResponse{}, ErrCourseCodeTaken
		}
		return dto.CourseResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "course.created",
		EntityType: "course",
		EntityID:   uintPtr(course.ID),
		CourseID:   uintPtr(course.ID),
		Metadata:   map[string]interface{}{"code": course.Code, "teacher_id": course.TeacherID},
	})

	created, err := s.repo.GetByID(ctx, course.ID)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	return dto.NewCourseResponse(created), nil
}

func (s *courseService) resolveOwner(ctx context.Context, actor Actor, requested *uint) (uint, error) {
	switch {
	case actor.IsTeacher():
		if requested != nil && *requested != actor.ID {
			return 0, ErrForbidden
		}
		return actor.ID, nil
	case actor.IsAdmin():
		if requested == nil {
			return 0, ErrTeacherRequired
		}
		teacher, err := s.users.GetByID(ctx, *requested)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, ErrInvalidTeacher
			}
			return 0, err
		}
		if models.NormalizeRole(teacher.Role) != models.RoleTeacher {
			return 0, ErrInvalidTeacher
		}
		return teacher.ID, nil
	default:
		return 0, ErrForbidden
	}
}

func (s *courseService) Update(ctx context.Context, actor Actor, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	if payload.Title != nil {
		course.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		course.Description = strings.TrimSpace(*payload.Description)
	}

	if err := s.repo.Update(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "course.updated",
		EntityType: "course",
		EntityID:   uintPtr(course.ID),
		CourseID:   uintPtr(course.ID),
	})

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Delete(ctx context.Context, actor Actor, id uint) error {
	course, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, course.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "course.deleted",
		EntityType: "course",
		EntityID:   uintPtr(course.ID),
		CourseID:   uintPtr(course.ID),
		Metadata:   map[string]interface{}{"code": course.Code},
	})

	return nil
}

func (s *courseService) Enroll(ctx context.Context, actor Actor, courseID uint) (dto.EnrollmentResponse, error) {
	if !actor.IsStudent() {
		return dto.EnrollmentResponse{}, ErrForbidden
	}

	course, err := loadCourse(ctx, s.repo, courseID)
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}

	enrolled, err := s.repo.IsEnrolled(ctx, course.ID, actor.ID)
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}
	if enrolled {
		return dto.EnrollmentResponse{}, ErrAlreadyEnrolled
	}

	enrollment := models.Enrollment{
		CourseID:   course.ID,
		StudentID:  actor.ID,
		EnrolledAt: s.now().UTC(),
	}
	if err := s.repo.Enroll(ctx, &enrollment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.EnrollmentResponse{}, ErrAlreadyEnrolled
		}
		return dto.EnrollmentResponse{}, err
	}

	if s.notifications != nil {
		if _, err := s.notifications.Publish(ctx, dto.NotificationCreateRequest{
			UserID:  course.TeacherID,
			Type:    "course_enrollment",
			Message: fmt.Sprintf("A new student joined %s", course.Title),
		}); err != nil {
			s.logger.Warn().Err(err).Uint("course_id", course.ID).Msg("failed to notify teacher about enrolment")
		}
	}

	return dto.NewEnrollmentResponse(enrollment), nil
}

func (s *courseService) Unenroll(ctx context.Context, actor Actor, courseID uint) error {
	if !actor.IsStudent() {
		return ErrForbidden
	}

	if _, err := loadCourse(ctx, s.repo, courseID); err != nil {
		return err
	}

	if err := s.repo.Unenroll(ctx, courseID, actor.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotEnrolled
		}
		return err
	}
	return nil
}

func (s *courseService) ListStudents(ctx context.Context, actor Actor, courseID uint) ([]dto.EnrollmentResponse, error) {
	course, err := s.loadManaged(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	roster, err := s.repo.ListStudents(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewEnrollmentResponseSlice(roster), nil
}

func (s *courseService) loadManaged(ctx context.Context, actor Actor, id uint) (models.Course, error) {
	course, err := loadCourse(ctx, s.repo, id)
	if err != nil {
		return models.Course{}, err
	}
	if !grading.CanManageCourse(actor.ID, actor.Role, course.TeacherID) {
		return models.Course{}, ErrForbidden
	}
	return course, nil
}

func loadCourse(ctx context.Context, repo repository.CourseRepository, id uint) (models.Course, error) {
	course, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}
	return course, nil
}

// isCourseMember admits the owning teacher, admins and enrolled students.
func isCourseMember(ctx context.Context, repo repository.CourseRepository, actor Actor, course models.Course) (bool, error) {
	if grading.CanManageCourse(actor.ID, actor.Role, course.TeacherID) {
		return true, nil
	}
	if !actor.IsStudent() {
		return false, nil
	}
	return repo.IsEnrolled(ctx, course.ID, actor.ID)
}
