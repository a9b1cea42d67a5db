package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/grading"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// AssignmentService exposes assignment domain use cases.
type AssignmentService interface {
	ListByCourse(ctx context.Context, actor Actor, courseID uint, sort string) ([]dto.AssignmentResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error)
	Create(ctx context.Context, actor Actor, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error)
	Update(ctx context.Context, actor Actor, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	courses   repository.CourseRepository
	validator *validator.Validate
	activity  ActivityRecorder
	cache     CourseGradeCache
	logger    zerolog.Logger
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(repo repository.AssignmentRepository, courses repository.CourseRepository, validate *validator.Validate, activity ActivityRecorder, cache CourseGradeCache, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:      repo,
		courses:   courses,
		validator: validate,
		activity:  activity,
		cache:     cache,
		logger:    logger.With().Str("component", "assignment_service").Logger(),
	}
}

func (s *assignmentService) ListByCourse(ctx context.Context, actor Actor, courseID uint, sort string) ([]dto.AssignmentResponse, error) {
	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return nil, err
	}
	ok, err := isCourseMember(ctx, s.courses, actor, course)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	assignments, err := s.repo.ListByCourse(ctx, repository.AssignmentFilter{CourseID: course.ID, Sort: sort})
	if err != nil {
		return nil, err
	}
	return dto.NewAssignmentResponseSlice(assignments), nil
}

func (s *assignmentService) Get(ctx context.Context, actor Actor, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	ok, err := isCourseMember(ctx, s.courses, actor, assignment.Course)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if !ok {
		return dto.AssignmentResponse{}, ErrForbidden
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Create(ctx context.Context, actor Actor, payload dto.AssignmentCreateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	course, err := loadCourse(ctx, s.courses, payload.CourseID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if !grading.CanManageCourse(actor.ID, actor.Role, course.TeacherID) {
		return dto.AssignmentResponse{}, ErrForbidden
	}

	dueDate, err := dto.ParseDueDate(payload.DueDate)
	if err != nil {
		return dto.AssignmentResponse{}, ErrInvalidDueDate
	}

	assignment := models.Assignment{
		CourseID:    course.ID,
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		MaxPoints:   payload.MaxPoints,
		DueDate:     dueDate,
	}
	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.invalidate(ctx, course.ID)
	s.record(ctx, actor, "assignment.created", assignment, map[string]interface{}{"max_points": assignment.MaxPoints})

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, actor Actor, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	if payload.Title != nil {
		assignment.Title = strings.TrimSpace(*payload.Title)
	}
	if payload.Description != nil {
		assignment.Description = strings.TrimSpace(*payload.Description)
	}
	if payload.DueDate != nil {
		dueDate, err := dto.ParseDueDate(*payload.DueDate)
		if err != nil {
			return dto.AssignmentResponse{}, ErrInvalidDueDate
		}
		assignment.DueDate = dueDate
	}
	if payload.MaxPoints != nil && *payload.MaxPoints != assignment.MaxPoints {
		highest, err := s.repo.HighestGrade(ctx, assignment.ID)
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
		if highest != nil && *highest > *payload.MaxPoints {
			return dto.AssignmentResponse{}, ErrMaxPointsBelowGrade
		}
		assignment.MaxPoints = *payload.MaxPoints
	}

	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.invalidate(ctx, assignment.CourseID)
	s.record(ctx, actor, "assignment.updated", assignment, map[string]interface{}{"max_points": assignment.MaxPoints})

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Delete(ctx context.Context, actor Actor, id uint) error {
	assignment, err := s.loadManaged(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, assignment.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	s.invalidate(ctx, assignment.CourseID)
	s.record(ctx, actor, "assignment.deleted", assignment, nil)
	return nil
}

func (s *assignmentService) load(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (s *assignmentService) loadManaged(ctx context.Context, actor Actor, id uint) (models.Assignment, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return models.Assignment{}, err
	}
	if assignment.Course.ID == 0 {
		return models.Assignment{}, ErrCourseNotFound
	}
	if !grading.CanManageCourse(actor.ID, actor.Role, assignment.Course.TeacherID) {
		return models.Assignment{}, ErrForbidden
	}
	return assignment, nil
}

func (s *assignmentService) invalidate(ctx context.Context, courseID uint) {
	if s.cache != nil {
		s.cache.InvalidateCourse(ctx, courseID)
	}
}

func (s *assignmentService) record(ctx context.Context, actor Actor, action string, assignment models.Assignment, metadata map[string]interface{}) {
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "assignment",
		EntityID:   uintPtr(assignment.ID),
		CourseID:   uintPtr(assignment.CourseID),
		Metadata:   metadata,
	})
}
