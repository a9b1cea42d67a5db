package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// UserService provisions and lists accounts.
type UserService interface {
	Create(ctx context.Context, actor Actor, payload dto.UserCreateRequest) (dto.UserResponse, error)
	List(ctx context.Context, req dto.UserListRequest) (dto.UserListResponse, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewUserService constructs the account service.
func NewUserService(repo repository.UserRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) Create(ctx context.Context, actor Actor, payload dto.UserCreateRequest) (dto.UserResponse, error) {
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	payload.Role = models.NormalizeRole(payload.Role)
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Name:  strings.TrimSpace(payload.Name),
		Email: payload.Email,
		Role:  payload.Role,
	}
	if err := s.repo.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrEmailTaken
		}
		return dto.UserResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "user.created",
		EntityType: "user",
		EntityID:   uintPtr(user.ID),
		Metadata:   map[string]interface{}{"role": user.Role, "email": user.Email},
	})

	return dto.NewUserResponse(user), nil
}

func (s *userService) List(ctx context.Context, req dto.UserListRequest) (dto.UserListResponse, error) {
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	users, total, err := s.repo.List(ctx, repository.UserFilter{
		Role:     req.Role,
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return dto.UserListResponse{}, err
	}

	items := make([]dto.UserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, dto.NewUserResponse(user))
	}

	return dto.UserListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}
