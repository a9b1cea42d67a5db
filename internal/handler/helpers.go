package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

var errInvalidIdentifier = errors.New("invalid identifier")

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// parseOptionalUintQuery returns nil when the key is absent.
func parseOptionalUintQuery(c *fiber.Ctx, key string) (*uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return nil, errInvalidIdentifier
	}
	id := uint(parsed)
	return &id, nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := strings.TrimSpace(c.Params(name))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errInvalidIdentifier
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:   userIDFromContext(c),
		Role: userRoleFromContext(c),
	}
}

func withRequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[toSnake(fieldErr.Field())] = fieldErr.Tag()
	}
	return details
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrUserNotFound, fiber.StatusNotFound},
	{service.ErrCourseNotFound, fiber.StatusNotFound},
	{service.ErrAssignmentNotFound, fiber.StatusNotFound},
	{service.ErrSubmissionNotFound, fiber.StatusNotFound},
	{service.ErrThreadNotFound, fiber.StatusNotFound},
	{service.ErrNotificationNotFound, fiber.StatusNotFound},

	{service.ErrForbidden, fiber.StatusForbidden},
	{service.ErrNotEnrolled, fiber.StatusForbidden},
	{service.ErrGradeOutOfRange, fiber.StatusForbidden},
	{service.ErrGradeWindowClosed, fiber.StatusForbidden},

	{service.ErrNotGraded, fiber.StatusBadRequest},
	{service.ErrStudentRequired, fiber.StatusBadRequest},
	{service.ErrTeacherRequired, fiber.StatusBadRequest},
	{service.ErrInvalidTeacher, fiber.StatusBadRequest},
	{service.ErrInvalidDueDate, fiber.StatusBadRequest},
	{service.ErrEmptySubmission, fiber.StatusBadRequest},
	{service.ErrEmptyContent, fiber.StatusBadRequest},
	{service.ErrUnsupportedFileType, fiber.StatusUnsupportedMediaType},
	{service.ErrUploadUnavailable, fiber.StatusServiceUnavailable},

	{service.ErrEmailTaken, fiber.StatusConflict},
	{service.ErrCourseCodeTaken, fiber.StatusConflict},
	{service.ErrAlreadyEnrolled, fiber.StatusConflict},
	{service.ErrMaxPointsBelowGrade, fiber.StatusConflict},
	{service.ErrSubmissionLocked, fiber.StatusConflict},
}

// respondError maps service errors onto the JSON envelope. Anything unknown
// is logged and reported as a generic 500 with fallback as the message.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	if isValidationError(err) {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	}

	for _, mapping := range errorStatuses {
		if errors.Is(err, mapping.err) {
			return utils.SendError(c, mapping.status, err.Error())
		}
	}

	requestLogger(logger, c).Error().
		Err(err).
		Uint("user_id", userIDFromContext(c)).
		Str("path", c.Path()).
		Msg(fallback)
	return utils.SendError(c, fiber.StatusInternalServerError, fallback)
}
