package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// GradeCenterHandler exposes the teacher grading workspace.
type GradeCenterHandler struct {
	service service.GradingService
	limiter fiber.Handler
	logger  zerolog.Logger
}

// NewGradeCenterHandler constructs the handler.
func NewGradeCenterHandler(service service.GradingService, limiter fiber.Handler, logger zerolog.Logger) *GradeCenterHandler {
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &GradeCenterHandler{
		service: service,
		limiter: limiter,
		logger:  logger.With().Str("component", "gradecenter_handler").Logger(),
	}
}

// Register attaches grade center routes.
func (h *GradeCenterHandler) Register(router fiber.Router) {
	router.Get("/pending", h.pending)
	router.Get("/course/:courseId", h.course)
	router.Patch("/submission/:submissionId", h.limiter, h.grade)
	router.Delete("/submission/:submissionId", h.limiter, h.ungrade)
}

func (h *GradeCenterHandler) pending(c *fiber.Ctx) error {
	courseID, err := parseOptionalUintQuery(c, "course_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course_id")
	}

	items, err := h.service.Pending(withRequestContext(c), actorFromContext(c), dto.GradeCenterListRequest{CourseID: courseID})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list pending submissions")
	}
	return utils.OK(c, items, "pending submissions", fiber.Map{"count": len(items)})
}

func (h *GradeCenterHandler) course(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	items, err := h.service.CourseGradeCenter(withRequestContext(c), actorFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load grade center")
	}
	return utils.OK(c, items, "grade center", fiber.Map{"count": len(items)})
}

func (h *GradeCenterHandler) grade(c *fiber.Ctx) error {
	return gradeSubmission(c, h.service, h.logger)
}

func (h *GradeCenterHandler) ungrade(c *fiber.Ctx) error {
	return ungradeSubmission(c, h.service, h.logger)
}
