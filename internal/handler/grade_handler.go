package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// GradeHandler serves the /grades family: grading, un-grading and the grade
// read models.
type GradeHandler struct {
	service service.GradingService
	limiter fiber.Handler
	logger  zerolog.Logger
}

// NewGradeHandler constructs the handler. limiter guards the mutating routes
// and may be nil.
func NewGradeHandler(service service.GradingService, limiter fiber.Handler, logger zerolog.Logger) *GradeHandler {
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &GradeHandler{
		service: service,
		limiter: limiter,
		logger:  logger.With().Str("component", "grade_handler").Logger(),
	}
}

// Register attaches grade routes to the router group.
func (h *GradeHandler) Register(router fiber.Router) {
	router.Patch("/submission/:submissionId", h.limiter, h.grade)
	router.Patch("/submission/:submissionId/unmark", h.limiter, h.ungrade)
	router.Get("/submission/:submissionId", h.detail)
	router.Get("/submission/:submissionId/history", h.history)
	router.Get("/course/:courseId", h.courseGrade)
	router.Get("/assignment/:assignmentId/all", h.assignmentGrades)
}

func (h *GradeHandler) grade(c *fiber.Ctx) error {
	return gradeSubmission(c, h.service, h.logger)
}

func (h *GradeHandler) ungrade(c *fiber.Ctx) error {
	return ungradeSubmission(c, h.service, h.logger)
}

func (h *GradeHandler) detail(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	detail, err := h.service.Detail(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load grade")
	}
	return utils.SendSuccess(c, "grade retrieved", detail)
}

func (h *GradeHandler) history(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	entries, err := h.service.History(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load grade history")
	}
	return utils.SendSuccess(c, "grade history retrieved", entries)
}

func (h *GradeHandler) courseGrade(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}
	studentID, err := parseOptionalUintQuery(c, "student_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student_id")
	}

	grade, err := h.service.CourseGrade(withRequestContext(c), actorFromContext(c), courseID, studentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute course grade")
	}

	message := "course grade computed"
	if grade.Message != "" {
		message = grade.Message
	}
	return utils.SendSuccess(c, message, grade)
}

func (h *GradeHandler) assignmentGrades(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	grades, err := h.service.AssignmentGrades(withRequestContext(c), actorFromContext(c), assignmentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list assignment grades")
	}
	return utils.SendSuccess(c, "assignment grades retrieved", grades)
}

// gradeSubmission and ungradeSubmission are shared by the /grades and
// /gradecenter route families so both apply the same rules.
func gradeSubmission(c *fiber.Ctx, svc service.GradingService, logger zerolog.Logger) error {
	id, err := parseUintParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.GradeSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	detail, err := svc.Grade(withRequestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, logger, err, "failed to grade submission")
	}
	return utils.SendSuccess(c, "submission graded", detail)
}

func ungradeSubmission(c *fiber.Ctx, svc service.GradingService, logger zerolog.Logger) error {
	id, err := parseUintParam(c, "submissionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	detail, err := svc.Ungrade(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, logger, err, "failed to remove grade")
	}
	return utils.SendSuccess(c, "grade removed", detail)
}
