package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// CourseHandler exposes course, roster and enrolment endpoints.
type CourseHandler struct {
	courses     service.CourseService
	assignments service.AssignmentService
	logger      zerolog.Logger
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(courses service.CourseService, assignments service.AssignmentService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		courses:     courses,
		assignments: assignments,
		logger:      logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register attaches course routes to the router group.
func (h *CourseHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/enroll", h.enroll)
	router.Delete("/:id/enroll", h.unenroll)
	router.Get("/:id/students", h.students)
	router.Get("/:id/assignments", h.listAssignments)
}

func (h *CourseHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	result, err := h.courses.List(withRequestContext(c), actorFromContext(c), dto.CourseListRequest{
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list courses")
	}
	return utils.OK(c, result.Items, "courses retrieved", result.Pagination)
}

func (h *CourseHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	course, err := h.courses.Get(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load course")
	}
	return utils.SendSuccess(c, "course retrieved", course)
}

func (h *CourseHandler) create(c *fiber.Ctx) error {
	var payload dto.CourseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.courses.Create(withRequestContext(c), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create course")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

func (h *CourseHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	var payload dto.CourseUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	course, err := h.courses.Update(withRequestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update course")
	}
	return utils.SendSuccess(c, "course updated", course)
}

func (h *CourseHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	if err := h.courses.Delete(withRequestContext(c), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to delete course")
	}
	return utils.SendSuccess(c, "course deleted", nil)
}

func (h *CourseHandler) enroll(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	enrollment, err := h.courses.Enroll(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to enroll")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "enrolled", enrollment)
}

func (h *CourseHandler) unenroll(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	if err := h.courses.Unenroll(withRequestContext(c), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to leave course")
	}
	return utils.SendSuccess(c, "unenrolled", nil)
}

func (h *CourseHandler) students(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	roster, err := h.courses.ListStudents(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list students")
	}
	return utils.SendSuccess(c, "students retrieved", roster)
}

func (h *CourseHandler) listAssignments(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	assignments, err := h.assignments.ListByCourse(withRequestContext(c), actorFromContext(c), id, c.Query("sort"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list assignments")
	}
	return utils.SendSuccess(c, "assignments retrieved", assignments)
}
