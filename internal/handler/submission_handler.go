package handler

import (
	"errors"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// SubmissionHandler manages submission endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
	router.Get("/mine", h.mine)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.withdraw)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	var (
		payload dto.SubmissionCreateRequest
		file    *multipart.FileHeader
	)

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		assignmentID, err := parseFormUint(c, "assignment_id")
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		payload.AssignmentID = assignmentID
		if comment := c.FormValue("comment"); comment != "" {
			payload.Comment = &comment
		}

		file, err = c.FormFile("file")
		if err != nil && !errors.Is(err, fasthttp.ErrMissingFile) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid file")
		}
	} else if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, created, err := h.service.Submit(withRequestContext(c), actorFromContext(c), payload, file)
	if err != nil {
		return respondError(c, h.logger, err, "failed to save submission")
	}

	if created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
	}
	return utils.SendSuccess(c, "submission updated", submission)
}

func (h *SubmissionHandler) mine(c *fiber.Ctx) error {
	courseID, err := parseOptionalUintQuery(c, "course_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course_id")
	}
	assignmentID, err := parseOptionalUintQuery(c, "assignment_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment_id")
	}

	submissions, err := h.service.ListMine(withRequestContext(c), actorFromContext(c), dto.SubmissionListRequest{
		CourseID:     courseID,
		AssignmentID: assignmentID,
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list submissions")
	}
	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	submission, err := h.service.Get(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load submission")
	}
	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) withdraw(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	if err := h.service.Withdraw(withRequestContext(c), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to withdraw submission")
	}
	return utils.SendSuccess(c, "submission withdrawn", nil)
}

func parseFormUint(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.FormValue(key))
	if value == "" {
		return 0, errors.New("missing " + key)
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}
