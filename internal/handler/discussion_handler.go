package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// DiscussionHandler provides HTTP endpoints for course discussion threads.
type DiscussionHandler struct {
	service service.DiscussionService
	logger  zerolog.Logger
}

// NewDiscussionHandler constructs a handler instance.
func NewDiscussionHandler(service service.DiscussionService, logger zerolog.Logger) *DiscussionHandler {
	return &DiscussionHandler{
		service: service,
		logger:  logger.With().Str("component", "discussion_handler").Logger(),
	}
}

// Register binds the discussion routes onto the /api group.
func (h *DiscussionHandler) Register(router fiber.Router) {
	router.Get("/courses/:courseId/threads", h.listThreads)
	router.Post("/courses/:courseId/threads", h.createThread)

	router.Get("/threads/:id", h.getThread)
	router.Put("/threads/:id", h.updateThread)
	router.Delete("/threads/:id", h.deleteThread)
	router.Get("/threads/:id/replies", h.listReplies)
	router.Post("/threads/:id/replies", h.createReply)
}

func (h *DiscussionHandler) listThreads(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}

	threads, err := h.service.ListThreads(withRequestContext(c), actorFromContext(c), courseID, page, pageSize)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list threads")
	}
	return utils.OK(c, threads.Items, "threads", threads.Pagination)
}

func (h *DiscussionHandler) getThread(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid thread id")
	}

	thread, err := h.service.GetThread(withRequestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load thread")
	}
	return utils.SendSuccess(c, "thread", thread)
}

func (h *DiscussionHandler) createThread(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid course id")
	}

	var payload dto.DiscussionThreadCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	thread, err := h.service.CreateThread(withRequestContext(c), actorFromContext(c), courseID, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create thread")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "thread created", thread)
}

func (h *DiscussionHandler) updateThread(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid thread id")
	}

	var payload dto.DiscussionThreadUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	thread, err := h.service.UpdateThread(withRequestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update thread")
	}
	return utils.SendSuccess(c, "thread updated", thread)
}

func (h *DiscussionHandler) deleteThread(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid thread id")
	}

	if err := h.service.DeleteThread(withRequestContext(c), actorFromContext(c), id); err != nil {
		return respondError(c, h.logger, err, "failed to delete thread")
	}
	return utils.SendSuccess(c, "thread deleted", nil)
}

func (h *DiscussionHandler) listReplies(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid thread id")
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	replies, err := h.service.ListReplies(withRequestContext(c), actorFromContext(c), id, limit, offset)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list replies")
	}
	return utils.SendSuccess(c, "replies", replies)
}

func (h *DiscussionHandler) createReply(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid thread id")
	}

	var payload dto.DiscussionReplyCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	reply, err := h.service.CreateReply(withRequestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create reply")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "reply created", reply)
}
