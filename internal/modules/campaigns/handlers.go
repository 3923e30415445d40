package campaigns

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/wappdesk/backend/internal/dto"
	"github.com/wappdesk/backend/internal/tenant"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	userID := tenant.UserID(c)

	var req CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	campaign, err := h.service.Create(clientID, userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrNameRequired), errors.Is(err, ErrContentRequired):
			return badRequest(c, err.Error())
		default:
			return serverError(c, "Failed to create campaign")
		}
	}
	return c.Status(fiber.StatusCreated).JSON(campaign)
}

func (h *Handler) List(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	status := c.Query("status", "")

	res, err := h.service.List(clientID, page, limit, status)
	if err != nil {
		return serverError(c, "Failed to fetch campaigns")
	}
	return c.JSON(res)
}

func (h *Handler) Get(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid campaign ID")
	}
	campaign, err := h.service.Get(clientID, id)
	if err != nil {
		return campaignError(c, err, "Failed to fetch campaign")
	}
	return c.JSON(campaign)
}

func (h *Handler) AddRecipients(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid campaign ID")
	}
	var req AddRecipientsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	campaign, err := h.service.AddRecipients(clientID, id, &req)
	if err != nil {
		return campaignError(c, err, "Failed to add recipients")
	}
	return c.JSON(campaign)
}

func (h *Handler) Recipients(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid campaign ID")
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	status := c.Query("status", "")

	recipients, total, err := h.service.Recipients(clientID, id, page, limit, status)
	if err != nil {
		return campaignError(c, err, "Failed to fetch recipients")
	}
	return c.JSON(fiber.Map{"recipients": recipients, "total": total, "page": page, "limit": limit})
}

func (h *Handler) Queue(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid campaign ID")
	}
	campaign, err := h.service.Queue(clientID, id)
	if err != nil {
		if errors.Is(err, ErrNoRecipients) {
			return badRequest(c, err.Error())
		}
		return campaignError(c, err, "Failed to queue campaign")
	}
	return c.Status(fiber.StatusAccepted).JSON(campaign)
}

func (h *Handler) Cancel(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid campaign ID")
	}
	campaign, err := h.service.Cancel(clientID, id)
	if err != nil {
		if errors.Is(err, ErrAlreadyDone) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		}
		return campaignError(c, err, "Failed to cancel campaign")
	}
	return c.JSON(campaign)
}

func campaignError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, ErrCampaignNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
	case errors.Is(err, ErrBadStatus):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: fallback})
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: msg})
}

func serverError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: msg})
}
