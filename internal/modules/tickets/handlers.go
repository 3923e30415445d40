package tickets

import (
	"errors"
	"io"
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

func (h *Handler) List(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	userID := tenant.UserID(c)
	role := tenant.GetRole(c)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	status := c.Query("status", "")
	search := c.Query("search", "")

	res, err := h.service.List(clientID, userID, role, page, limit, status, search)
	if err != nil {
		return serverError(c, "Failed to fetch tickets")
	}
	return c.JSON(res)
}

func (h *Handler) Get(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid ticket ID")
	}
	ticket, err := h.service.Get(clientID, id)
	if err != nil {
		return ticketError(c, err, "Failed to fetch ticket")
	}
	return c.JSON(ticket)
}

func (h *Handler) Assign(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid ticket ID")
	}
	var req struct {
		AssigneeID *uuid.UUID `json:"assignee_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	ticket, err := h.service.Assign(clientID, id, req.AssigneeID)
	if err != nil {
		if errors.Is(err, ErrAssigneeInvalid) {
			return badRequest(c, err.Error())
		}
		return ticketError(c, err, "Failed to assign ticket")
	}
	return c.JSON(ticket)
}

func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid ticket ID")
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	ticket, err := h.service.UpdateStatus(clientID, id, req.Status)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			return badRequest(c, err.Error())
		}
		return ticketError(c, err, "Failed to update ticket")
	}
	return c.JSON(ticket)
}

func (h *Handler) Messages(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid ticket ID")
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	messages, total, err := h.service.Messages(clientID, id, page, limit)
	if err != nil {
		return ticketError(c, err, "Failed to fetch messages")
	}
	return c.JSON(fiber.Map{"messages": messages, "total": total, "page": page, "limit": limit})
}

func (h *Handler) Send(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	userID := tenant.UserID(c)
	role := tenant.GetRole(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid ticket ID")
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	msg, err := h.service.Send(clientID, id, userID, role, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyMessage):
			return badRequest(c, err.Error())
		case errors.Is(err, ErrNotYourTicket):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		case errors.Is(err, ErrNoSenderNumber):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		case msg != nil:
			// Stored but not delivered; surface the failed message.
			return c.Status(fiber.StatusBadGateway).JSON(msg)
		default:
			return ticketError(c, err, "Failed to send message")
		}
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *Handler) AttachMedia(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	userID := tenant.UserID(c)
	role := tenant.GetRole(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid ticket ID")
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "A file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "Could not read the uploaded file")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return badRequest(c, "Could not read the uploaded file")
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	msg, err := h.service.AttachMedia(c.Context(), clientID, id, userID, role, fileHeader.Filename, data, contentType)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotYourTicket):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		case errors.Is(err, ErrNoSenderNumber):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		case msg != nil:
			return c.Status(fiber.StatusBadGateway).JSON(msg)
		default:
			return ticketError(c, err, "Failed to attach media")
		}
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *Handler) Media(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	ticketID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid ticket ID")
	}
	messageID, err := uuid.Parse(c.Params("messageId"))
	if err != nil {
		return badRequest(c, "Invalid message ID")
	}
	data, contentType, err := h.service.Media(c.Context(), clientID, ticketID, messageID)
	if err != nil {
		return ticketError(c, err, "Failed to fetch media")
	}
	c.Set("Content-Type", contentType)
	return c.Send(data)
}

func ticketError(c *fiber.Ctx, err error, fallback string) error {
	if errors.Is(err, ErrTicketNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: fallback})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: msg})
}

func serverError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: msg})
}
