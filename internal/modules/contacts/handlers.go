package contacts

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/wappdesk/backend/internal/dto"
	"github.com/wappdesk/backend/internal/services"
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
	var req ProspectRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	prospect, err := h.service.Create(clientID, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPhone):
			return badRequest(c, err.Error())
		case errors.Is(err, ErrPhoneTaken):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		default:
			return serverError(c, "Failed to create prospect")
		}
	}
	return c.Status(fiber.StatusCreated).JSON(prospect)
}

func (h *Handler) List(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	search := c.Query("search", "")
	source := c.Query("source", "")

	res, err := h.service.List(clientID, page, limit, search, source)
	if err != nil {
		return serverError(c, "Failed to fetch prospects")
	}
	return c.JSON(res)
}

func (h *Handler) Get(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid prospect ID")
	}
	prospect, err := h.service.Get(clientID, id)
	if err != nil {
		return prospectError(c, err, "Failed to fetch prospect")
	}
	return c.JSON(prospect)
}

func (h *Handler) Update(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid prospect ID")
	}
	var req ProspectRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	prospect, err := h.service.Update(clientID, id, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPhone):
			return badRequest(c, err.Error())
		case errors.Is(err, ErrPhoneTaken):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		default:
			return prospectError(c, err, "Failed to update prospect")
		}
	}
	return c.JSON(prospect)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid prospect ID")
	}
	if err := h.service.Delete(clientID, id); err != nil {
		return prospectError(c, err, "Failed to delete prospect")
	}
	return c.JSON(fiber.Map{"message": "Prospect deleted"})
}

func (h *Handler) Promote(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid prospect ID")
	}
	var req services.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	user, err := h.service.Promote(clientID, id, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyPromoted):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		case errors.Is(err, services.ErrSeatLimit):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		case errors.Is(err, services.ErrEmailTaken), errors.Is(err, services.ErrPhoneTaken):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		case errors.Is(err, services.ErrNameRequired), errors.Is(err, services.ErrInvalidEmail),
			errors.Is(err, services.ErrInvalidPhone), errors.Is(err, services.ErrInvalidRole):
			return badRequest(c, err.Error())
		default:
			return prospectError(c, err, "Failed to promote prospect")
		}
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func prospectError(c *fiber.Ctx, err error, fallback string) error {
	if errors.Is(err, ErrProspectNotFound) {
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
