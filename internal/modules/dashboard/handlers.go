package dashboard

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wappdesk/backend/internal/dto"
	"github.com/wappdesk/backend/internal/tenant"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func parseRange(c *fiber.Ctx) (time.Time, time.Time) {
	var from, to time.Time
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			from = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			to = t
		}
	}
	return from, to
}

func (h *Handler) Overview(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	from, to := parseRange(c)

	ov, err := h.service.Compute(c.Context(), clientID, from, to)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: "Failed to compute dashboard"})
	}
	return c.JSON(ov)
}

func (h *Handler) Export(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	from, to := parseRange(c)

	data, name, err := h.service.ExportCSV(c.Context(), clientID, from, to)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: "Failed to export dashboard"})
	}
	c.Set("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Set("Content-Type", "text/csv")
	return c.Send(data)
}
