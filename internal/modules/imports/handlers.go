package imports

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/wappdesk/backend/internal/dto"
	"github.com/wappdesk/backend/internal/services"
	"github.com/wappdesk/backend/internal/tenant"
)

// Handler exposes the import pipeline over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Upload(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	userID := tenant.UserID(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "A CSV file is required")
	}
	importType := c.FormValue("type", TypeUser)

	file, err := fileHeader.Open()
	if err != nil {
		return badRequest(c, "Could not read the uploaded file")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return badRequest(c, "Could not read the uploaded file")
	}

	res, err := h.service.Upload(c.Context(), clientID, userID, importType, fileHeader.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidType), errors.Is(err, ErrEmptyFile),
			errors.Is(err, ErrBadCSV), errors.Is(err, ErrNoHeaders):
			return badRequest(c, err.Error())
		case errors.Is(err, ErrFileTooLarge):
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		default:
			return serverError(c, "Failed to process upload")
		}
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *Handler) List(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	res, err := h.service.List(clientID, page, limit)
	if err != nil {
		return serverError(c, "Failed to fetch imports")
	}
	return c.JSON(res)
}

func (h *Handler) Get(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid import ID")
	}
	imp, err := h.service.Get(clientID, id)
	if err != nil {
		return importError(c, err, "Failed to fetch import")
	}
	return c.JSON(imp)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid import ID")
	}
	if err := h.service.Delete(c.Context(), clientID, id); err != nil {
		return importError(c, err, "Failed to delete import")
	}
	return c.JSON(fiber.Map{"message": "Import deleted"})
}

func (h *Handler) File(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid import ID")
	}
	data, name, err := h.service.File(c.Context(), clientID, id)
	if err != nil {
		return importError(c, err, "Failed to fetch file")
	}
	c.Set("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Set("Content-Type", "text/csv")
	return c.Send(data)
}

func (h *Handler) Sample(c *fiber.Ctx) error {
	data, name := SampleCSV(c.Query("type", TypeUser))
	c.Set("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Set("Content-Type", "text/csv")
	return c.Send(data)
}

func (h *Handler) ApplyMapping(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid import ID")
	}

	var req struct {
		Mapping      map[string]string `json:"mapping"`
		SaveTemplate string            `json:"save_template,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	imp, err := h.service.ApplyMapping(c.Context(), clientID, id, req.Mapping)
	if err != nil {
		switch {
		case errors.Is(err, ErrMappingPhone), errors.Is(err, ErrMappingName),
			errors.Is(err, ErrEmptyFile), errors.Is(err, ErrBadCSV):
			return badRequest(c, err.Error())
		default:
			return importError(c, err, "Failed to apply mapping")
		}
	}

	if req.SaveTemplate != "" {
		var headers []string
		if err := json.Unmarshal(imp.Headers, &headers); err == nil {
			if _, err := h.service.Templates().Save(clientID, req.SaveTemplate, imp.Type == TypeFoh, req.Mapping, headers); err != nil {
				return badRequest(c, err.Error())
			}
		}
	}
	return c.JSON(imp)
}

func (h *Handler) Rows(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid import ID")
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	onlyErrors := c.Query("errors", "") == "true"

	res, err := h.service.Rows(clientID, id, page, limit, onlyErrors)
	if err != nil {
		return importError(c, err, "Failed to fetch rows")
	}
	return c.JSON(res)
}

func (h *Handler) UpdateRow(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	importID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid import ID")
	}
	rowID, err := uuid.Parse(c.Params("rowId"))
	if err != nil {
		return badRequest(c, "Invalid row ID")
	}

	var req UpdateRowRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	imp, err := h.service.UpdateRow(clientID, importID, rowID, &req)
	if err != nil {
		return importError(c, err, "Failed to update row")
	}
	return c.JSON(imp)
}

func (h *Handler) DeleteRow(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	importID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid import ID")
	}
	rowID, err := uuid.Parse(c.Params("rowId"))
	if err != nil {
		return badRequest(c, "Invalid row ID")
	}
	imp, err := h.service.DeleteRow(clientID, importID, rowID)
	if err != nil {
		return importError(c, err, "Failed to delete row")
	}
	return c.JSON(imp)
}

func (h *Handler) Commit(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid import ID")
	}
	imp, err := h.service.Commit(clientID, id)
	if err != nil {
		if errors.Is(err, services.ErrSeatLimit) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		}
		return importError(c, err, "Failed to start commit")
	}
	return c.Status(fiber.StatusAccepted).JSON(imp)
}

func (h *Handler) Cancel(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid import ID")
	}
	imp, err := h.service.Cancel(clientID, id)
	if err != nil {
		if errors.Is(err, ErrAlreadyDone) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		}
		return importError(c, err, "Failed to cancel import")
	}
	return c.JSON(imp)
}

func (h *Handler) ListTemplates(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	templates, err := h.service.Templates().List(clientID)
	if err != nil {
		return serverError(c, "Failed to fetch templates")
	}
	return c.JSON(fiber.Map{"templates": templates})
}

func (h *Handler) SaveTemplate(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	var req struct {
		Name    string            `json:"name"`
		IsFoh   bool              `json:"is_foh"`
		Mapping map[string]string `json:"mapping"`
		Headers []string          `json:"headers"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	tpl, err := h.service.Templates().Save(clientID, req.Name, req.IsFoh, req.Mapping, req.Headers)
	if err != nil {
		switch {
		case errors.Is(err, ErrTemplateName), errors.Is(err, ErrTemplateMapping), errors.Is(err, ErrTemplateHeaders):
			return badRequest(c, err.Error())
		default:
			return serverError(c, "Failed to save template")
		}
	}
	return c.Status(fiber.StatusCreated).JSON(tpl)
}

func (h *Handler) DeleteTemplate(c *fiber.Ctx) error {
	clientID := tenant.GetClientID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid template ID")
	}
	if err := h.service.Templates().Delete(clientID, id); err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		}
		return serverError(c, "Failed to delete template")
	}
	return c.JSON(fiber.Map{"message": "Template deleted"})
}

func importError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, ErrImportNotFound), errors.Is(err, ErrRowNotFound):
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
