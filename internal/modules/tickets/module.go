package tickets

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wappdesk/backend/internal/modules"
)

// ModuleImpl wires ticket conversations into the app.
type ModuleImpl struct{}

func NewModule() *ModuleImpl {
	return &ModuleImpl{}
}

func (m *ModuleImpl) ID() string {
	return "tickets"
}

func (m *ModuleImpl) Models() []interface{} {
	return []interface{}{&Ticket{}, &Message{}}
}

func (m *ModuleImpl) RegisterRoutes(router fiber.Router, deps *modules.Deps) {
	h := NewHandler(NewService(deps.DB, deps.WhatsApp, deps.Storage))

	grp := router.Group("/tickets")
	grp.Get("/", h.List)
	grp.Get("/:id", h.Get)
	grp.Put("/:id/assign", h.Assign)
	grp.Put("/:id/status", h.UpdateStatus)
	grp.Get("/:id/messages", h.Messages)
	grp.Post("/:id/messages", h.Send)
	grp.Post("/:id/media", h.AttachMedia)
	grp.Get("/:id/media/:messageId", h.Media)
}
