package contacts

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wappdesk/backend/internal/modules"
)

// ModuleImpl wires prospect management into the app. The Prospect model
// itself migrates with the shared models since tickets and imports also
// write to it.
type ModuleImpl struct{}

func NewModule() *ModuleImpl {
	return &ModuleImpl{}
}

func (m *ModuleImpl) ID() string {
	return "contacts"
}

func (m *ModuleImpl) Models() []interface{} {
	return nil
}

func (m *ModuleImpl) RegisterRoutes(router fiber.Router, deps *modules.Deps) {
	h := NewHandler(NewService(deps.DB, deps.Users))

	grp := router.Group("/prospects")
	grp.Post("/", h.Create)
	grp.Get("/", h.List)
	grp.Get("/:id", h.Get)
	grp.Put("/:id", h.Update)
	grp.Delete("/:id", h.Delete)
}

func (m *ModuleImpl) RegisterSupervisorRoutes(router fiber.Router, deps *modules.Deps) {
	h := NewHandler(NewService(deps.DB, deps.Users))
	router.Post("/prospects/:id/promote", h.Promote)
}
