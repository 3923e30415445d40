package campaigns

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wappdesk/backend/internal/modules"
)

// ModuleImpl wires bulk campaigns into the app. The worker pool is
// started separately from main so it can share the app's shutdown
// context.
type ModuleImpl struct{}

func NewModule() *ModuleImpl {
	return &ModuleImpl{}
}

func (m *ModuleImpl) ID() string {
	return "campaigns"
}

func (m *ModuleImpl) Models() []interface{} {
	return []interface{}{&Campaign{}, &Recipient{}}
}

func (m *ModuleImpl) RegisterRoutes(router fiber.Router, deps *modules.Deps) {
}

func (m *ModuleImpl) RegisterSupervisorRoutes(router fiber.Router, deps *modules.Deps) {
	h := NewHandler(NewService(deps.DB))

	grp := router.Group("/campaigns")
	grp.Post("/", h.Create)
	grp.Get("/", h.List)
	grp.Get("/:id", h.Get)
	grp.Post("/:id/recipients", h.AddRecipients)
	grp.Get("/:id/recipients", h.Recipients)
	grp.Post("/:id/queue", h.Queue)
	grp.Post("/:id/cancel", h.Cancel)
}
