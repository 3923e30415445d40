package dashboard

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wappdesk/backend/internal/modules"
)

// ModuleImpl wires the KPI dashboard into the app. It owns no tables;
// everything is computed from the other modules' data.
type ModuleImpl struct{}

func NewModule() *ModuleImpl {
	return &ModuleImpl{}
}

func (m *ModuleImpl) ID() string {
	return "dashboard"
}

func (m *ModuleImpl) Models() []interface{} {
	return nil
}

func (m *ModuleImpl) RegisterRoutes(router fiber.Router, deps *modules.Deps) {
}

func (m *ModuleImpl) RegisterSupervisorRoutes(router fiber.Router, deps *modules.Deps) {
	h := NewHandler(NewService(deps.DB, deps.Cache))

	grp := router.Group("/dashboard")
	grp.Get("/", h.Overview)
	grp.Get("/export", h.Export)
}
