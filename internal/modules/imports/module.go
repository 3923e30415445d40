package imports

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wappdesk/backend/internal/modules"
)

// ModuleImpl wires the CSV import pipeline into the app.
type ModuleImpl struct{}

func NewModule() *ModuleImpl {
	return &ModuleImpl{}
}

func (m *ModuleImpl) ID() string {
	return "imports"
}

func (m *ModuleImpl) Models() []interface{} {
	return []interface{}{&Import{}, &ImportRow{}, &MappingTemplate{}}
}

func (m *ModuleImpl) RegisterRoutes(router fiber.Router, deps *modules.Deps) {
	// Import management is a supervisor concern; nothing mounts on the
	// agent-visible surface.
}

func (m *ModuleImpl) RegisterSupervisorRoutes(router fiber.Router, deps *modules.Deps) {
	service := NewService(deps.DB, deps.Cfg, deps.Storage, deps.Clients, deps.Users)
	h := NewHandler(service)

	grp := router.Group("/imports")
	grp.Get("/sample", h.Sample)
	grp.Post("/upload", h.Upload)
	grp.Get("/", h.List)

	grp.Get("/templates", h.ListTemplates)
	grp.Post("/templates", h.SaveTemplate)
	grp.Delete("/templates/:id", h.DeleteTemplate)

	grp.Get("/:id", h.Get)
	grp.Delete("/:id", h.Delete)
	grp.Get("/:id/file", h.File)
	grp.Post("/:id/mapping", h.ApplyMapping)
	grp.Get("/:id/rows", h.Rows)
	grp.Put("/:id/rows/:rowId", h.UpdateRow)
	grp.Delete("/:id/rows/:rowId", h.DeleteRow)
	grp.Post("/:id/commit", h.Commit)
	grp.Post("/:id/cancel", h.Cancel)
}
