package modules

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wappdesk/backend/internal/cache"
	"github.com/wappdesk/backend/internal/config"
	"github.com/wappdesk/backend/internal/services"
	"github.com/wappdesk/backend/internal/storage"
	"github.com/wappdesk/backend/internal/whatsapp"
	"gorm.io/gorm"
)

// Deps bundles the shared infrastructure handed to every feature module.
type Deps struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Storage  *storage.Storage
	Cache    *cache.Cache
	WhatsApp *whatsapp.Client
	Clients  *services.ClientService
	Users    *services.UserService
}

// Module defines the interface every feature module must implement.
type Module interface {
	// ID returns the unique module identifier.
	ID() string

	// Models returns the list of GORM model pointers for AutoMigrate.
	Models() []interface{}

	// RegisterRoutes mounts tenant-scoped routes on the given Fiber group.
	// The group already has JWT and tenant middleware applied.
	RegisterRoutes(router fiber.Router, deps *Deps)
}

// SupervisorModule extends Module with supervisor-only route registration.
type SupervisorModule interface {
	Module

	// RegisterSupervisorRoutes mounts routes restricted to supervisors and
	// platform admins of the tenant.
	RegisterSupervisorRoutes(router fiber.Router, deps *Deps)
}
