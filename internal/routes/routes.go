package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"

	"github.com/wappdesk/backend/internal/config"
	"github.com/wappdesk/backend/internal/handlers"
	"github.com/wappdesk/backend/internal/middleware"
	"github.com/wappdesk/backend/internal/modules"
	"github.com/wappdesk/backend/internal/tenant"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	webhookHandler *handlers.WebhookHandler,
	clientHandler *handlers.ClientHandler,
	userHandler *handlers.UserHandler,
	settingsHandler *handlers.SettingsHandler,
	registry *tenant.Registry,
	featureModules []modules.Module,
	deps *modules.Deps,
) {
	api := app.Group("/api")

	// General API rate limiter: 120 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	// Health (no tenant required)
	api.Get("/health", healthHandler.Check)

	// WhatsApp Cloud API webhook (verified by token, no JWT)
	api.Get("/webhooks/whatsapp", webhookHandler.Verify)
	api.Post("/webhooks/whatsapp", webhookHandler.Receive)

	// Auth — public, with a stricter limit: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)

	api.Post("/auth/logout", middleware.JWTProtected(cfg), authHandler.Logout)
	api.Put("/auth/password", middleware.JWTProtected(cfg), authHandler.ChangePassword)

	// Platform admin: tenant lifecycle
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(db, cfg))
	admin.Post("/clients", clientHandler.Create)
	admin.Get("/clients", clientHandler.List)
	admin.Get("/clients/:id", clientHandler.Get)
	admin.Put("/clients/:id", clientHandler.Update)
	admin.Delete("/clients/:id", clientHandler.Delete)

	// Tenant-scoped routes: JWT first, then tenant resolution from the
	// client_id claim or the X-Client-ID header.
	protected := api.Group("", middleware.JWTProtected(cfg), middleware.TenantMiddleware(registry))

	protected.Get("/users", userHandler.List)
	protected.Get("/users/:id", userHandler.Get)

	supervisor := protected.Group("", middleware.SupervisorRequired())
	supervisor.Post("/users", userHandler.Create)
	supervisor.Put("/users/:id", userHandler.Update)
	supervisor.Delete("/users/:id", userHandler.Delete)
	supervisor.Get("/users-export", userHandler.ExportCSV)

	supervisor.Get("/settings", settingsHandler.GetSettings)
	supervisor.Put("/settings/:key", settingsHandler.SetSetting)
	supervisor.Delete("/settings/:key", settingsHandler.DeleteSetting)

	for _, m := range featureModules {
		m.RegisterRoutes(protected, deps)
		if sm, ok := m.(modules.SupervisorModule); ok {
			sm.RegisterSupervisorRoutes(supervisor, deps)
		}
	}
}
