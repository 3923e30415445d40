package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/wappdesk/backend/internal/cache"
	"github.com/wappdesk/backend/internal/config"
	"github.com/wappdesk/backend/internal/database"
	"github.com/wappdesk/backend/internal/dto"
	"github.com/wappdesk/backend/internal/handlers"
	"github.com/wappdesk/backend/internal/logging"
	"github.com/wappdesk/backend/internal/middleware"
	"github.com/wappdesk/backend/internal/modules"
	"github.com/wappdesk/backend/internal/modules/campaigns"
	"github.com/wappdesk/backend/internal/modules/contacts"
	"github.com/wappdesk/backend/internal/modules/dashboard"
	"github.com/wappdesk/backend/internal/modules/imports"
	"github.com/wappdesk/backend/internal/modules/tickets"
	"github.com/wappdesk/backend/internal/routes"
	"github.com/wappdesk/backend/internal/services"
	"github.com/wappdesk/backend/internal/storage"
	"github.com/wappdesk/backend/internal/tenant"
	"github.com/wappdesk/backend/internal/whatsapp"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.MigrateShared(); err != nil {
		slog.Error("shared migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		pgLogHandler,
	)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cleanupDone)

	// Tenant registry
	registry := tenant.NewRegistry(database.DB)

	// Object storage
	files, err := storage.New(cfg)
	if err != nil {
		slog.Error("object storage init failed", "error", err)
		os.Exit(1)
	}

	// Redis cache (optional; the dashboard degrades without it)
	var redisCache *cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err = cache.New(cfg.RedisURL)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
	}

	// WhatsApp Cloud API client
	waClient := whatsapp.NewClient(cfg)

	// Services
	authService := services.NewAuthService(database.DB, cfg)
	clientService := services.NewClientService(database.DB, registry)
	userService := services.NewUserService(database.DB, clientService)

	// Feature modules
	deps := &modules.Deps{
		DB:       database.DB,
		Cfg:      cfg,
		Storage:  files,
		Cache:    redisCache,
		WhatsApp: waClient,
		Clients:  clientService,
		Users:    userService,
	}
	featureModules := []modules.Module{
		tickets.NewModule(),
		contacts.NewModule(),
		imports.NewModule(),
		campaigns.NewModule(),
		dashboard.NewModule(),
	}
	for _, m := range featureModules {
		if modelList := m.Models(); len(modelList) > 0 {
			if err := database.MigrateModels(modelList); err != nil {
				slog.Error("module migration failed", "module", m.ID(), "error", err)
				os.Exit(1)
			}
			slog.Info("module migrated", "module", m.ID(), "models", len(modelList))
		}
	}

	// Handlers
	ticketService := tickets.NewService(database.DB, waClient, files)
	tickets.StartAutoClose(ticketService, database.DB, cleanupDone)
	campaignService := campaigns.NewService(database.DB)
	authHandler := handlers.NewAuthHandler(authService)
	healthHandler := handlers.NewHealthHandler(registry)
	webhookHandler := handlers.NewWebhookHandler(database.DB, cfg, ticketService, campaignService)
	clientHandler := handlers.NewClientHandler(clientService)
	userHandler := handlers.NewUserHandler(userService)
	settingsHandler := handlers.NewSettingsHandler(database.DB)

	// Campaign worker pool
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	campaignWorker := campaigns.NewWorker(
		campaigns.NewJobRepository(database.DB),
		waClient,
		campaigns.NewSettingsResolver(database.DB),
		cfg,
	)
	campaignWorker.Start(workerCtx)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    int(cfg.ImportMaxFileBytes) + 1024*1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, database.DB,
		authHandler, healthHandler, webhookHandler,
		clientHandler, userHandler, settingsHandler,
		registry, featureModules, deps)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	stopWorkers()
	campaignWorker.Wait()
	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}
	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}
	if code >= 500 {
		slog.Error("unhandled request error",
			"path", c.Path(), "method", c.Method(), "status", code, "error", err)
	}
	return c.Status(code).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
}
