package routes

import (
	"log/slog"
	"time"

	"virtualbank-gateway/cache"
	"virtualbank-gateway/config"
	"virtualbank-gateway/controllers"
	"virtualbank-gateway/database"
	"virtualbank-gateway/idempotency"
	"virtualbank-gateway/middlewares"
	"virtualbank-gateway/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// Route roles.
const (
	RoleTransfersWrite = "bank:transfers:write"
	RoleTransfersRead  = "bank:transfers:read"
	RoleCreditsWrite   = "bank:credits:write"
	RoleCreditsRead    = "bank:credits:read"
	RoleOrdersWrite    = "market:orders:write"
	RoleOrdersRead     = "market:orders:read"
)

// Deps are the collaborators built once at startup.
type Deps struct {
	Store       *database.Store
	Cache       cache.Client
	Coordinator *idempotency.Coordinator
	Transfers   *services.TransferService
	Credits     *services.CreditService
	Orders      *services.OrderService
	Status      *services.StatusReader
	Logger      *slog.Logger
	StartedAt   time.Time
}

// NewApp builds the Fiber app with global middleware and every route.
func NewApp(cfg config.Config, deps Deps) *fiber.App {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middlewares.ErrorHandler,
		BodyLimit:             cfg.BodyLimitBytes,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{ContextKey: "requestid"}))
	app.Use(middlewares.RequestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: false, // bearer tokens and API keys, no cookies
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " +
			cfg.Idempotency.Header + ", " + cfg.Auth.APIKeyHeader + ", " + cfg.Auth.SessionHeader,
		ExposeHeaders: middlewares.ReplayHeader + ", " + controllers.DegradedHeader + ", " + fiber.HeaderXRequestID,
	}))
	if cfg.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitMax,
			Expiration: cfg.RateLimitWindow,
		}))
	}

	Register(app, cfg, deps)
	return app
}

// Register wires the health probes and the versioned API.
func Register(app *fiber.App, cfg config.Config, deps Deps) {
	health := &controllers.HealthController{
		Store:       deps.Store,
		ServiceName: cfg.ServiceName,
		StartedAt:   deps.StartedAt,
		Logger:      deps.Logger,
	}
	if p, ok := deps.Cache.(controllers.Pinger); ok && deps.Cache.Enabled() {
		health.Cache = p
	}
	app.Get("/health/live", health.Live)
	app.Get("/health/ready", health.Ready)

	transfers := &controllers.TransferController{Transfers: deps.Transfers, Status: deps.Status, PublicBaseURL: cfg.PublicBaseURL}
	credits := &controllers.CreditController{Credits: deps.Credits, Status: deps.Status, PublicBaseURL: cfg.PublicBaseURL}
	orders := &controllers.OrderController{Orders: deps.Orders, Status: deps.Status, PublicBaseURL: cfg.PublicBaseURL}

	// Idempotency runs after auth so unauthenticated calls never claim a token
	guard := middlewares.Idempotency(deps.Coordinator, cfg.Idempotency.Header, deps.Logger)

	api := app.Group("/api/v1", middlewares.Authenticate(cfg.Auth))

	api.Post("/transfers", middlewares.RequireRoles(RoleTransfersWrite), guard, transfers.CreateTransfer)
	api.Get("/transfers/:id", middlewares.RequireRoles(RoleTransfersRead), transfers.GetTransfer)

	api.Post("/credits/applications", middlewares.RequireRoles(RoleCreditsWrite), guard, credits.CreateApplication)
	api.Get("/credits/applications/:id", middlewares.RequireRoles(RoleCreditsRead), credits.GetApplication)

	api.Post("/market/orders", middlewares.RequireRoles(RoleOrdersWrite), guard, orders.CreateOrder)
	api.Get("/market/orders/:id", middlewares.RequireRoles(RoleOrdersRead), orders.GetOrder)
}
