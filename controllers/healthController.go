package controllers

import (
	"context"
	"log/slog"
	"time"

	"virtualbank-gateway/database"

	"github.com/gofiber/fiber/v2"
)

// Pinger is implemented by dependencies the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

type HealthController struct {
	Store       *database.Store
	Cache       Pinger
	ServiceName string
	StartedAt   time.Time
	Logger      *slog.Logger
}

func (ctl *HealthController) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"service":  ctl.ServiceName,
		"uptimeMs": time.Since(ctl.StartedAt).Milliseconds(),
	})
}

// Ready fails with 503 when the datastore cannot be reached. The cache is
// reported but never fails readiness; requests fall back to the store.
func (ctl *HealthController) Ready(c *fiber.Ctx) error {
	ctx := c.UserContext()
	deps := fiber.Map{}
	status, code := "ok", fiber.StatusOK

	if latency, err := ctl.Store.Ping(ctx); err != nil {
		if ctl.Logger != nil {
			ctl.Logger.Error("datastore readiness check failed",
				"event", "readiness_datastore_failed",
				"module", "http",
				"layer", "transport",
				"error", err.Error(),
			)
		}
		deps["datastore"] = fiber.Map{"status": "error", "error": err.Error()}
		status, code = "error", fiber.StatusServiceUnavailable
	} else {
		deps["datastore"] = fiber.Map{"status": "connected", "latencyMs": latency.Milliseconds()}
	}

	if ctl.Cache != nil {
		if latency, err := ctl.Cache.Ping(ctx); err != nil {
			deps["cache"] = fiber.Map{"status": "error", "error": err.Error()}
		} else {
			deps["cache"] = fiber.Map{"status": "connected", "latencyMs": latency.Milliseconds()}
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":       status,
		"service":      ctl.ServiceName,
		"uptimeMs":     time.Since(ctl.StartedAt).Milliseconds(),
		"dependencies": deps,
	})
}
