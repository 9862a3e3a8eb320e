// Package http hosts the fiber handlers for the status API.
package http

import (
	"context"
	"time"

	"assistant_server/adapter/out/persistence"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	redis   *redis.Client
	history *persistence.HistoryStore
}

// NewHealthHandler creates the handler. Both collaborators are optional: a
// nil collaborator reports "not configured" instead of failing the probe.
func NewHealthHandler(redisClient *redis.Client, history *persistence.HistoryStore) *HealthHandler {
	return &HealthHandler{
		redis:   redisClient,
		history: history,
	}
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if h.history != nil {
		if err := h.history.Ping(ctx); err != nil {
			checks["history"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["history"] = "healthy"
		}
	} else {
		checks["history"] = "not configured"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "not configured"
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
