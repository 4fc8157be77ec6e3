package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds a liveness endpoint reporting each backend.
func RegisterHealthRoutes(app *fiber.App, health Pinger) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		backends := map[string]string{}
		if health != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			backends = health.Ping(ctx)
		}

		status := http.StatusOK
		for _, s := range backends {
			if s != "ok" {
				status = http.StatusServiceUnavailable
			}
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    backends,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
