package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/reserve/internal/purge"
)

// RegisterPurgeRoutes wires the purge endpoint behind the admin gate and limit.
func RegisterPurgeRoutes(r fiber.Router, h *purge.Handler, admin, limit fiber.Handler) {
	r.Post("/purge", admin, limit, h.Purge)
}
