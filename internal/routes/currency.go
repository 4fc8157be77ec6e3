package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/reserve/internal/currency"
)

// RegisterCurrencyRoutes wires the public currency endpoints.
func RegisterCurrencyRoutes(r fiber.Router, h *currency.Handler) {
	r.Get("/currencies", h.List)
	r.Get("/currencies/default", h.Default)
	r.Get("/format", h.Format)
}
