package currency

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes read-only currency endpoints.
type Handler struct {
	registry *Registry
}

// NewHandler constructs a currency handler.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

type currencyResponse struct {
	Name          string   `json:"name"`
	Singular      string   `json:"singular"`
	Plural        string   `json:"plural"`
	DecimalPlaces uint8    `json:"decimal_places"`
	Symbol        string   `json:"symbol,omitempty"`
	Worlds        []string `json:"worlds,omitempty"`
	Default       bool     `json:"default"`
}

func toResponse(c Currency) currencyResponse {
	return currencyResponse{
		Name:          c.Name,
		Singular:      c.Singular,
		Plural:        c.Plural,
		DecimalPlaces: c.DecimalPlaces,
		Symbol:        c.Symbol,
		Worlds:        c.Worlds,
		Default:       c.Default,
	}
}

func httpError(err error) error {
	if errors.Is(err, ErrNoSuchCurrency) {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	return fiber.NewError(http.StatusInternalServerError, err.Error())
}

// List returns every registered currency.
func (h *Handler) List(c *fiber.Ctx) error {
	list := h.registry.List()
	out := make([]currencyResponse, 0, len(list))
	for _, cur := range list {
		out = append(out, toResponse(cur))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"currencies": out})
}

// Default returns the default currency of the world given in the query.
func (h *Handler) Default(c *fiber.Ctx) error {
	cur, err := h.registry.Default(c.Query("world"))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(cur))
}

// Format renders an amount in a currency's display form.
func (h *Handler) Format(c *fiber.Ctx) error {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "amount must be a decimal number")
	}
	cur, err := h.registry.Resolve(c.Query("currency"), c.Query("world"))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"amount":    amount,
		"currency":  cur.Key(),
		"formatted": cur.Format(amount),
	})
}
