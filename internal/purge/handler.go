package purge

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/reserve/internal/account"
)

// Handler exposes the purge endpoint.
type Handler struct {
	coordinator *Coordinator
}

// NewHandler constructs a purge handler.
func NewHandler(coordinator *Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

type purgeRequest struct {
	// Threshold selects PurgeUnder when present and PurgeDefault otherwise.
	Threshold *decimal.Decimal `json:"threshold"`
}

// Purge runs a sweep synchronously and returns its report.
func (h *Handler) Purge(c *fiber.Ctx) error {
	var req purgeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	var (
		report Report
		err    error
	)
	if req.Threshold != nil {
		report, err = h.coordinator.PurgeUnder(c.UserContext(), *req.Threshold)
	} else {
		report, err = h.coordinator.PurgeDefault(c.UserContext())
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidThreshold):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, account.ErrPersistenceFailed):
			return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"report": report, "error": err.Error()})
		default:
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"report": report, "error": err.Error()})
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"report": report})
}
