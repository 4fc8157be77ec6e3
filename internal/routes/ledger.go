package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/reserve/internal/ledger"
)

// RegisterLedgerRoutes wires account, balance and transfer endpoints. idem
// guards the routes that move money.
func RegisterLedgerRoutes(r fiber.Router, h *ledger.Handler, idem fiber.Handler) {
	r.Post("/accounts", h.CreateAccount)
	r.Get("/accounts/:accountId", h.GetAccount)
	r.Delete("/accounts/:accountId", h.DeleteAccount)

	r.Put("/accounts/:accountId/accessors/:accessorId", h.GrantAccessor)
	r.Delete("/accounts/:accountId/accessors/:accessorId", h.RevokeAccessor)

	r.Get("/accounts/:accountId/holdings", h.Holdings)
	r.Put("/accounts/:accountId/holdings", idem, h.SetHoldings)

	r.Post("/accounts/:accountId/deposit/check", h.CheckDeposit)
	r.Post("/accounts/:accountId/withdraw/check", h.CheckWithdraw)
	r.Post("/accounts/:accountId/deposit", idem, h.Deposit)
	r.Post("/accounts/:accountId/withdraw", idem, h.Withdraw)

	r.Post("/transfers/check", h.CheckTransfer)
	r.Post("/transfers", idem, h.Transfer)
}
