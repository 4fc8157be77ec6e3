package ledger

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/reserve/internal/access"
	"github.com/congo-pay/reserve/internal/account"
	"github.com/congo-pay/reserve/internal/currency"
	"github.com/congo-pay/reserve/internal/middleware"
)

var validate = validator.New()

// Handler exposes account, balance and transfer endpoints.
type Handler struct {
	engine *Engine
}

// NewHandler constructs a ledger handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type createAccountRequest struct {
	AccountID string `json:"account_id" validate:"required"`
}

type amountRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	World    string          `json:"world" validate:"omitempty,max=64"`
	Currency string          `json:"currency" validate:"omitempty,max=64"`
}

func (r amountRequest) scope() Scope {
	return Scope{World: r.World, Currency: r.Currency}
}

type transferRequest struct {
	From     string          `json:"from" validate:"required"`
	To       string          `json:"to" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
	World    string          `json:"world" validate:"omitempty,max=64"`
	Currency string          `json:"currency" validate:"omitempty,max=64"`
}

type balanceResponse struct {
	World    string          `json:"world"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// httpError translates engine errors into Fiber errors.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNoSuchAccount), errors.Is(err, ErrNoSuchCurrency):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrDuplicateCurrency):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, account.ErrInvalidID):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, "insufficient funds")
	case errors.Is(err, ErrAccessDenied):
		return fiber.NewError(http.StatusForbidden, "access denied")
	case errors.Is(err, ErrPersistenceFailed):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func target(c *fiber.Ctx) (account.ID, error) {
	id, err := account.ParseID(c.Params("accountId"))
	if err != nil {
		return "", fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return id, nil
}

// CreateAccount provisions an empty account. Creating an existing account is
// not an error; the response reports created=false.
func (h *Handler) CreateAccount(c *fiber.Ctx) error {
	var req createAccountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	id, err := account.ParseID(req.AccountID)
	if err != nil {
		return httpError(err)
	}

	err = h.engine.CreateAccount(c.UserContext(), id)
	switch {
	case errors.Is(err, ErrAlreadyExists):
		return c.Status(http.StatusOK).JSON(fiber.Map{"account_id": id, "created": false})
	case err != nil:
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"account_id": id, "created": true})
}

// GetAccount returns every balance of the account.
func (h *Handler) GetAccount(c *fiber.Ctx) error {
	id, err := target(c)
	if err != nil {
		return err
	}
	balances, err := h.engine.Balances(c.UserContext(), middleware.ActorFrom(c), id)
	if err != nil {
		return httpError(err)
	}

	out := make([]balanceResponse, 0, len(balances))
	for key, amount := range balances {
		out = append(out, balanceResponse{World: key.World, Currency: key.Currency, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].World != out[j].World {
			return out[i].World < out[j].World
		}
		return out[i].Currency < out[j].Currency
	})
	accessors, err := h.engine.Accessors(c.UserContext(), middleware.ActorFrom(c), id)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id": id,
		"balances":   out,
		"accessors":  accessors,
	})
}

// DeleteAccount removes the account. Only the owner may delete it.
func (h *Handler) DeleteAccount(c *fiber.Ctx) error {
	id, err := target(c)
	if err != nil {
		return err
	}
	if !h.engine.HasAccount(c.UserContext(), id) {
		return httpError(ErrNoSuchAccount)
	}
	if middleware.ActorFrom(c) != id {
		return httpError(ErrAccessDenied)
	}
	if err := h.engine.DeleteAccount(c.UserContext(), id); err != nil {
		return httpError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// GrantAccessor adds or replaces an accessor entry. An empty body grants the
// default view and deposit rights.
func (h *Handler) GrantAccessor(c *fiber.Ctx) error {
	id, err := target(c)
	if err != nil {
		return err
	}
	accessor, err := account.ParseID(c.Params("accessorId"))
	if err != nil {
		return httpError(err)
	}
	caps := access.DefaultAccessor
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&caps); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	if err := h.engine.GrantAccessor(c.UserContext(), middleware.ActorFrom(c), id, accessor, caps); err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id":   id,
		"accessor_id":  accessor,
		"capabilities": caps,
	})
}

// RevokeAccessor removes an accessor entry.
func (h *Handler) RevokeAccessor(c *fiber.Ctx) error {
	id, err := target(c)
	if err != nil {
		return err
	}
	accessor, err := account.ParseID(c.Params("accessorId"))
	if err != nil {
		return httpError(err)
	}
	if err := h.engine.RevokeAccessor(c.UserContext(), middleware.ActorFrom(c), id, accessor); err != nil {
		return httpError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Holdings returns the balance in the resolved currency.
func (h *Handler) Holdings(c *fiber.Ctx) error {
	id, err := target(c)
	if err != nil {
		return err
	}
	scope := Scope{World: c.Query("world"), Currency: c.Query("currency")}
	amount, cur, err := h.engine.Holdings(c.UserContext(), middleware.ActorFrom(c), id, scope)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(holdingsResponse(id, scope.World, cur, amount))
}

// SetHoldings overwrites the balance in the resolved currency.
func (h *Handler) SetHoldings(c *fiber.Ctx) error {
	id, err := target(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.engine.SetHoldings(c.UserContext(), middleware.ActorFrom(c), id, req.Amount, req.scope()); err != nil {
		return httpError(err)
	}
	amount, cur, err := h.engine.Holdings(c.UserContext(), middleware.ActorFrom(c), id, req.scope())
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(holdingsResponse(id, req.World, cur, amount))
}

func holdingsResponse(id account.ID, world string, cur currency.Currency, amount decimal.Decimal) fiber.Map {
	return fiber.Map{
		"account_id": id,
		"world":      world,
		"currency":   cur.Key(),
		"amount":     amount,
		"formatted":  cur.Format(amount),
	}
}

// Deposit credits the account.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	id, err := target(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	balance, err := h.engine.Deposit(c.UserContext(), middleware.ActorFrom(c), id, req.Amount, req.scope())
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"account_id": id, "balance": balance})
}

// Withdraw debits the account.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	id, err := target(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	balance, err := h.engine.Withdraw(c.UserContext(), middleware.ActorFrom(c), id, req.Amount, req.scope())
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"account_id": id, "balance": balance})
}

// CheckDeposit answers whether a deposit would currently succeed.
func (h *Handler) CheckDeposit(c *fiber.Ctx) error {
	return h.check(c, h.engine.CheckDeposit)
}

// CheckWithdraw answers whether a withdrawal would currently succeed.
func (h *Handler) CheckWithdraw(c *fiber.Ctx) error {
	return h.check(c, h.engine.CheckWithdraw)
}

type checkFunc func(ctx context.Context, actor, target account.ID, amount decimal.Decimal, scope Scope) error

func (h *Handler) check(c *fiber.Ctx, fn checkFunc) error {
	id, err := target(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(checkResponse(fn(c.UserContext(), middleware.ActorFrom(c), id, req.Amount, req.scope())))
}

func checkResponse(err error) fiber.Map {
	if err != nil {
		return fiber.Map{"allowed": false, "reason": err.Error()}
	}
	return fiber.Map{"allowed": true}
}

// Transfer moves funds between two accounts.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	from, err := account.ParseID(req.From)
	if err != nil {
		return httpError(err)
	}
	to, err := account.ParseID(req.To)
	if err != nil {
		return httpError(err)
	}

	scope := Scope{World: req.World, Currency: req.Currency}
	res, err := h.engine.Transfer(c.UserContext(), middleware.ActorFrom(c), from, to, req.Amount, scope)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"currency":       res.Currency.Key(),
		"from_balance":   res.FromBalance,
		"to_balance":     res.ToBalance,
		"completed_at":   res.CompletedAt,
	})
}

// CheckTransfer answers whether a transfer would currently succeed.
func (h *Handler) CheckTransfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	from, err := account.ParseID(req.From)
	if err != nil {
		return httpError(err)
	}
	to, err := account.ParseID(req.To)
	if err != nil {
		return httpError(err)
	}
	scope := Scope{World: req.World, Currency: req.Currency}
	err = h.engine.CheckTransfer(c.UserContext(), middleware.ActorFrom(c), from, to, req.Amount, scope)
	return c.Status(http.StatusOK).JSON(checkResponse(err))
}
