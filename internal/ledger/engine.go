package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/reserve/internal/access"
	"github.com/congo-pay/reserve/internal/account"
	"github.com/congo-pay/reserve/internal/currency"
	"github.com/congo-pay/reserve/internal/logging"
	"github.com/congo-pay/reserve/internal/notification"
)

// Scope narrows an operation to a world and currency. Empty fields mean the
// world-agnostic balance and the registry default respectively.
type Scope struct {
	World    string `json:"world"`
	Currency string `json:"currency"`
}

// TransferResult captures the outcome of a transfer.
type TransferResult struct {
	TransactionID string
	Currency      currency.Currency
	FromBalance   decimal.Decimal
	ToBalance     decimal.Decimal
	CompletedAt   time.Time
}

// Engine composes account store primitives into whole ledger operations.
// Every failing operation leaves account state as it was before the call.
type Engine struct {
	store    account.Store
	registry *currency.Registry
	policy   access.Policy
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewEngine builds a ledger engine. A nil policy falls back to the accessor
// policy over store; a nil logger discards output.
func NewEngine(store account.Store, registry *currency.Registry, policy access.Policy, notifier notification.Notifier, logger *slog.Logger) *Engine {
	if policy == nil {
		policy = access.NewAccessorPolicy(store)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{store: store, registry: registry, policy: policy, notifier: notifier, logger: logger}
}

// HasAccount reports whether the account exists.
func (e *Engine) HasAccount(ctx context.Context, id account.ID) bool {
	return e.store.Exists(ctx, id)
}

// CreateAccount creates an empty account. When the account already existed it
// returns ErrAlreadyExists and changes nothing, so callers may treat that
// error as success.
func (e *Engine) CreateAccount(ctx context.Context, id account.ID) error {
	created, err := e.store.Create(ctx, id)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	return nil
}

// DeleteAccount removes the account with its balances and accessors.
func (e *Engine) DeleteAccount(ctx context.Context, id account.ID) error {
	return e.store.Delete(ctx, id)
}

// GrantAccessor gives accessor the capabilities on target. Only the owner may grant.
func (e *Engine) GrantAccessor(ctx context.Context, actor, target, accessor account.ID, caps account.Capabilities) error {
	if err := e.requireOwner(ctx, actor, target); err != nil {
		return err
	}
	return e.store.Grant(ctx, target, accessor, caps)
}

// RevokeAccessor removes accessor from target. Only the owner may revoke.
func (e *Engine) RevokeAccessor(ctx context.Context, actor, target, accessor account.ID) error {
	if err := e.requireOwner(ctx, actor, target); err != nil {
		return err
	}
	return e.store.Revoke(ctx, target, accessor)
}

// Accessors lists the accessor entries of target for a viewer.
func (e *Engine) Accessors(ctx context.Context, actor, target account.ID) (map[account.ID]account.Capabilities, error) {
	if err := e.requireAccount(ctx, target); err != nil {
		return nil, err
	}
	if !e.policy.CanView(ctx, actor, target) {
		return nil, ErrAccessDenied
	}
	return e.store.Accessors(ctx, target)
}

func (e *Engine) requireOwner(ctx context.Context, actor, target account.ID) error {
	if err := e.requireAccount(ctx, target); err != nil {
		return err
	}
	if actor != target {
		return ErrAccessDenied
	}
	return nil
}

func (e *Engine) requireAccount(ctx context.Context, id account.ID) error {
	if !e.store.Exists(ctx, id) {
		return fmt.Errorf("%w: %s", ErrNoSuchAccount, id)
	}
	return nil
}

// resolve picks the currency for scope and validates amount against it.
// positive selects between "> 0" and ">= 0".
func (e *Engine) resolve(amount decimal.Decimal, scope Scope, positive bool) (currency.Currency, account.Key, error) {
	if amount.IsNegative() || (positive && amount.IsZero()) {
		return currency.Currency{}, account.Key{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	c, err := e.registry.Resolve(scope.Currency, scope.World)
	if err != nil {
		return currency.Currency{}, account.Key{}, err
	}
	if !c.Fits(amount) {
		return currency.Currency{}, account.Key{}, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, c.DecimalPlaces)
	}
	return c, account.Key{World: scope.World, Currency: c.Key()}, nil
}

func (e *Engine) checkDeposit(ctx context.Context, actor, target account.ID, amount decimal.Decimal, scope Scope) (account.Key, error) {
	_, key, err := e.resolve(amount, scope, true)
	if err != nil {
		return key, err
	}
	if err := e.requireAccount(ctx, target); err != nil {
		return key, err
	}
	if !e.policy.CanDeposit(ctx, actor, target) {
		return key, ErrAccessDenied
	}
	return key, nil
}

func (e *Engine) checkWithdraw(ctx context.Context, actor, target account.ID, amount decimal.Decimal, scope Scope) (account.Key, error) {
	_, key, err := e.resolve(amount, scope, true)
	if err != nil {
		return key, err
	}
	if err := e.requireAccount(ctx, target); err != nil {
		return key, err
	}
	if !e.policy.CanWithdraw(ctx, actor, target) {
		return key, ErrAccessDenied
	}
	return key, nil
}

// Deposit credits amount to target and returns the new balance.
func (e *Engine) Deposit(ctx context.Context, actor, target account.ID, amount decimal.Decimal, scope Scope) (decimal.Decimal, error) {
	key, err := e.checkDeposit(ctx, actor, target, amount, scope)
	if err != nil {
		return decimal.Zero, err
	}
	return e.store.ApplyDelta(ctx, target, key, amount)
}

// Withdraw debits amount from target and returns the new balance. When the
// balance does not cover amount it fails with ErrInsufficientFunds and the
// balance is left untouched.
func (e *Engine) Withdraw(ctx context.Context, actor, target account.ID, amount decimal.Decimal, scope Scope) (decimal.Decimal, error) {
	key, err := e.checkWithdraw(ctx, actor, target, amount, scope)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := e.store.ApplyDelta(ctx, target, key, amount.Neg())
	return balance, insufficient(err)
}

func insufficient(err error) error {
	if errors.Is(err, account.ErrWouldGoNegative) {
		return ErrInsufficientFunds
	}
	return err
}

// CheckDeposit returns the error Deposit would return for the current state
// without mutating anything.
func (e *Engine) CheckDeposit(ctx context.Context, actor, target account.ID, amount decimal.Decimal, scope Scope) error {
	_, err := e.checkDeposit(ctx, actor, target, amount, scope)
	return err
}

// CheckWithdraw returns the error Withdraw would return for the current state
// without mutating anything.
func (e *Engine) CheckWithdraw(ctx context.Context, actor, target account.ID, amount decimal.Decimal, scope Scope) error {
	key, err := e.checkWithdraw(ctx, actor, target, amount, scope)
	if err != nil {
		return err
	}
	balance, err := e.store.ReadBalance(ctx, target, key)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	return nil
}

// CanDeposit reports whether Deposit would succeed right now. The answer is
// advisory; nothing is reserved.
func (e *Engine) CanDeposit(ctx context.Context, actor, target account.ID, amount decimal.Decimal, scope Scope) bool {
	return e.CheckDeposit(ctx, actor, target, amount, scope) == nil
}

// CanWithdraw reports whether Withdraw would succeed right now. The answer is
// advisory; nothing is reserved.
func (e *Engine) CanWithdraw(ctx context.Context, actor, target account.ID, amount decimal.Decimal, scope Scope) bool {
	return e.CheckWithdraw(ctx, actor, target, amount, scope) == nil
}

// CheckTransfer returns the error Transfer would return for the current state.
func (e *Engine) CheckTransfer(ctx context.Context, actor, from, to account.ID, amount decimal.Decimal, scope Scope) error {
	if err := e.CheckWithdraw(ctx, actor, from, amount, scope); err != nil {
		return err
	}
	return e.CheckDeposit(ctx, actor, to, amount, scope)
}

// CanTransfer reports whether Transfer would succeed right now.
func (e *Engine) CanTransfer(ctx context.Context, actor, from, to account.ID, amount decimal.Decimal, scope Scope) bool {
	return e.CheckTransfer(ctx, actor, from, to, amount, scope) == nil
}

// Transfer moves amount from one account to another. The debit and credit
// run while both balance keys are locked; when the credit fails the debit is
// reverted before the error is returned, so neither account changes.
func (e *Engine) Transfer(ctx context.Context, actor, from, to account.ID, amount decimal.Decimal, scope Scope) (TransferResult, error) {
	c, key, err := e.resolve(amount, scope, true)
	if err != nil {
		return TransferResult{}, err
	}
	if err := e.requireAccount(ctx, from); err != nil {
		return TransferResult{}, err
	}
	if !e.policy.CanWithdraw(ctx, actor, from) {
		return TransferResult{}, ErrAccessDenied
	}
	if err := e.requireAccount(ctx, to); err != nil {
		return TransferResult{}, err
	}
	if !e.policy.CanDeposit(ctx, actor, to) {
		return TransferResult{}, ErrAccessDenied
	}

	// Policy and existence checks run before any key lock is taken. Inside
	// the locks only store operations run, and a credit that still fails
	// (account removed meanwhile, persistence error) is compensated.
	res := TransferResult{TransactionID: uuid.NewString(), Currency: c}
	refs := []account.Ref{{Account: from, Key: key}, {Account: to, Key: key}}
	err = e.store.Atomic(ctx, refs, func(ops account.Ops) error {
		fromBalance, err := ops.ApplyDelta(ctx, from, key, amount.Neg())
		if err != nil {
			return insufficient(err)
		}

		toBalance, err := ops.ApplyDelta(ctx, to, key, amount)
		if err != nil {
			if _, undoErr := ops.ApplyDelta(ctx, from, key, amount); undoErr != nil {
				e.logger.ErrorContext(ctx, "transfer compensation failed",
					slog.String("transaction_id", res.TransactionID),
					slog.String("from", from.String()),
					slog.String("amount", amount.String()),
					slog.Any("error", undoErr),
				)
				return errors.Join(err, undoErr)
			}
			e.logger.WarnContext(ctx, "transfer reverted",
				slog.String("transaction_id", res.TransactionID),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
				slog.Any("error", err),
			)
			return err
		}

		res.FromBalance = fromBalance
		res.ToBalance = toBalance
		if from == to {
			res.FromBalance = toBalance
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	res.CompletedAt = time.Now().UTC()

	if e.notifier != nil {
		_ = e.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: to.String(),
			Body:        fmt.Sprintf("You received %s from %s", c.Format(amount), from),
		})
	}
	return res, nil
}

// SetHoldings overwrites target's balance. Because it can move the balance in
// either direction the actor needs both deposit and withdraw rights.
func (e *Engine) SetHoldings(ctx context.Context, actor, target account.ID, amount decimal.Decimal, scope Scope) error {
	_, key, err := e.resolve(amount, scope, false)
	if err != nil {
		return err
	}
	if err := e.requireAccount(ctx, target); err != nil {
		return err
	}
	if !e.policy.CanDeposit(ctx, actor, target) || !e.policy.CanWithdraw(ctx, actor, target) {
		return ErrAccessDenied
	}
	return e.store.SetBalance(ctx, target, key, amount)
}

// Holdings returns target's balance in the resolved currency.
func (e *Engine) Holdings(ctx context.Context, actor, target account.ID, scope Scope) (decimal.Decimal, currency.Currency, error) {
	c, key, err := e.resolve(decimal.Zero, scope, false)
	if err != nil {
		return decimal.Zero, currency.Currency{}, err
	}
	if err := e.requireAccount(ctx, target); err != nil {
		return decimal.Zero, currency.Currency{}, err
	}
	if !e.policy.CanView(ctx, actor, target) {
		return decimal.Zero, currency.Currency{}, ErrAccessDenied
	}
	balance, err := e.store.ReadBalance(ctx, target, key)
	if err != nil {
		return decimal.Zero, currency.Currency{}, err
	}
	return balance, c, nil
}

// Balances returns every balance entry of target.
func (e *Engine) Balances(ctx context.Context, actor, target account.ID) (map[account.Key]decimal.Decimal, error) {
	if err := e.requireAccount(ctx, target); err != nil {
		return nil, err
	}
	if !e.policy.CanView(ctx, actor, target) {
		return nil, ErrAccessDenied
	}
	return e.store.Balances(ctx, target)
}

// HasHoldings reports whether target holds at least amount.
func (e *Engine) HasHoldings(ctx context.Context, actor, target account.ID, amount decimal.Decimal, scope Scope) (bool, error) {
	if amount.IsNegative() {
		return false, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	balance, _, err := e.Holdings(ctx, actor, target, scope)
	if err != nil {
		return false, err
	}
	return balance.GreaterThanOrEqual(amount), nil
}

// Format renders amount in the resolved currency's display form. No account
// is involved.
func (e *Engine) Format(amount decimal.Decimal, scope Scope) (string, error) {
	c, err := e.registry.Resolve(scope.Currency, scope.World)
	if err != nil {
		return "", err
	}
	return c.Format(amount), nil
}

// DefaultNames returns the singular and plural display names of the world's
// default currency.
func (e *Engine) DefaultNames(world string) (string, string, error) {
	c, err := e.registry.Default(world)
	if err != nil {
		return "", "", err
	}
	return c.Singular, c.Plural, nil
}
