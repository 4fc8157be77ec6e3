package ledger

import (
	"errors"

	"github.com/congo-pay/reserve/internal/account"
	"github.com/congo-pay/reserve/internal/currency"
)

const (
	// Name identifies the engine to callers that report the active economy.
	Name = "Reserve"
	// Version is the engine contract version.
	Version = "1.0.0"
)

var (
	// ErrInvalidAmount occurs when an amount is not positive where a positive
	// value is required, is negative where a non-negative value is required, or
	// is finer than the currency's grain.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested withdrawal.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccessDenied indicates the actor lacks the right for the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrNoSuchAccount, ErrAlreadyExists and ErrPersistenceFailed come from the
	// account store.
	ErrNoSuchAccount     = account.ErrNoSuchAccount
	ErrAlreadyExists     = account.ErrAlreadyExists
	ErrPersistenceFailed = account.ErrPersistenceFailed

	// ErrNoSuchCurrency and ErrDuplicateCurrency come from the currency registry.
	ErrNoSuchCurrency    = currency.ErrNoSuchCurrency
	ErrDuplicateCurrency = currency.ErrDuplicateCurrency
)

// IsRetryable reports whether err means the in-memory and durable views may
// have diverged, so the caller may retry. Logical failures are not retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistenceFailed)
}
