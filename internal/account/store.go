package account

import (
	"context"
	"errors"
	"iter"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoSuchAccount occurs when an operation addresses an account that does not exist.
	ErrNoSuchAccount = errors.New("no such account")

	// ErrAlreadyExists indicates an account with the identifier already exists.
	ErrAlreadyExists = errors.New("account already exists")

	// ErrWouldGoNegative indicates a delta would drive a balance below zero.
	ErrWouldGoNegative = errors.New("balance would go negative")

	// ErrNegativeValue is returned when a balance is set to a negative value.
	ErrNegativeValue = errors.New("negative balance value")

	// ErrPersistenceFailed indicates the durability hook rejected a mutation. The
	// in-memory state is unchanged and the caller may retry.
	ErrPersistenceFailed = errors.New("persistence failed")
)

// Ops are the balance primitives available inside Store.Atomic. They operate
// on refs already locked by Atomic.
type Ops interface {
	ReadBalance(ctx context.Context, id ID, key Key) (decimal.Decimal, error)
	ApplyDelta(ctx context.Context, id ID, key Key, delta decimal.Decimal) (decimal.Decimal, error)
}

// Store defines the atomic primitives the ledger composes into operations.
type Store interface {
	Exists(ctx context.Context, id ID) bool
	Create(ctx context.Context, id ID) (bool, error)
	Delete(ctx context.Context, id ID) error
	DeleteIf(ctx context.Context, id ID, pred func(map[Key]decimal.Decimal) bool) (bool, error)

	ReadBalance(ctx context.Context, id ID, key Key) (decimal.Decimal, error)
	Balances(ctx context.Context, id ID) (map[Key]decimal.Decimal, error)
	ApplyDelta(ctx context.Context, id ID, key Key, delta decimal.Decimal) (decimal.Decimal, error)
	SetBalance(ctx context.Context, id ID, key Key, value decimal.Decimal) error
	Atomic(ctx context.Context, refs []Ref, fn func(Ops) error) error

	Accounts(ctx context.Context) iter.Seq[ID]

	Grant(ctx context.Context, id, accessor ID, caps Capabilities) error
	Revoke(ctx context.Context, id, accessor ID) error
	Accessor(ctx context.Context, id, accessor ID) (Capabilities, bool, error)
	Accessors(ctx context.Context, id ID) (map[ID]Capabilities, error)
}
