package account

import (
	"github.com/shopspring/decimal"
)

// Key addresses a single balance inside an account.
type Key struct {
	World    string
	Currency string
}

// Ref addresses a single balance across the whole store.
type Ref struct {
	Account ID
	Key     Key
}

// String returns the lock ordering key for the ref.
func (r Ref) String() string {
	return string(r.Account) + "\x00" + r.Key.World + "\x00" + r.Key.Currency
}

// Capabilities lists the rights an accessor holds on an account it does not own.
type Capabilities struct {
	View     bool `json:"view"`
	Deposit  bool `json:"deposit"`
	Withdraw bool `json:"withdraw"`
}

// Snapshot is handed to the Persister after every in-memory mutation.
type Snapshot struct {
	Account ID
	// Balances holds only the entries changed by the mutation.
	Balances map[Key]decimal.Decimal
	Created  bool
	Deleted  bool
}
