// Package access decides whether an actor may view, deposit into or withdraw
// from an account.
package access

import (
	"context"

	"github.com/congo-pay/reserve/internal/account"
)

// DefaultAccessor are the rights granted when an accessor is added without an
// explicit capability set.
var DefaultAccessor = account.Capabilities{View: true, Deposit: true}

// Policy evaluates account access. Implementations never mutate state.
type Policy interface {
	CanView(ctx context.Context, actor, target account.ID) bool
	CanDeposit(ctx context.Context, actor, target account.ID) bool
	CanWithdraw(ctx context.Context, actor, target account.ID) bool
}

// AccessorSource looks up the rights an accessor holds on an account.
type AccessorSource interface {
	Accessor(ctx context.Context, id, accessor account.ID) (account.Capabilities, bool, error)
}

// AccessorPolicy grants owners every right and accessors the capabilities
// recorded on the account.
type AccessorPolicy struct {
	source AccessorSource
}

// NewAccessorPolicy builds a policy reading accessor entries from source.
func NewAccessorPolicy(source AccessorSource) *AccessorPolicy {
	return &AccessorPolicy{source: source}
}

func (p *AccessorPolicy) capabilities(ctx context.Context, actor, target account.ID) account.Capabilities {
	if actor == target {
		return account.Capabilities{View: true, Deposit: true, Withdraw: true}
	}
	caps, ok, err := p.source.Accessor(ctx, target, actor)
	if err != nil || !ok {
		return account.Capabilities{}
	}
	return caps
}

// CanView reports whether actor may read target's balances.
func (p *AccessorPolicy) CanView(ctx context.Context, actor, target account.ID) bool {
	return p.capabilities(ctx, actor, target).View
}

// CanDeposit reports whether actor may credit target.
func (p *AccessorPolicy) CanDeposit(ctx context.Context, actor, target account.ID) bool {
	return p.capabilities(ctx, actor, target).Deposit
}

// CanWithdraw reports whether actor may debit target.
func (p *AccessorPolicy) CanWithdraw(ctx context.Context, actor, target account.ID) bool {
	return p.capabilities(ctx, actor, target).Withdraw
}
