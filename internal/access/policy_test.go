package access

import (
	"context"
	"testing"

	"github.com/congo-pay/reserve/internal/account"
)

func TestAccessorPolicy(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore(nil)
	shop := account.NamedID("shop")
	clerk, manager, stranger := account.NamedID("clerk"), account.NamedID("manager"), account.NamedID("stranger")
	store.Create(ctx, shop)
	store.Grant(ctx, shop, clerk, DefaultAccessor)
	store.Grant(ctx, shop, manager, account.Capabilities{View: true, Deposit: true, Withdraw: true})

	policy := NewAccessorPolicy(store)

	if !policy.CanView(ctx, shop, shop) || !policy.CanDeposit(ctx, shop, shop) || !policy.CanWithdraw(ctx, shop, shop) {
		t.Fatal("owner must pass every check")
	}
	if !policy.CanView(ctx, clerk, shop) || !policy.CanDeposit(ctx, clerk, shop) {
		t.Fatal("default accessor must view and deposit")
	}
	if policy.CanWithdraw(ctx, clerk, shop) {
		t.Fatal("default accessor must not withdraw")
	}
	if !policy.CanWithdraw(ctx, manager, shop) {
		t.Fatal("accessor granted withdraw must withdraw")
	}
	if policy.CanView(ctx, stranger, shop) || policy.CanDeposit(ctx, stranger, shop) || policy.CanWithdraw(ctx, stranger, shop) {
		t.Fatal("stranger must fail every check")
	}
	if policy.CanView(ctx, clerk, account.NamedID("missing")) {
		t.Fatal("missing account must deny accessors")
	}
}
