package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var goldKey = Key{World: "", Currency: "gold"}

func TestMemoryStore_CreateIsIdempotent(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	created, err := s.Create(ctx, NamedID("alice"))
	if err != nil || !created {
		t.Fatalf("expected account created, got created=%v err=%v", created, err)
	}
	created, err = s.Create(ctx, NamedID("alice"))
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatal("expected second create to report already existed")
	}
}

func TestMemoryStore_MissingAccount(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	bob := NamedID("bob")

	if s.Exists(ctx, bob) {
		t.Fatal("bob must not exist")
	}
	if _, err := s.ReadBalance(ctx, bob, goldKey); !errors.Is(err, ErrNoSuchAccount) {
		t.Fatalf("expected no such account, got %v", err)
	}
	if _, err := s.ApplyDelta(ctx, bob, goldKey, decimal.NewFromInt(1)); !errors.Is(err, ErrNoSuchAccount) {
		t.Fatalf("expected no such account, got %v", err)
	}
	if err := s.Delete(ctx, bob); !errors.Is(err, ErrNoSuchAccount) {
		t.Fatalf("expected no such account, got %v", err)
	}
	if s.Exists(ctx, bob) {
		t.Fatal("failed operations must not create the account")
	}
}

func TestMemoryStore_ApplyDeltaRejectsNegative(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	id := NamedID("alice")
	SeedBalance(s, id, goldKey, decimal.NewFromInt(10))

	if _, err := s.ApplyDelta(ctx, id, goldKey, decimal.NewFromInt(-11)); !errors.Is(err, ErrWouldGoNegative) {
		t.Fatalf("expected would go negative, got %v", err)
	}
	bal, _ := s.ReadBalance(ctx, id, goldKey)
	if !bal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected balance 10, got %s", bal)
	}

	bal, err := s.ApplyDelta(ctx, id, goldKey, decimal.NewFromInt(-10))
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !bal.IsZero() {
		t.Fatalf("expected zero, got %s", bal)
	}
}

func TestMemoryStore_UnsetKeyReadsZero(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	id := NamedID("alice")
	s.Create(ctx, id)

	bal, err := s.ReadBalance(ctx, id, Key{World: "arena", Currency: "tokens"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bal.IsZero() {
		t.Fatalf("expected zero, got %s", bal)
	}
	balances, _ := s.Balances(ctx, id)
	if len(balances) != 0 {
		t.Fatalf("reading must not create entries, got %d", len(balances))
	}
}

func TestMemoryStore_SetBalance(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	id := NamedID("alice")
	s.Create(ctx, id)

	if err := s.SetBalance(ctx, id, goldKey, decimal.NewFromInt(-1)); !errors.Is(err, ErrNegativeValue) {
		t.Fatalf("expected negative value, got %v", err)
	}
	if err := s.SetBalance(ctx, id, goldKey, decimal.RequireFromString("42.5")); err != nil {
		t.Fatalf("set: %v", err)
	}
	bal, _ := s.ReadBalance(ctx, id, goldKey)
	if !bal.Equal(decimal.RequireFromString("42.5")) {
		t.Fatalf("expected 42.5, got %s", bal)
	}
}

func TestMemoryStore_DeleteRemovesEverything(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	id := NamedID("alice")
	SeedBalance(s, id, goldKey, decimal.NewFromInt(5))
	if err := s.Grant(ctx, id, NamedID("bank"), Capabilities{View: true}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Exists(ctx, id) {
		t.Fatal("account must be gone")
	}

	s.Create(ctx, id)
	bal, _ := s.ReadBalance(ctx, id, goldKey)
	if !bal.IsZero() {
		t.Fatalf("recreated account must start empty, got %s", bal)
	}
	if _, ok, _ := s.Accessor(ctx, id, NamedID("bank")); ok {
		t.Fatal("recreated account must not inherit accessors")
	}
}

func TestMemoryStore_ConcurrentDeltas(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	id := NamedID("alice")
	s.Create(ctx, id)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ApplyDelta(ctx, id, goldKey, decimal.NewFromInt(1)); err != nil {
				t.Errorf("apply: %v", err)
			}
		}()
	}
	wg.Wait()

	bal, _ := s.ReadBalance(ctx, id, goldKey)
	if !bal.Equal(decimal.NewFromInt(workers)) {
		t.Fatalf("expected %d, got %s", workers, bal)
	}
}

func TestMemoryStore_AtomicOppositeOrderDoesNotDeadlock(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	a, b := NamedID("a"), NamedID("b")
	SeedBalance(s, a, goldKey, decimal.NewFromInt(1_000))
	SeedBalance(s, b, goldKey, decimal.NewFromInt(1_000))

	move := func(from, to ID) error {
		refs := []Ref{{Account: from, Key: goldKey}, {Account: to, Key: goldKey}}
		return s.Atomic(ctx, refs, func(ops Ops) error {
			if _, err := ops.ApplyDelta(ctx, from, goldKey, decimal.NewFromInt(-1)); err != nil {
				return err
			}
			_, err := ops.ApplyDelta(ctx, to, goldKey, decimal.NewFromInt(1))
			return err
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = move(a, b) }()
		go func() { defer wg.Done(); _ = move(b, a) }()
	}
	wg.Wait()

	balA, _ := s.ReadBalance(ctx, a, goldKey)
	balB, _ := s.ReadBalance(ctx, b, goldKey)
	if !balA.Add(balB).Equal(decimal.NewFromInt(2_000)) {
		t.Fatalf("money created or destroyed: a=%s b=%s", balA, balB)
	}
}

func TestMemoryStore_AtomicRejectsUnlockedRef(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	a := NamedID("a")
	s.Create(ctx, a)

	err := s.Atomic(ctx, []Ref{{Account: a, Key: goldKey}}, func(ops Ops) error {
		_, err := ops.ApplyDelta(ctx, a, Key{Currency: "silver"}, decimal.NewFromInt(1))
		return err
	})
	if err == nil {
		t.Fatal("expected error for unlocked ref")
	}
}

func TestMemoryStore_PersistFailureLeavesStateUnchanged(t *testing.T) {
	fail := false
	persister := PersisterFunc(func(context.Context, Snapshot) error {
		if fail {
			return fmt.Errorf("disk full")
		}
		return nil
	})
	s := NewMemoryStore(persister)
	ctx := context.Background()
	id := NamedID("alice")
	if _, err := s.Create(ctx, id); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.ApplyDelta(ctx, id, goldKey, decimal.NewFromInt(7)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	fail = true
	if _, err := s.ApplyDelta(ctx, id, goldKey, decimal.NewFromInt(3)); !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected persistence failed, got %v", err)
	}
	silver := Key{Currency: "silver"}
	if err := s.SetBalance(ctx, id, silver, decimal.NewFromInt(1)); !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected persistence failed, got %v", err)
	}
	if err := s.Delete(ctx, id); !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected persistence failed, got %v", err)
	}
	if _, err := s.Create(ctx, NamedID("bob")); !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected persistence failed, got %v", err)
	}

	balances, err := s.Balances(ctx, id)
	if err != nil {
		t.Fatalf("account must survive failed delete: %v", err)
	}
	if len(balances) != 1 || !balances[goldKey].Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected only gold=7 after the failed write, got %v", balances)
	}
	if s.Exists(ctx, NamedID("bob")) {
		t.Fatal("failed create must not leave an account")
	}
}

func TestMemoryStore_AccountsSnapshot(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	s.Create(ctx, NamedID("a"))
	s.Create(ctx, NamedID("b"))

	var seen []ID
	for id := range s.Accounts(ctx) {
		seen = append(seen, id)
		s.Create(ctx, NamedID("late-"+string(id)))
	}
	if len(seen) != 2 {
		t.Fatalf("expected snapshot of 2 accounts, got %v", seen)
	}

	count := 0
	for range s.Accounts(ctx) {
		count++
	}
	if count != 4 {
		t.Fatalf("expected restarted iteration to see 4 accounts, got %d", count)
	}
}

func TestMemoryStore_DeleteIf(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	id := NamedID("alice")
	SeedBalance(s, id, goldKey, decimal.NewFromInt(5))

	deleted, err := s.DeleteIf(ctx, id, func(b map[Key]decimal.Decimal) bool {
		return b[goldKey].IsZero()
	})
	if err != nil || deleted {
		t.Fatalf("expected account kept, got deleted=%v err=%v", deleted, err)
	}

	deleted, err = s.DeleteIf(ctx, id, func(map[Key]decimal.Decimal) bool { return true })
	if err != nil || !deleted {
		t.Fatalf("expected account deleted, got deleted=%v err=%v", deleted, err)
	}
}

func TestMemoryStore_Accessors(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	shop, clerk := NamedID("shop"), NamedID("clerk")
	s.Create(ctx, shop)

	if err := s.Grant(ctx, shop, clerk, Capabilities{View: true, Deposit: true}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	caps, ok, err := s.Accessor(ctx, shop, clerk)
	if err != nil || !ok || caps.Withdraw || !caps.Deposit {
		t.Fatalf("unexpected accessor state: %+v ok=%v err=%v", caps, ok, err)
	}
	if err := s.Revoke(ctx, shop, clerk); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	all, _ := s.Accessors(ctx, shop)
	if len(all) != 0 {
		t.Fatalf("expected no accessors, got %v", all)
	}
	if err := s.Grant(ctx, NamedID("ghost"), clerk, Capabilities{}); !errors.Is(err, ErrNoSuchAccount) {
		t.Fatalf("expected no such account, got %v", err)
	}
}

func TestMemoryStore_DeleteIfWaitsForAtomic(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	id := NamedID("alice")
	SeedBalance(s, id, goldKey, decimal.NewFromInt(100))
	allZero := func(b map[Key]decimal.Decimal) bool {
		for _, v := range b {
			if !v.IsZero() {
				return false
			}
		}
		return true
	}

	type result struct {
		removed bool
		err     error
	}
	done := make(chan result, 1)
	ref := Ref{Account: id, Key: goldKey}
	err := s.Atomic(ctx, []Ref{ref}, func(ops Ops) error {
		if _, err := ops.ApplyDelta(ctx, id, goldKey, decimal.NewFromInt(-100)); err != nil {
			return err
		}
		go func() {
			removed, err := s.DeleteIf(ctx, id, allZero)
			done <- result{removed, err}
		}()
		select {
		case r := <-done:
			t.Errorf("delete finished while the balance key was locked: %+v", r)
		case <-time.After(50 * time.Millisecond):
		}
		_, err := ops.ApplyDelta(ctx, id, goldKey, decimal.NewFromInt(100))
		return err
	})
	if err != nil {
		t.Fatalf("atomic: %v", err)
	}

	r := <-done
	if r.err != nil || r.removed {
		t.Fatalf("expected account kept, got removed=%v err=%v", r.removed, r.err)
	}
	if got, _ := s.ReadBalance(ctx, id, goldKey); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected 100, got %s", got)
	}
}

func TestMemoryStore_FailedWriteIsNeverVisible(t *testing.T) {
	id := NamedID("alice")
	var (
		s       *MemoryStore
		wg      sync.WaitGroup
		seen    decimal.Decimal
		removed bool
		delErr  error
	)
	s = NewMemoryStore(PersisterFunc(func(ctx context.Context, snap Snapshot) error {
		if snap.Deleted || len(snap.Balances) == 0 {
			return nil
		}
		wg.Add(2)
		go func() {
			defer wg.Done()
			seen, _ = s.ReadBalance(ctx, id, goldKey)
		}()
		go func() {
			defer wg.Done()
			removed, delErr = s.DeleteIf(ctx, id, func(b map[Key]decimal.Decimal) bool {
				return b[goldKey].IsZero()
			})
		}()
		time.Sleep(20 * time.Millisecond)
		return errors.New("disk full")
	}))
	ctx := context.Background()
	SeedBalance(s, id, goldKey, decimal.NewFromInt(100))

	if _, err := s.ApplyDelta(ctx, id, goldKey, decimal.NewFromInt(-100)); !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	wg.Wait()

	if !seen.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("reader observed unpersisted balance %s", seen)
	}
	if delErr != nil || removed {
		t.Fatalf("expected account kept, got removed=%v err=%v", removed, delErr)
	}
	if !s.Exists(ctx, id) {
		t.Fatal("account vanished after a failed write")
	}
}

func TestMemoryStore_KeyLocksArePruned(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NamedID(fmt.Sprintf("user-%d", i%5))
			key := Key{World: fmt.Sprintf("w%d", i), Currency: "gold"}
			s.ApplyDelta(ctx, id, key, decimal.NewFromInt(1))
			s.Atomic(ctx, []Ref{{Account: id, Key: key}, {Account: id, Key: goldKey}}, func(Ops) error { return nil })
		}()
	}
	wg.Wait()

	if n := s.locks.len(); n != 0 {
		t.Fatalf("expected no lingering key locks, got %d", n)
	}
}
