package account

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

type record struct {
	mu        sync.RWMutex
	balances  map[Key]decimal.Decimal
	accessors map[ID]Capabilities
	deleted   bool
}

// MemoryStore keeps accounts in memory and serialises mutations per balance
// key. Every mutation is handed to the Persister before it becomes visible.
// The Persister must not call back into the store.
//
// Lock order: key locks (sorted), then mu, then a record's mu.
type MemoryStore struct {
	// mu guards the account set. Create and Delete hold it across the
	// durability hook so the set never diverges from the durable view.
	mu        sync.RWMutex
	accounts  map[ID]*record
	locks     lockTable
	persister Persister
}

// lockTable hands out one mutex per balance key. Entries are dropped once no
// goroutine holds or waits for them.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (t *lockTable) lock(key string) {
	t.mu.Lock()
	if t.locks == nil {
		t.locks = make(map[string]*refLock)
	}
	l, ok := t.locks[key]
	if !ok {
		l = &refLock{}
		t.locks[key] = l
	}
	l.refs++
	t.mu.Unlock()
	l.Lock()
}

func (t *lockTable) unlock(key string) {
	t.mu.Lock()
	l := t.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(t.locks, key)
	}
	t.mu.Unlock()
	l.Unlock()
}

func (t *lockTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// NewMemoryStore creates an empty store. A nil persister keeps state in memory only.
func NewMemoryStore(persister Persister) *MemoryStore {
	if persister == nil {
		persister = NopPersister{}
	}
	return &MemoryStore{
		accounts:  make(map[ID]*record),
		persister: persister,
	}
}

func (s *MemoryStore) persist(ctx context.Context, snap Snapshot) error {
	if err := s.persister.Persist(ctx, snap); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	return nil
}

func (s *MemoryStore) record(id ID) (*record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchAccount, id)
	}
	return rec, nil
}

// lockRefs acquires the key locks in lexicographic order and returns the
// deduplicated, ordered refs together with the release function.
func (s *MemoryStore) lockRefs(refs ...Ref) ([]Ref, func()) {
	ordered := slices.Clone(refs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].String() < ordered[j].String() })
	ordered = slices.CompactFunc(ordered, func(a, b Ref) bool { return a == b })

	for _, ref := range ordered {
		s.locks.lock(ref.String())
	}
	return ordered, func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			s.locks.unlock(ordered[i].String())
		}
	}
}

// Exists reports whether the account exists.
func (s *MemoryStore) Exists(_ context.Context, id ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[id]
	return ok
}

// Create adds an empty account. It reports false without error when the
// account already existed.
func (s *MemoryStore) Create(ctx context.Context, id ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[id]; exists {
		return false, nil
	}
	if err := s.persist(ctx, Snapshot{Account: id, Created: true}); err != nil {
		return false, err
	}
	s.accounts[id] = &record{
		balances:  make(map[Key]decimal.Decimal),
		accessors: make(map[ID]Capabilities),
	}
	return true, nil
}

// Delete removes the account with all balances and accessor entries.
func (s *MemoryStore) Delete(ctx context.Context, id ID) error {
	_, err := s.deleteWhere(ctx, id, nil)
	return err
}

// DeleteIf removes the account only when pred accepts its balances. The check
// and the removal happen while every balance key of the account is locked, so
// an account in the middle of an Atomic call is never judged or removed.
func (s *MemoryStore) DeleteIf(ctx context.Context, id ID, pred func(map[Key]decimal.Decimal) bool) (bool, error) {
	return s.deleteWhere(ctx, id, pred)
}

func (s *MemoryStore) deleteWhere(ctx context.Context, id ID, pred func(map[Key]decimal.Decimal) bool) (bool, error) {
	for {
		refs, err := s.balanceRefs(id)
		if err != nil {
			return false, err
		}
		ordered, unlock := s.lockRefs(refs...)
		removed, retry, err := s.deleteLocked(ctx, id, ordered, pred)
		unlock()
		if !retry {
			return removed, err
		}
	}
}

func (s *MemoryStore) balanceRefs(id ID) ([]Ref, error) {
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	refs := make([]Ref, 0, len(rec.balances))
	for key := range rec.balances {
		refs = append(refs, Ref{Account: id, Key: key})
	}
	return refs, nil
}

// deleteLocked runs with the key locks in held already acquired. It asks for a
// retry when a balance key appeared after the locks were chosen.
func (s *MemoryStore) deleteLocked(ctx context.Context, id ID, held []Ref, pred func(map[Key]decimal.Decimal) bool) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.accounts[id]
	if !ok {
		return false, false, fmt.Errorf("%w: %s", ErrNoSuchAccount, id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.balances) != len(held) {
		return false, true, nil
	}
	for _, ref := range held {
		if _, ok := rec.balances[ref.Key]; !ok {
			return false, true, nil
		}
	}
	if pred != nil && !pred(maps.Clone(rec.balances)) {
		return false, false, nil
	}
	if err := s.persist(ctx, Snapshot{Account: id, Deleted: true}); err != nil {
		return false, false, err
	}
	rec.deleted = true
	delete(s.accounts, id)
	return true, false, nil
}

// ReadBalance returns the balance for key, or zero when it was never written.
func (s *MemoryStore) ReadBalance(_ context.Context, id ID, key Key) (decimal.Decimal, error) {
	rec, err := s.record(id)
	if err != nil {
		return decimal.Zero, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	if rec.deleted {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoSuchAccount, id)
	}
	return rec.balances[key], nil
}

// Balances returns a copy of every balance entry on the account.
func (s *MemoryStore) Balances(_ context.Context, id ID) (map[Key]decimal.Decimal, error) {
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	if rec.deleted {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchAccount, id)
	}
	return maps.Clone(rec.balances), nil
}

// ApplyDelta adds delta to the balance and returns the new value. A delta that
// would leave the balance below zero fails with ErrWouldGoNegative and changes
// nothing.
func (s *MemoryStore) ApplyDelta(ctx context.Context, id ID, key Key, delta decimal.Decimal) (decimal.Decimal, error) {
	_, unlock := s.lockRefs(Ref{Account: id, Key: key})
	defer unlock()
	return s.write(ctx, id, key, add(delta))
}

func add(delta decimal.Decimal) func(decimal.Decimal) (decimal.Decimal, error) {
	return func(old decimal.Decimal) (decimal.Decimal, error) {
		next := old.Add(delta)
		if next.IsNegative() {
			return old, ErrWouldGoNegative
		}
		return next, nil
	}
}

// SetBalance overwrites the balance with value.
func (s *MemoryStore) SetBalance(ctx context.Context, id ID, key Key, value decimal.Decimal) error {
	if value.IsNegative() {
		return ErrNegativeValue
	}
	_, unlock := s.lockRefs(Ref{Account: id, Key: key})
	defer unlock()
	_, err := s.write(ctx, id, key, func(decimal.Decimal) (decimal.Decimal, error) {
		return value, nil
	})
	return err
}

// write applies next to a key whose lock the caller holds. The new value is
// published only after the persister accepted it, and the record lock is held
// throughout so no reader or purge check sees a value that may be undone.
func (s *MemoryStore) write(ctx context.Context, id ID, key Key, next func(decimal.Decimal) (decimal.Decimal, error)) (decimal.Decimal, error) {
	rec, err := s.record(id)
	if err != nil {
		return decimal.Zero, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deleted {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoSuchAccount, id)
	}
	old := rec.balances[key]
	value, err := next(old)
	if err != nil {
		return old, err
	}
	if err := s.persist(ctx, Snapshot{Account: id, Balances: map[Key]decimal.Decimal{key: value}}); err != nil {
		return old, err
	}
	rec.balances[key] = value
	return value, nil
}

type lockedOps struct {
	store  *MemoryStore
	locked map[Ref]struct{}
}

func (o lockedOps) ReadBalance(ctx context.Context, id ID, key Key) (decimal.Decimal, error) {
	return o.store.ReadBalance(ctx, id, key)
}

func (o lockedOps) ApplyDelta(ctx context.Context, id ID, key Key, delta decimal.Decimal) (decimal.Decimal, error) {
	if _, ok := o.locked[Ref{Account: id, Key: key}]; !ok {
		return decimal.Zero, fmt.Errorf("ref %s/%s/%s not locked", id, key.World, key.Currency)
	}
	return o.store.write(ctx, id, key, add(delta))
}

// Atomic locks refs in a fixed global order and runs fn while holding them.
// Two concurrent calls over the same refs in opposite order cannot deadlock.
func (s *MemoryStore) Atomic(_ context.Context, refs []Ref, fn func(Ops) error) error {
	ordered, unlock := s.lockRefs(refs...)
	defer unlock()

	locked := make(map[Ref]struct{}, len(ordered))
	for _, ref := range ordered {
		locked[ref] = struct{}{}
	}
	return fn(lockedOps{store: s, locked: locked})
}

// Accounts yields the account ids present when iteration starts. Accounts
// created afterwards are not visited.
func (s *MemoryStore) Accounts(_ context.Context) iter.Seq[ID] {
	return func(yield func(ID) bool) {
		s.mu.RLock()
		ids := slices.Collect(maps.Keys(s.accounts))
		s.mu.RUnlock()
		slices.Sort(ids)

		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// Grant records caps for accessor on the account, replacing earlier rights.
func (s *MemoryStore) Grant(_ context.Context, id, accessor ID, caps Capabilities) error {
	rec, err := s.record(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deleted {
		return fmt.Errorf("%w: %s", ErrNoSuchAccount, id)
	}
	rec.accessors[accessor] = caps
	return nil
}

// Revoke removes the accessor entry. Revoking an unknown accessor is a no-op.
func (s *MemoryStore) Revoke(_ context.Context, id, accessor ID) error {
	rec, err := s.record(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deleted {
		return fmt.Errorf("%w: %s", ErrNoSuchAccount, id)
	}
	delete(rec.accessors, accessor)
	return nil
}

// Accessor returns the rights of accessor on the account.
func (s *MemoryStore) Accessor(_ context.Context, id, accessor ID) (Capabilities, bool, error) {
	rec, err := s.record(id)
	if err != nil {
		return Capabilities{}, false, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	caps, ok := rec.accessors[accessor]
	return caps, ok, nil
}

// Accessors returns a copy of every accessor entry on the account.
func (s *MemoryStore) Accessors(_ context.Context, id ID) (map[ID]Capabilities, error) {
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return maps.Clone(rec.accessors), nil
}
