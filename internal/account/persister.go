package account

import "context"

// Persister is the durability hook invoked after each in-memory mutation and
// before the mutation is reported as successful.
type Persister interface {
	Persist(ctx context.Context, snap Snapshot) error
}

// PersisterFunc adapts a function to the Persister interface.
type PersisterFunc func(ctx context.Context, snap Snapshot) error

// Persist calls f.
func (f PersisterFunc) Persist(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

// NopPersister keeps state in memory only.
type NopPersister struct{}

// Persist does nothing.
func (NopPersister) Persist(context.Context, Snapshot) error { return nil }
