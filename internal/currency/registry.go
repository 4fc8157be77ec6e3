package currency

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

var (
	// ErrNoSuchCurrency occurs when no currency resolves for a request.
	ErrNoSuchCurrency = errors.New("no such currency")

	// ErrDuplicateCurrency indicates a currency with the same name (ignoring case)
	// is already registered.
	ErrDuplicateCurrency = errors.New("duplicate currency")

	// ErrDefaultConflict indicates a second global default, or a second default
	// for the same world, was declared.
	ErrDefaultConflict = errors.New("default currency conflict")

	// ErrInvalidCurrency is returned for currencies missing a name or display name.
	ErrInvalidCurrency = errors.New("invalid currency")
)

// Registry holds the known currencies together with the global and per-world
// defaults. It is safe for concurrent use.
type Registry struct {
	mu            sync.RWMutex
	byName        map[string]Currency
	worldDefaults map[string]string
	globalDefault string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:        make(map[string]Currency),
		worldDefaults: make(map[string]string),
	}
}

// Register adds a currency. Names are unique regardless of case.
func (r *Registry) Register(c Currency) error {
	key := c.Key()
	if key == "" || c.Singular == "" {
		return fmt.Errorf("%w: name and singular are required", ErrInvalidCurrency)
	}
	if c.Plural == "" {
		c.Plural = c.Singular
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCurrency, c.Name)
	}
	if c.Default && r.globalDefault != "" {
		return fmt.Errorf("%w: global default already %s", ErrDefaultConflict, r.globalDefault)
	}
	for _, world := range c.Worlds {
		if current, ok := r.worldDefaults[world]; ok {
			return fmt.Errorf("%w: world %q already defaults to %s", ErrDefaultConflict, world, current)
		}
	}

	c.Worlds = slices.Clone(c.Worlds)
	r.byName[key] = c
	if c.Default {
		r.globalDefault = key
	}
	for _, world := range c.Worlds {
		r.worldDefaults[world] = key
	}
	return nil
}

// Resolve picks the currency for a request: the explicit name when given,
// otherwise the world's default, otherwise the global default. An explicit
// name that is not registered fails rather than falling through.
func (r *Registry) Resolve(name, world string) (Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if key := canonical(name); key != "" {
		c, ok := r.lookup(key)
		if !ok {
			return Currency{}, fmt.Errorf("%w: %s", ErrNoSuchCurrency, name)
		}
		return c, nil
	}
	return r.defaultLocked(world)
}

// Default returns the default currency for the world, falling back to the
// global default when the world has none.
func (r *Registry) Default(world string) (Currency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultLocked(world)
}

func (r *Registry) defaultLocked(world string) (Currency, error) {
	if world != NoWorld {
		if key, ok := r.worldDefaults[world]; ok {
			c, _ := r.lookup(key)
			return c, nil
		}
	}
	if r.globalDefault != "" {
		c, _ := r.lookup(r.globalDefault)
		return c, nil
	}
	return Currency{}, ErrNoSuchCurrency
}

// lookup returns a copy that shares no memory with the registry.
func (r *Registry) lookup(key string) (Currency, bool) {
	c, ok := r.byName[key]
	c.Worlds = slices.Clone(c.Worlds)
	return c, ok
}

// Has reports whether a currency with the name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[canonical(name)]
	return ok
}

// HasIn reports whether the currency is usable in the world. Worlds only change
// which currency is the default, so this always agrees with Has.
func (r *Registry) HasIn(name, _ string) bool {
	return r.Has(name)
}

// List returns every registered currency ordered by name.
func (r *Registry) List() []Currency {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Currency, 0, len(r.byName))
	for key := range r.byName {
		c, _ := r.lookup(key)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
