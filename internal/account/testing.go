package account

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that writes a balance directly into a
// MemoryStore, creating the account when missing and bypassing the persister.
func SeedBalance(s Store, id ID, key Key, amount decimal.Decimal) {
	mem, ok := s.(*MemoryStore)
	if !ok {
		return
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	rec, exists := mem.accounts[id]
	if !exists {
		rec = &record{
			balances:  make(map[Key]decimal.Decimal),
			accessors: make(map[ID]Capabilities),
		}
		mem.accounts[id] = rec
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.balances[key] = amount
}
