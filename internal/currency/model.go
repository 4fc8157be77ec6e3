package currency

import "strings"

// NoWorld is the world-agnostic scope used for global balances.
const NoWorld = ""

// Currency describes a named unit of value and how it is displayed.
type Currency struct {
	Name          string
	Singular      string
	Plural        string
	DecimalPlaces uint8
	Symbol        string
	// Worlds lists the worlds that use this currency as their default.
	Worlds []string
	// Default marks the global default currency.
	Default bool
}

// Key returns the canonical, case-insensitive lookup key for the currency.
func (c Currency) Key() string {
	return canonical(c.Name)
}

func canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
