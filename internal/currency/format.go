package currency

import "github.com/shopspring/decimal"

// Format renders amount in the currency's display form: the optional symbol,
// the number fixed to DecimalPlaces and the singular or plural name.
//
// The singular name is used only when the amount, rounded to the currency's
// grain, is exactly one unit.
func (c Currency) Format(amount decimal.Decimal) string {
	places := int32(c.DecimalPlaces)
	name := c.Plural
	if amount.Round(places).Equal(decimal.NewFromInt(1)) {
		name = c.Singular
	}
	return c.Symbol + amount.StringFixed(places) + " " + name
}

// Fits reports whether amount can be represented at the currency's grain
// without rounding.
func (c Currency) Fits(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(int32(c.DecimalPlaces)))
}
