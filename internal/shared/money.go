package shared

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits amount columns store.
const MoneyScale = 2

// FitsMoneyScale reports whether d survives storage without rounding.
// Trailing zeros beyond the scale are accepted.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}
