package integration

import "github.com/shopspring/decimal"

// amountPlaces matches the NUMERIC(15,2) journal line columns.
const amountPlaces = 2

func roundAmount(value decimal.Decimal) decimal.Decimal {
	return value.Round(amountPlaces)
}
