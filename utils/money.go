package utils

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits stored for amounts.
const MoneyScale = 2

// RoundMoney rounds d to MoneyScale places (half away from zero).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// MaxMoney is the largest value a numeric(18,2) column holds.
var MaxMoney = decimal.RequireFromString("9999999999999999.99")

// MoneyInRange reports whether d, once rounded, is positive and fits the
// money columns.
func MoneyInRange(d decimal.Decimal) bool {
	r := RoundMoney(d)
	return r.IsPositive() && r.LessThanOrEqual(MaxMoney)
}
