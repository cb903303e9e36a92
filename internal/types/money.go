// README: Money helpers; all amounts are decimals rounded half-up to cents.
package types

import "github.com/shopspring/decimal"

const moneyPlaces = 2

// RoundMoney rounds half away from zero, which is half-up for the non-negative
// amounts this service deals with.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
