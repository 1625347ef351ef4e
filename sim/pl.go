package sim

import "github.com/shopspring/decimal"

// UnrealizedPL is the mark-to-market gain of the position at price, against
// its entry cost and ignoring exit costs.
func UnrealizedPL(p Position, price float64) decimal.Decimal {
	return p.MarketValue(price).Sub(p.EntryCost)
}

// RealizedPL is what closing the position at price would book.
func RealizedPL(p Position, price float64, costs CostModel) decimal.Decimal {
	return costs.SellProceeds(p.Shares, price).Sub(p.EntryCost)
}
