// Package engine computes fee- and liquidity-aware arbitrage opportunities
// from the latest order-book snapshots of competing venues.
package engine

import (
	"arbscope/internal/domain"

	"github.com/shopspring/decimal"
)

// walkByNotional consumes levels from the best price outward until the
// accumulated notional reaches target or the book is exhausted. It returns
// the filled quantity and whether the book ran out first.
func walkByNotional(levels []domain.PriceLevel, target decimal.Decimal) (qty decimal.Decimal, exhausted bool) {
	remaining := target
	for _, lvl := range levels {
		levelNotional := lvl.Price.Mul(lvl.Size)
		if levelNotional.GreaterThanOrEqual(remaining) {
			qty = qty.Add(remaining.Div(lvl.Price))
			return qty, false
		}
		qty = qty.Add(lvl.Size)
		remaining = remaining.Sub(levelNotional)
	}
	return qty, true
}

// walkByQuantity consumes levels from the best price outward until target
// quantity is filled, returning the filled quantity, its volume-weighted
// average price and whether the book was exhausted first.
func walkByQuantity(levels []domain.PriceLevel, target decimal.Decimal) (qty, avgPrice decimal.Decimal, exhausted bool) {
	var notional decimal.Decimal
	remaining := target
	for _, lvl := range levels {
		take := lvl.Size
		if take.GreaterThanOrEqual(remaining) {
			take = remaining
		}
		qty = qty.Add(take)
		notional = notional.Add(lvl.Price.Mul(take))
		remaining = remaining.Sub(take)
		if !remaining.IsPositive() {
			avgPrice = notional.Div(qty)
			return qty, avgPrice, false
		}
	}
	if qty.IsPositive() {
		avgPrice = notional.Div(qty)
	}
	return qty, avgPrice, true
}
