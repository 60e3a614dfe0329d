package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeBreakdown itemizes the costs subtracted from an opportunity's gross
// spread. Components whose fee data is unknown stay zero and the owning
// opportunity carries FeeIncomplete.
type FeeBreakdown struct {
	BuyLegFee     decimal.Decimal `json:"buy_leg_fee"`
	SellLegFee    decimal.Decimal `json:"sell_leg_fee"`
	WithdrawalFee decimal.Decimal `json:"withdrawal_fee"`
}

// Total returns the sum of all fee components.
func (f FeeBreakdown) Total() decimal.Decimal {
	return f.BuyLegFee.Add(f.SellLegFee).Add(f.WithdrawalFee)
}

// ArbitrageOpportunity is one buy-here-sell-there evaluation for a pair.
// Quantity is bounded by the depth both books offered at computation time;
// NetProfit may be negative so callers can tell "unprofitable" apart from
// "no opportunity". Opportunities are ephemeral and recomputed per tick.
type ArbitrageOpportunity struct {
	BuyVenue  string `json:"buy_venue"`
	SellVenue string `json:"sell_venue"`
	Pair      string `json:"pair"`

	Quantity     decimal.Decimal `json:"quantity"`
	AvgBuyPrice  decimal.Decimal `json:"avg_buy_price"`
	AvgSellPrice decimal.Decimal `json:"avg_sell_price"`
	GrossSpread  decimal.Decimal `json:"gross_spread"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	Fees         FeeBreakdown    `json:"fees"`

	// FeeIncomplete marks that at least one fee component was unknown; the
	// opportunity is excluded from ranked top-N views by default.
	FeeIncomplete bool `json:"fee_incomplete"`
	// LiquidityLimited marks a partial fill: the books ran out before the
	// requested notional was reached.
	LiquidityLimited bool `json:"liquidity_limited"`

	ComputedAt time.Time `json:"computed_at"`
}

// Profitable reports whether the net profit is strictly positive.
func (o *ArbitrageOpportunity) Profitable() bool {
	return o.NetProfit.IsPositive()
}
