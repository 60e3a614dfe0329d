package engine

import (
	"sort"
	"time"

	"arbscope/internal/domain"
	"arbscope/internal/fees"

	"github.com/shopspring/decimal"
)

// DefaultStaleness is used when no threshold is configured.
const DefaultStaleness = 5 * time.Second

// VenueExclusion records why a venue sat out an evaluation.
type VenueExclusion struct {
	Venue  string `json:"venue"`
	Reason error  `json:"-"`
}

// Result is one evaluation of a pair across venues. Opportunities are
// sorted best net profit first and include unprofitable and fee-incomplete
// entries; Excluded names every venue that was skipped and why.
type Result struct {
	Pair          string
	Opportunities []domain.ArbitrageOpportunity
	Excluded      []VenueExclusion
	ComputedAt    time.Time
}

// Top returns the best n opportunities by ranking order, skipping entries
// with incomplete fee data. Callers that want those read Opportunities.
func (r Result) Top(n int) []domain.ArbitrageOpportunity {
	out := make([]domain.ArbitrageOpportunity, 0, n)
	for _, opp := range r.Opportunities {
		if opp.FeeIncomplete {
			continue
		}
		out = append(out, opp)
		if len(out) == n {
			break
		}
	}
	return out
}

// Engine evaluates arbitrage opportunities. It is stateless between calls;
// callers pass point-in-time book copies so no lock spans a depth walk.
type Engine struct {
	fees      *fees.Registry
	staleness time.Duration
	now       func() time.Time
}

// New creates an engine with the given staleness threshold. A zero
// threshold falls back to DefaultStaleness.
func New(registry *fees.Registry, staleness time.Duration) *Engine {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Engine{
		fees:      registry,
		staleness: staleness,
		now:       time.Now,
	}
}

// Evaluate walks every ordered (buy, sell) venue combination holding a
// fresh snapshot for pair and returns the ranked opportunities.
func (e *Engine) Evaluate(pair string, targetNotional decimal.Decimal, books []*domain.OrderBookSnapshot) (Result, error) {
	if !targetNotional.IsPositive() {
		return Result{}, domain.ErrInvalidNotional
	}

	now := e.now()
	result := Result{Pair: pair, ComputedAt: now}

	fresh := make([]*domain.OrderBookSnapshot, 0, len(books))
	for _, book := range books {
		if book == nil || book.Pair != pair {
			continue
		}
		if book.IsStale(now, e.staleness) {
			result.Excluded = append(result.Excluded, VenueExclusion{
				Venue: book.Venue,
				Reason: &domain.StaleSnapshotError{
					Venue:     book.Venue,
					Age:       book.Age(now),
					Threshold: e.staleness,
				},
			})
			continue
		}
		if len(book.Bids) == 0 || len(book.Asks) == 0 {
			result.Excluded = append(result.Excluded, VenueExclusion{
				Venue:  book.Venue,
				Reason: domain.ErrEmptyBookSide,
			})
			continue
		}
		fresh = append(fresh, book)
	}

	// A pair listed on fewer than two venues yields no opportunities.
	for _, buy := range fresh {
		for _, sell := range fresh {
			if buy.Venue == sell.Venue {
				continue
			}
			if opp, ok := e.evaluateLeg(pair, targetNotional, buy, sell, now); ok {
				result.Opportunities = append(result.Opportunities, opp)
			}
		}
	}

	sortOpportunities(result.Opportunities)
	return result, nil
}

// evaluateLeg prices buying on buy's ask side and selling on sell's bid
// side, capping the quantity at what both books can absorb.
func (e *Engine) evaluateLeg(pair string, targetNotional decimal.Decimal, buy, sell *domain.OrderBookSnapshot, now time.Time) (domain.ArbitrageOpportunity, bool) {
	buyQty, buyExhausted := walkByNotional(buy.Asks, targetNotional)
	if !buyQty.IsPositive() {
		return domain.ArbitrageOpportunity{}, false
	}

	// Sell the bought quantity into the bid side; the tradable quantity is
	// whatever the thinner book supports.
	sellQty, _, sellExhausted := walkByQuantity(sell.Bids, buyQty)
	if !sellQty.IsPositive() {
		return domain.ArbitrageOpportunity{}, false
	}
	qty := sellQty // min of the two walks: sellQty <= buyQty by construction

	_, avgBuy, _ := walkByQuantity(buy.Asks, qty)
	_, avgSell, _ := walkByQuantity(sell.Bids, qty)

	gross := avgSell.Sub(avgBuy).Mul(qty)

	var breakdown domain.FeeBreakdown
	feeIncomplete := false

	if sched, ok := e.fees.Lookup(buy.Venue); ok {
		breakdown.BuyLegFee = avgBuy.Mul(qty).Mul(sched.Taker)
	} else {
		feeIncomplete = true
	}
	if sched, ok := e.fees.Lookup(sell.Venue); ok {
		breakdown.SellLegFee = avgSell.Mul(qty).Mul(sched.Taker)
	} else {
		feeIncomplete = true
	}

	// The base asset moves from the buy venue to the sell venue, so the
	// buy venue's withdrawal fee applies, valued at the realized sell
	// price.
	if fee, ok := e.fees.WithdrawalFee(buy.Venue, domain.BaseAsset(pair)); ok {
		breakdown.WithdrawalFee = fee.Mul(avgSell)
	} else {
		feeIncomplete = true
	}

	return domain.ArbitrageOpportunity{
		BuyVenue:         buy.Venue,
		SellVenue:        sell.Venue,
		Pair:             pair,
		Quantity:         qty,
		AvgBuyPrice:      avgBuy,
		AvgSellPrice:     avgSell,
		GrossSpread:      gross,
		NetProfit:        gross.Sub(breakdown.Total()),
		Fees:             breakdown,
		FeeIncomplete:    feeIncomplete,
		LiquidityLimited: buyExhausted || sellExhausted,
		ComputedAt:       now,
	}, true
}

// sortOpportunities orders by net profit descending, then larger quantity,
// then (buyVenue, sellVenue) lexicographically.
func sortOpportunities(opps []domain.ArbitrageOpportunity) {
	sort.Slice(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if !a.NetProfit.Equal(b.NetProfit) {
			return a.NetProfit.GreaterThan(b.NetProfit)
		}
		if !a.Quantity.Equal(b.Quantity) {
			return a.Quantity.GreaterThan(b.Quantity)
		}
		if a.BuyVenue != b.BuyVenue {
			return a.BuyVenue < b.BuyVenue
		}
		return a.SellVenue < b.SellVenue
	})
}
