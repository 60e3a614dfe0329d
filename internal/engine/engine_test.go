package engine

import (
	"errors"
	"testing"
	"time"

	"arbscope/internal/domain"
	"arbscope/internal/fees"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func book(venue string, bids, asks []domain.PriceLevel) *domain.OrderBookSnapshot {
	return &domain.OrderBookSnapshot{
		Venue:      venue,
		Pair:       "BTC/USDT",
		Bids:       bids,
		Asks:       asks,
		CapturedAt: testNow.Add(-time.Second),
	}
}

func freeRegistry(venues ...string) *fees.Registry {
	schedules := make([]domain.FeeSchedule, 0, len(venues))
	for _, v := range venues {
		schedules = append(schedules, domain.FeeSchedule{
			Venue:          v,
			Taker:          decimal.Zero,
			WithdrawalFees: map[string]decimal.Decimal{"BTC": decimal.Zero},
		})
	}
	return fees.NewRegistry(schedules)
}

func testEngine(registry *fees.Registry) *Engine {
	e := New(registry, 5*time.Second)
	e.now = func() time.Time { return testNow }
	return e
}

func TestEvaluateDepthWalk(t *testing.T) {
	e := testEngine(freeRegistry("A", "B"))
	books := []*domain.OrderBookSnapshot{
		book("A", []domain.PriceLevel{lvl("99", "1")}, []domain.PriceLevel{lvl("100", "2"), lvl("101", "3")}),
		book("B", []domain.PriceLevel{lvl("103", "1"), lvl("102", "4")}, []domain.PriceLevel{lvl("104", "1")}),
	}

	result, err := e.Evaluate("BTC/USDT", dec("200"), books)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Opportunities) != 2 {
		t.Fatalf("got %d opportunities, want 2 (both directions)", len(result.Opportunities))
	}

	best := result.Opportunities[0]
	if best.BuyVenue != "A" || best.SellVenue != "B" {
		t.Fatalf("best direction = buy %s sell %s, want buy A sell B", best.BuyVenue, best.SellVenue)
	}
	if !best.Quantity.Equal(dec("2")) {
		t.Errorf("quantity = %s, want 2", best.Quantity)
	}
	if !best.AvgBuyPrice.Equal(dec("100")) {
		t.Errorf("avg buy = %s, want 100", best.AvgBuyPrice)
	}
	if !best.AvgSellPrice.Equal(dec("102.5")) {
		t.Errorf("avg sell = %s, want 102.5", best.AvgSellPrice)
	}
	if !best.GrossSpread.Equal(dec("5")) {
		t.Errorf("gross spread = %s, want 5", best.GrossSpread)
	}
	if !best.NetProfit.Equal(dec("5")) {
		t.Errorf("net profit with zero fees = %s, want 5", best.NetProfit)
	}
	if best.LiquidityLimited {
		t.Error("both books absorbed the target, should not be liquidity limited")
	}

	// The reverse direction loses money but is still reported.
	worst := result.Opportunities[1]
	if worst.BuyVenue != "B" || worst.SellVenue != "A" {
		t.Fatalf("second direction = buy %s sell %s, want buy B sell A", worst.BuyVenue, worst.SellVenue)
	}
	if worst.NetProfit.IsPositive() {
		t.Errorf("reverse direction should be unprofitable, got %s", worst.NetProfit)
	}
}

func TestEvaluateFeesApplied(t *testing.T) {
	registry := fees.NewRegistry([]domain.FeeSchedule{
		{
			Venue:          "A",
			Taker:          dec("0.001"),
			WithdrawalFees: map[string]decimal.Decimal{"BTC": dec("0.0002")},
		},
		{
			Venue:          "B",
			Taker:          dec("0.001"),
			WithdrawalFees: map[string]decimal.Decimal{"BTC": dec("0.0003")},
		},
	})
	e := testEngine(registry)
	books := []*domain.OrderBookSnapshot{
		book("A", []domain.PriceLevel{lvl("99", "1")}, []domain.PriceLevel{lvl("100", "2"), lvl("101", "3")}),
		book("B", []domain.PriceLevel{lvl("103", "1"), lvl("102", "4")}, []domain.PriceLevel{lvl("104", "1")}),
	}

	result, err := e.Evaluate("BTC/USDT", dec("200"), books)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	best := result.Opportunities[0]
	if best.FeeIncomplete {
		t.Fatal("all fees are known, should not be flagged incomplete")
	}
	// Buy leg: 100 * 2 * 0.001. Sell leg: 102.5 * 2 * 0.001.
	// Withdrawal: buy venue's 0.0002 BTC valued at the 102.5 sell price.
	if !best.Fees.BuyLegFee.Equal(dec("0.2")) {
		t.Errorf("buy leg fee = %s, want 0.2", best.Fees.BuyLegFee)
	}
	if !best.Fees.SellLegFee.Equal(dec("0.205")) {
		t.Errorf("sell leg fee = %s, want 0.205", best.Fees.SellLegFee)
	}
	if !best.Fees.WithdrawalFee.Equal(dec("0.0205")) {
		t.Errorf("withdrawal fee = %s, want 0.0205", best.Fees.WithdrawalFee)
	}
	if !best.NetProfit.Equal(dec("4.5745")) {
		t.Errorf("net profit = %s, want 4.5745", best.NetProfit)
	}
}

func TestEvaluateUnknownFeesFlagged(t *testing.T) {
	// C has no fee schedule at all.
	e := testEngine(freeRegistry("A", "B"))
	books := []*domain.OrderBookSnapshot{
		book("A", []domain.PriceLevel{lvl("99", "5")}, []domain.PriceLevel{lvl("100", "5")}),
		book("B", []domain.PriceLevel{lvl("101", "5")}, []domain.PriceLevel{lvl("102", "5")}),
		book("C", []domain.PriceLevel{lvl("105", "5")}, []domain.PriceLevel{lvl("106", "5")}),
	}

	result, err := e.Evaluate("BTC/USDT", dec("100"), books)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Opportunities) != 6 {
		t.Fatalf("got %d opportunities, want 6", len(result.Opportunities))
	}

	for _, opp := range result.Opportunities {
		touchesC := opp.BuyVenue == "C" || opp.SellVenue == "C"
		if touchesC != opp.FeeIncomplete {
			t.Errorf("buy %s sell %s: FeeIncomplete = %v", opp.BuyVenue, opp.SellVenue, opp.FeeIncomplete)
		}
		if touchesC && !opp.Fees.Total().IsZero() {
			t.Errorf("unknown fees must not be guessed at, got total %s", opp.Fees.Total())
		}
	}

	for _, opp := range result.Top(10) {
		if opp.BuyVenue == "C" || opp.SellVenue == "C" {
			t.Errorf("Top must skip fee-incomplete entries, found buy %s sell %s", opp.BuyVenue, opp.SellVenue)
		}
	}
}

func TestEvaluateStaleVenueExcluded(t *testing.T) {
	e := testEngine(freeRegistry("A", "B"))
	stale := book("B", []domain.PriceLevel{lvl("103", "1")}, []domain.PriceLevel{lvl("104", "1")})
	stale.CapturedAt = testNow.Add(-10 * time.Second)
	books := []*domain.OrderBookSnapshot{
		book("A", []domain.PriceLevel{lvl("99", "1")}, []domain.PriceLevel{lvl("100", "2")}),
		stale,
	}

	result, err := e.Evaluate("BTC/USDT", dec("100"), books)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Opportunities) != 0 {
		t.Errorf("one fresh venue cannot produce opportunities, got %d", len(result.Opportunities))
	}
	if len(result.Excluded) != 1 || result.Excluded[0].Venue != "B" {
		t.Fatalf("excluded = %+v, want venue B", result.Excluded)
	}

	var sse *domain.StaleSnapshotError
	if !errors.As(result.Excluded[0].Reason, &sse) {
		t.Fatalf("exclusion reason = %T, want *domain.StaleSnapshotError", result.Excluded[0].Reason)
	}
	if sse.Age != 10*time.Second || sse.Threshold != 5*time.Second {
		t.Errorf("reason = %+v, want age 10s threshold 5s", sse)
	}
}

func TestEvaluateEmptySideExcluded(t *testing.T) {
	e := testEngine(freeRegistry("A", "B"))
	books := []*domain.OrderBookSnapshot{
		book("A", []domain.PriceLevel{lvl("99", "1")}, []domain.PriceLevel{lvl("100", "2")}),
		book("B", nil, []domain.PriceLevel{lvl("104", "1")}),
	}

	result, err := e.Evaluate("BTC/USDT", dec("100"), books)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Excluded) != 1 || result.Excluded[0].Venue != "B" {
		t.Fatalf("excluded = %+v, want venue B", result.Excluded)
	}
	if !errors.Is(result.Excluded[0].Reason, domain.ErrEmptyBookSide) {
		t.Errorf("reason = %v, want ErrEmptyBookSide", result.Excluded[0].Reason)
	}
}

func TestEvaluateLiquidityLimited(t *testing.T) {
	e := testEngine(freeRegistry("A", "B"))
	books := []*domain.OrderBookSnapshot{
		book("A", []domain.PriceLevel{lvl("99", "1")}, []domain.PriceLevel{lvl("100", "2"), lvl("101", "3")}),
		book("B", []domain.PriceLevel{lvl("103", "1"), lvl("102", "4")}, []domain.PriceLevel{lvl("104", "1")}),
	}

	// Far more notional than either book holds.
	result, err := e.Evaluate("BTC/USDT", dec("100000"), books)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	best := result.Opportunities[0]
	if !best.LiquidityLimited {
		t.Error("exhausted books should flag the opportunity liquidity limited")
	}
	if !best.Quantity.Equal(dec("5")) {
		t.Errorf("quantity = %s, want the 5 units both books support", best.Quantity)
	}
}

func TestEvaluateSellSideThinner(t *testing.T) {
	e := testEngine(freeRegistry("A", "B"))
	books := []*domain.OrderBookSnapshot{
		book("A", []domain.PriceLevel{lvl("99", "1")}, []domain.PriceLevel{lvl("100", "2")}),
		book("B", []domain.PriceLevel{lvl("103", "1")}, []domain.PriceLevel{lvl("104", "1")}),
	}

	result, err := e.Evaluate("BTC/USDT", dec("200"), books)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	best := result.Opportunities[0]
	if !best.Quantity.Equal(dec("1")) {
		t.Errorf("quantity = %s, want the 1 unit the bid side absorbs", best.Quantity)
	}
	if !best.AvgBuyPrice.Equal(dec("100")) || !best.AvgSellPrice.Equal(dec("103")) {
		t.Errorf("prices = %s/%s, want 100/103 at the reduced quantity", best.AvgBuyPrice, best.AvgSellPrice)
	}
	if !best.LiquidityLimited {
		t.Error("a capped sell side should flag the opportunity liquidity limited")
	}
}

func TestEvaluateInvalidNotional(t *testing.T) {
	e := testEngine(freeRegistry("A"))

	if _, err := e.Evaluate("BTC/USDT", decimal.Zero, nil); !errors.Is(err, domain.ErrInvalidNotional) {
		t.Errorf("zero notional: err = %v, want ErrInvalidNotional", err)
	}
	if _, err := e.Evaluate("BTC/USDT", dec("-5"), nil); !errors.Is(err, domain.ErrInvalidNotional) {
		t.Errorf("negative notional: err = %v, want ErrInvalidNotional", err)
	}
}

func TestEvaluateSingleVenue(t *testing.T) {
	e := testEngine(freeRegistry("A"))
	books := []*domain.OrderBookSnapshot{
		book("A", []domain.PriceLevel{lvl("99", "1")}, []domain.PriceLevel{lvl("100", "2")}),
	}

	result, err := e.Evaluate("BTC/USDT", dec("100"), books)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Opportunities) != 0 {
		t.Errorf("single venue should yield no opportunities, got %d", len(result.Opportunities))
	}
	if len(result.Excluded) != 0 {
		t.Errorf("a fresh venue should not be excluded, got %+v", result.Excluded)
	}
}

func TestSortOpportunities(t *testing.T) {
	opps := []domain.ArbitrageOpportunity{
		{BuyVenue: "B", SellVenue: "A", NetProfit: dec("1"), Quantity: dec("2")},
		{BuyVenue: "A", SellVenue: "C", NetProfit: dec("3"), Quantity: dec("1")},
		{BuyVenue: "A", SellVenue: "B", NetProfit: dec("1"), Quantity: dec("2")},
		{BuyVenue: "C", SellVenue: "A", NetProfit: dec("1"), Quantity: dec("5")},
		{BuyVenue: "D", SellVenue: "A", NetProfit: dec("-2"), Quantity: dec("9")},
	}
	sortOpportunities(opps)

	wantOrder := []string{"A>C", "C>A", "A>B", "B>A", "D>A"}
	for i, want := range wantOrder {
		got := opps[i].BuyVenue + ">" + opps[i].SellVenue
		if got != want {
			t.Fatalf("position %d: got %s, want %s (full order %+v)", i, got, want, opps)
		}
	}
}

func TestResultTop(t *testing.T) {
	r := Result{Opportunities: []domain.ArbitrageOpportunity{
		{BuyVenue: "A", SellVenue: "B", NetProfit: dec("5")},
		{BuyVenue: "A", SellVenue: "C", NetProfit: dec("4"), FeeIncomplete: true},
		{BuyVenue: "B", SellVenue: "A", NetProfit: dec("3")},
		{BuyVenue: "C", SellVenue: "A", NetProfit: dec("2")},
	}}

	top := r.Top(2)
	if len(top) != 2 {
		t.Fatalf("Top(2) returned %d entries", len(top))
	}
	if top[0].SellVenue != "B" || top[1].BuyVenue != "B" {
		t.Errorf("Top(2) = %+v, fee-incomplete entry should be skipped", top)
	}

	if got := r.Top(10); len(got) != 3 {
		t.Errorf("Top(10) = %d entries, want the 3 fee-complete ones", len(got))
	}
}
