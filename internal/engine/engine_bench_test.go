package engine

import (
	"fmt"
	"testing"
	"time"

	"arbscope/internal/domain"

	"github.com/shopspring/decimal"
)

// BenchmarkEvaluate measures one full evaluation tick across three venues
// with 20-level books, the shape a live feed produces.
func BenchmarkEvaluate(b *testing.B) {
	e := testEngine(freeRegistry("A", "B", "C"))
	books := []*domain.OrderBookSnapshot{
		benchBook("A", 100),
		benchBook("B", 101),
		benchBook("C", 102),
	}
	target := decimal.NewFromInt(10000)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := e.Evaluate("BTC/USDT", target, books); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDepthWalk isolates the two walks on a 50-level side.
func BenchmarkDepthWalk(b *testing.B) {
	book := benchBookDepth("A", 100, 50)
	target := decimal.NewFromInt(50000)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		qty, _ := walkByNotional(book.Asks, target)
		walkByQuantity(book.Asks, qty)
	}
}

func benchBook(venue string, mid int64) *domain.OrderBookSnapshot {
	return benchBookDepth(venue, mid, 20)
}

func benchBookDepth(venue string, mid int64, depth int) *domain.OrderBookSnapshot {
	bids := make([]domain.PriceLevel, depth)
	asks := make([]domain.PriceLevel, depth)
	for i := 0; i < depth; i++ {
		bids[i] = domain.PriceLevel{
			Price: decimal.RequireFromString(fmt.Sprintf("%d.%02d", mid-1-int64(i), 50)),
			Size:  decimal.NewFromInt(int64(i + 1)),
		}
		asks[i] = domain.PriceLevel{
			Price: decimal.RequireFromString(fmt.Sprintf("%d.%02d", mid+1+int64(i), 50)),
			Size:  decimal.NewFromInt(int64(i + 1)),
		}
	}
	return &domain.OrderBookSnapshot{
		Venue:      venue,
		Pair:       "BTC/USDT",
		Bids:       bids,
		Asks:       asks,
		CapturedAt: testNow.Add(-time.Second),
	}
}
