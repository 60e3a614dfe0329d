package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single order-book level: outstanding size at a price.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBookSnapshot is one venue's book for a pair at a capture instant.
// Bids are sorted by price descending, asks ascending. A snapshot is never
// mutated after ingestion; a newer snapshot for the same (venue, pair)
// supersedes the older one.
type OrderBookSnapshot struct {
	Venue      string       `json:"venue"`
	Pair       string       `json:"pair"`
	Bids       []PriceLevel `json:"bids"`
	Asks       []PriceLevel `json:"asks"`
	CapturedAt time.Time    `json:"captured_at"`
}

// Validate checks the book invariants: non-empty identifiers, strictly
// descending bids, strictly ascending asks, positive prices and sizes.
func (s *OrderBookSnapshot) Validate() error {
	if s.Venue == "" || s.Pair == "" {
		return fmt.Errorf("snapshot missing venue or pair: %q/%q", s.Venue, s.Pair)
	}
	if s.CapturedAt.IsZero() {
		return fmt.Errorf("snapshot %s/%s has no capture timestamp", s.Venue, s.Pair)
	}
	for i, lvl := range s.Bids {
		if !lvl.Price.IsPositive() || !lvl.Size.IsPositive() {
			return fmt.Errorf("bid level %d has non-positive price or size", i)
		}
		if i > 0 && lvl.Price.GreaterThanOrEqual(s.Bids[i-1].Price) {
			return fmt.Errorf("bids not strictly descending at level %d", i)
		}
	}
	for i, lvl := range s.Asks {
		if !lvl.Price.IsPositive() || !lvl.Size.IsPositive() {
			return fmt.Errorf("ask level %d has non-positive price or size", i)
		}
		if i > 0 && lvl.Price.LessThanOrEqual(s.Asks[i-1].Price) {
			return fmt.Errorf("asks not strictly ascending at level %d", i)
		}
	}
	return nil
}

// Clone returns a deep copy. The engine evaluates clones so no lock has to
// be held across a depth walk.
func (s *OrderBookSnapshot) Clone() *OrderBookSnapshot {
	cp := &OrderBookSnapshot{
		Venue:      s.Venue,
		Pair:       s.Pair,
		Bids:       make([]PriceLevel, len(s.Bids)),
		Asks:       make([]PriceLevel, len(s.Asks)),
		CapturedAt: s.CapturedAt,
	}
	copy(cp.Bids, s.Bids)
	copy(cp.Asks, s.Asks)
	return cp
}

// Age returns how old the snapshot is relative to now.
func (s *OrderBookSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}

// IsStale reports whether the snapshot is older than threshold.
func (s *OrderBookSnapshot) IsStale(now time.Time, threshold time.Duration) bool {
	return s.Age(now) > threshold
}

// BestBid returns the top bid level, or false if the bid side is empty.
func (s *OrderBookSnapshot) BestBid() (PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return PriceLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the top ask level, or false if the ask side is empty.
func (s *OrderBookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return PriceLevel{}, false
	}
	return s.Asks[0], true
}

// BaseAsset extracts the base asset from a pair like "BTC/USDT".
// A pair without a separator is returned as-is.
func BaseAsset(pair string) string {
	if i := strings.IndexByte(pair, '/'); i > 0 {
		return pair[:i]
	}
	return pair
}
