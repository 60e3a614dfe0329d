// Package service owns the latest order-book snapshot per (venue, pair)
// and keeps each pair's arbitrage result current as snapshots arrive.
package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"arbscope/internal/domain"
	"arbscope/internal/engine"
	"arbscope/internal/infra"

	"github.com/shopspring/decimal"
)

// pairState is one pair's snapshot set and latest result. Each pair has
// its own lock so updates to different pairs never block each other.
type pairState struct {
	mu        sync.Mutex
	books     map[string]*domain.OrderBookSnapshot // by venue
	result    engine.Result
	hasResult bool
}

// MarketService is the state holder between ingestion and the engine.
type MarketService struct {
	mu    sync.RWMutex // guards the pairs map itself
	pairs map[string]*pairState

	engine         *engine.Engine
	store          domain.SnapshotAppender // optional; nil disables persistence
	targetNotional decimal.Decimal
	alerts         []*domain.OpportunityAlert

	snapshotChan chan *domain.OrderBookSnapshot
}

// NewMarketService creates a service evaluating with targetNotional.
// store may be nil when persistence is handled elsewhere (tests).
func NewMarketService(eng *engine.Engine, store domain.SnapshotAppender, targetNotional decimal.Decimal) *MarketService {
	return &MarketService{
		pairs:          make(map[string]*pairState),
		engine:         eng,
		store:          store,
		targetNotional: targetNotional,
		snapshotChan:   make(chan *domain.OrderBookSnapshot, 1000), // buffer absorbs ingestion bursts
	}
}

// AddAlert registers a net-profit alert checked after every evaluation.
func (s *MarketService) AddAlert(alert *domain.OpportunityAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
}

// SnapshotChan returns the channel ingestion workers push snapshots into.
func (s *MarketService) SnapshotChan() chan *domain.OrderBookSnapshot {
	return s.snapshotChan
}

// StartProcessor consumes the snapshot channel until ctx is done.
func (s *MarketService) StartProcessor(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-s.snapshotChan:
				s.ProcessSnapshot(ctx, snap)
			}
		}
	}()
}

// ProcessSnapshot stores the snapshot as the venue's latest for its pair,
// persists it and recomputes the pair's opportunities. Invalid snapshots
// are dropped with a log line; persistence failures degrade to a log line
// as well, never abort the recomputation.
func (s *MarketService) ProcessSnapshot(ctx context.Context, snap *domain.OrderBookSnapshot) {
	if err := snap.Validate(); err != nil {
		slog.Warn("Dropping invalid snapshot", slog.Any("error", err))
		infra.GlobalMetrics.RecordError()
		return
	}
	infra.GlobalMetrics.RecordSnapshot()

	if s.store != nil {
		if err := s.store.Append(ctx, snap); err != nil {
			slog.Error("Failed to persist snapshot",
				slog.String("venue", snap.Venue),
				slog.String("pair", snap.Pair),
				slog.Any("error", err))
			infra.GlobalMetrics.RecordError()
		}
	}

	state := s.pairState(snap.Pair)

	// Mutate under the pair lock, then evaluate on clones so the depth
	// walk runs without holding any lock.
	state.mu.Lock()
	state.books[snap.Venue] = snap
	books := make([]*domain.OrderBookSnapshot, 0, len(state.books))
	for _, book := range state.books {
		books = append(books, book.Clone())
	}
	state.mu.Unlock()

	started := time.Now()
	result, err := s.engine.Evaluate(snap.Pair, s.targetNotional, books)
	if err != nil {
		slog.Error("Evaluation failed", slog.String("pair", snap.Pair), slog.Any("error", err))
		infra.GlobalMetrics.RecordError()
		return
	}
	infra.GlobalMetrics.RecordEvaluation(time.Since(started).Nanoseconds(), len(result.Opportunities))

	state.mu.Lock()
	state.result = result
	state.hasResult = true
	state.mu.Unlock()

	s.checkAlerts(result)
}

// Result returns the latest evaluation for a pair, if any.
func (s *MarketService) Result(pair string) (engine.Result, bool) {
	s.mu.RLock()
	state, ok := s.pairs[pair]
	s.mu.RUnlock()
	if !ok {
		return engine.Result{}, false
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if !state.hasResult {
		return engine.Result{}, false
	}
	return state.result, true
}

// Snapshot returns the latest book for (venue, pair), if any.
func (s *MarketService) Snapshot(venue, pair string) (*domain.OrderBookSnapshot, bool) {
	s.mu.RLock()
	state, ok := s.pairs[pair]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	book, ok := state.books[venue]
	if !ok {
		return nil, false
	}
	return book.Clone(), true
}

// Pairs returns all pairs seen so far, sorted.
func (s *MarketService) Pairs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairs := make([]string, 0, len(s.pairs))
	for p := range s.pairs {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs
}

func (s *MarketService) pairState(pair string) *pairState {
	s.mu.RLock()
	state, ok := s.pairs[pair]
	s.mu.RUnlock()
	if ok {
		return state
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok = s.pairs[pair]; ok {
		return state
	}
	state = &pairState{books: make(map[string]*domain.OrderBookSnapshot)}
	s.pairs[pair] = state
	return state
}

// checkAlerts fires alerts against the best fully-priced opportunity.
func (s *MarketService) checkAlerts(result engine.Result) {
	top := result.Top(1)
	if len(top) == 0 {
		return
	}
	best := top[0]

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, alert := range s.alerts {
		if alert.Pair != result.Pair {
			continue
		}
		if alert.CheckCondition(best.NetProfit) {
			slog.Info("Opportunity alert",
				slog.String("pair", best.Pair),
				slog.String("buy_venue", best.BuyVenue),
				slog.String("sell_venue", best.SellVenue),
				slog.String("net_profit", best.NetProfit.String()),
				slog.String("quantity", best.Quantity.String()))
			if !alert.IsPersistent {
				alert.SetActive(false)
			}
		}
	}
}
