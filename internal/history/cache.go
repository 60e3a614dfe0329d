package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"arbscope/internal/domain"
	"arbscope/internal/infra"

	"golang.org/x/sync/singleflight"
)

// BarCache answers bar-range requests from its unit store, fetching only
// the uncovered gaps from the upstream source. Fills for one unit are
// serialized and identical concurrent requests share a single in-flight
// result instead of each issuing a fetch.
type BarCache struct {
	store        *UnitStore
	fetcher      domain.BarFetcher
	maxRetries   int
	fetchTimeout time.Duration
	backoff      func(retry int) time.Duration

	group    singleflight.Group
	mu       sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// NewBarCache creates a cache with bounded retry per gap and a per-attempt
// fetch timeout.
func NewBarCache(store *UnitStore, fetcher domain.BarFetcher, maxRetries int, fetchTimeout time.Duration) *BarCache {
	return &BarCache{
		store:        store,
		fetcher:      fetcher,
		maxRetries:   maxRetries,
		fetchTimeout: fetchTimeout,
		backoff:      infra.CalculateBackoff,
		keyLocks:     make(map[string]*sync.Mutex),
	}
}

// Get returns the bars covering r for (venue, pair, interval), ascending
// by bar start. Already-cached portions are always returned; gaps that
// could not be filled after retries are reported in a
// *domain.CacheFillError alongside the partial result.
func (c *BarCache) Get(ctx context.Context, venue, pair string, interval domain.Interval, r domain.TimeRange) ([]domain.OHLCVBar, error) {
	if !interval.Valid() {
		return nil, domain.ErrInvalidInterval
	}
	if !r.Valid() {
		return nil, domain.ErrInvalidRange
	}

	// Identical concurrent requests coalesce into one fill.
	flightKey := fmt.Sprintf("%s|%s|%s|%d|%d", venue, pair, interval, r.Start.UnixNano(), r.End.UnixNano())
	v, err, _ := c.group.Do(flightKey, func() (interface{}, error) {
		return c.get(ctx, venue, pair, interval, r)
	})
	bars, _ := v.([]domain.OHLCVBar)
	return bars, err
}

func (c *BarCache) get(ctx context.Context, venue, pair string, interval domain.Interval, r domain.TimeRange) ([]domain.OHLCVBar, error) {
	// One fill-and-merge at a time per unit, so concurrent requests for
	// overlapping ranges never double-fetch or lose a merge.
	lock := c.keyLock(venue, pair, interval)
	lock.Lock()
	defer lock.Unlock()

	unit, err := c.store.Load(venue, pair, interval)
	if err != nil {
		return nil, err
	}

	gaps := unit.Ranges.Gaps(r)
	if len(gaps) == 0 {
		infra.GlobalMetrics.RecordCacheHit()
		return clipBars(unit.Bars, r), nil
	}
	infra.GlobalMetrics.RecordCacheMiss()

	var failed []domain.TimeRange
	var lastErr error
	merged := false
	for i, gap := range gaps {
		bars, err := c.fillGap(ctx, venue, pair, interval, gap)
		if err != nil {
			lastErr = err
			failed = append(failed, gap)
			if ctx.Err() != nil {
				// Caller is gone; remaining gaps are not attempted and
				// nothing half-fetched is merged.
				failed = append(failed, gaps[i+1:]...)
				break
			}
			continue
		}
		unit.Bars = mergeBars(unit.Bars, bars)
		unit.Ranges.Add(gap)
		merged = true
	}

	if merged {
		if err := c.store.Save(unit); err != nil {
			return nil, fmt.Errorf("failed to commit cache unit: %w", err)
		}
	}

	result := clipBars(unit.Bars, r)
	if len(failed) > 0 {
		return result, &domain.CacheFillError{
			Venue:    venue,
			Pair:     pair,
			Interval: interval,
			Missing:  failed,
			Err:      lastErr,
		}
	}
	return result, nil
}

// fillGap fetches one gap with bounded retry and exponential backoff.
// Each attempt gets its own timeout, independent of overall cancellation.
func (c *BarCache) fillGap(ctx context.Context, venue, pair string, interval domain.Interval, gap domain.TimeRange) ([]domain.OHLCVBar, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if c.fetchTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		}
		infra.GlobalMetrics.RecordFetch()
		bars, err := c.fetcher.FetchBars(attemptCtx, venue, pair, interval, gap)
		cancel()

		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !domain.IsRetriable(err) {
				break
			}
			continue
		}
		return validBars(bars, gap), nil
	}
	infra.GlobalMetrics.RecordError()
	return nil, lastErr
}

func (c *BarCache) keyLock(venue, pair string, interval domain.Interval) *sync.Mutex {
	key := fmt.Sprintf("%s|%s|%s", venue, pair, interval)
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.keyLocks[key] = lock
	}
	return lock
}

// validBars drops bars that fail validation or fall outside the fetched
// gap. Upstream quirks degrade the fetch, never poison the cache.
func validBars(bars []domain.OHLCVBar, gap domain.TimeRange) []domain.OHLCVBar {
	out := bars[:0]
	for i := range bars {
		b := bars[i]
		if err := b.Validate(); err != nil {
			slog.Warn("Dropping invalid bar", slog.Any("error", err))
			continue
		}
		if !gap.Contains(b.Start) {
			slog.Warn("Dropping out-of-range bar", slog.Time("start", b.Start))
			continue
		}
		out = append(out, b)
	}
	return out
}

// mergeBars combines two bar sequences sorted ascending by start,
// deduplicated by start timestamp with the later write winning.
func mergeBars(existing, fetched []domain.OHLCVBar) []domain.OHLCVBar {
	all := make([]domain.OHLCVBar, 0, len(existing)+len(fetched))
	all = append(all, existing...)
	all = append(all, fetched...)

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Start.Before(all[j].Start)
	})

	out := all[:0]
	for _, b := range all {
		if n := len(out); n > 0 && out[n-1].Start.Equal(b.Start) {
			out[n-1] = b // last write wins
			continue
		}
		out = append(out, b)
	}
	return out
}

func clipBars(bars []domain.OHLCVBar, r domain.TimeRange) []domain.OHLCVBar {
	out := make([]domain.OHLCVBar, 0, len(bars))
	for _, b := range bars {
		if r.Contains(b.Start) {
			out = append(out, b)
		}
	}
	return out
}
