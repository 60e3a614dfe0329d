package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	snapshotsIngested  atomic.Uint64
	evaluationsRun     atomic.Uint64
	opportunitiesFound atomic.Uint64
	cacheHits          atomic.Uint64
	cacheMisses        atomic.Uint64
	fetchesIssued      atomic.Uint64
	errorsTotal        atomic.Uint64

	// Evaluation latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeFeeds atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordSnapshot records one ingested snapshot.
func (m *Metrics) RecordSnapshot() {
	m.snapshotsIngested.Add(1)
}

// RecordEvaluation records one engine run with its latency and the number
// of opportunities it produced.
func (m *Metrics) RecordEvaluation(latencyNs int64, opportunities int) {
	m.evaluationsRun.Add(1)
	m.opportunitiesFound.Add(uint64(opportunities))
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordCacheHit records a bar request served without any fetch.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a bar request that needed at least one gap fill.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordFetch records one upstream fetch attempt.
func (m *Metrics) RecordFetch() {
	m.fetchesIssued.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// IncrementFeeds increments connected feeds by 1.
func (m *Metrics) IncrementFeeds() {
	m.activeFeeds.Add(1)
}

// DecrementFeeds decrements connected feeds by 1.
func (m *Metrics) DecrementFeeds() {
	m.activeFeeds.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	SnapshotsIngested  uint64
	EvaluationsRun     uint64
	OpportunitiesFound uint64
	CacheHits          uint64
	CacheMisses        uint64
	FetchesIssued      uint64
	ErrorsTotal        uint64
	AvgLatencyNs       int64
	ActiveFeeds        int32
	Timestamp          time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		SnapshotsIngested:  m.snapshotsIngested.Load(),
		EvaluationsRun:     m.evaluationsRun.Load(),
		OpportunitiesFound: m.opportunitiesFound.Load(),
		CacheHits:          m.cacheHits.Load(),
		CacheMisses:        m.cacheMisses.Load(),
		FetchesIssued:      m.fetchesIssued.Load(),
		ErrorsTotal:        m.errorsTotal.Load(),
		AvgLatencyNs:       avgLatency,
		ActiveFeeds:        m.activeFeeds.Load(),
		Timestamp:          time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.snapshotsIngested.Store(0)
	m.evaluationsRun.Store(0)
	m.opportunitiesFound.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.fetchesIssued.Store(0)
	m.errorsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeFeeds.Store(0)
}
