// Package storage persists live market data. The snapshot store is
// append-only: records are written in arrival order, never updated or
// deleted here; retention is an external policy.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"arbscope/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SnapshotRecord is the persisted form of an order-book snapshot. Book
// sides are stored as JSON to keep one row per snapshot.
type SnapshotRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	Venue      string    `gorm:"index:idx_snapshot_key,priority:1"`
	Pair       string    `gorm:"index:idx_snapshot_key,priority:2"`
	CapturedAt time.Time `gorm:"index:idx_snapshot_key,priority:3"`
	Bids       string
	Asks       string
	CreatedAt  time.Time
}

// SnapshotStore is the SQLite-backed live snapshot store.
type SnapshotStore struct {
	db *gorm.DB
}

// NewSnapshotStore opens (creating if needed) the store at path.
func NewSnapshotStore(path string) (*SnapshotStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&SnapshotRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

// Append persists one snapshot. Records are stored in arrival order;
// out-of-order capture timestamps are kept as-is and sorted at query time.
func (s *SnapshotStore) Append(ctx context.Context, snap *domain.OrderBookSnapshot) error {
	bids, err := json.Marshal(snap.Bids)
	if err != nil {
		return fmt.Errorf("failed to encode bids: %w", err)
	}
	asks, err := json.Marshal(snap.Asks)
	if err != nil {
		return fmt.Errorf("failed to encode asks: %w", err)
	}

	rec := SnapshotRecord{
		Venue:      snap.Venue,
		Pair:       snap.Pair,
		CapturedAt: snap.CapturedAt,
		Bids:       string(bids),
		Asks:       string(asks),
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// Query returns an iterator over snapshots for (venue, pair) captured
// inside r, ordered by capture timestamp. The iterator reads in batches;
// abandoning it has no side effects, and calling Query again restarts
// from the beginning.
func (s *SnapshotStore) Query(venue, pair string, r domain.TimeRange) *SnapshotIter {
	return &SnapshotIter{
		store: s,
		venue: venue,
		pair:  pair,
		r:     r,
	}
}

const iterBatchSize = 256

// SnapshotIter is a lazy, finite cursor over stored snapshots.
type SnapshotIter struct {
	store  *SnapshotStore
	venue  string
	pair   string
	r      domain.TimeRange
	batch  []SnapshotRecord
	pos    int
	offset int
	done   bool
}

// Next returns the next snapshot, or (nil, nil) when the sequence is
// exhausted.
func (it *SnapshotIter) Next(ctx context.Context) (*domain.OrderBookSnapshot, error) {
	if it.pos >= len(it.batch) && !it.done {
		if err := it.fetchBatch(ctx); err != nil {
			return nil, err
		}
	}
	if it.pos >= len(it.batch) {
		return nil, nil
	}

	rec := it.batch[it.pos]
	it.pos++
	return decodeRecord(&rec)
}

func (it *SnapshotIter) fetchBatch(ctx context.Context) error {
	var batch []SnapshotRecord
	err := it.store.db.WithContext(ctx).
		Where("venue = ? AND pair = ? AND captured_at >= ? AND captured_at < ?",
			it.venue, it.pair, it.r.Start, it.r.End).
		Order("captured_at ASC, id ASC").
		Limit(iterBatchSize).
		Offset(it.offset).
		Find(&batch).Error
	if err != nil {
		return err
	}

	it.batch = batch
	it.pos = 0
	it.offset += len(batch)
	if len(batch) < iterBatchSize {
		it.done = true
	}
	return nil
}

// Count returns how many snapshots are stored for (venue, pair).
func (s *SnapshotStore) Count(ctx context.Context, venue, pair string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&SnapshotRecord{}).
		Where("venue = ? AND pair = ?", venue, pair).
		Count(&n).Error
	return n, err
}

func decodeRecord(rec *SnapshotRecord) (*domain.OrderBookSnapshot, error) {
	snap := &domain.OrderBookSnapshot{
		Venue:      rec.Venue,
		Pair:       rec.Pair,
		CapturedAt: rec.CapturedAt,
	}
	if err := json.Unmarshal([]byte(rec.Bids), &snap.Bids); err != nil {
		return nil, fmt.Errorf("failed to decode bids for record %d: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(rec.Asks), &snap.Asks); err != nil {
		return nil, fmt.Errorf("failed to decode asks for record %d: %w", rec.ID, err)
	}
	return snap, nil
}
