package domain

import "context"

// FeedWorker defines the interface for venue feed connectors
type FeedWorker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// SnapshotAppender persists order-book snapshots as they arrive.
type SnapshotAppender interface {
	Append(ctx context.Context, snap *OrderBookSnapshot) error
}

// BarFetcher retrieves bars for one gap range from an upstream source.
// Implementations must return only bars whose start falls inside r.
type BarFetcher interface {
	FetchBars(ctx context.Context, venue, pair string, interval Interval, r TimeRange) ([]OHLCVBar, error)
}
