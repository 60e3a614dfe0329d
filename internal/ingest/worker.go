// Package ingest connects to venue feeds and pushes normalized order-book
// snapshots into the market service. Vendor-specific wire parsing lives in
// the adapters behind the feed endpoint; workers here speak only the
// canonical schema.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"arbscope/internal/domain"
	"arbscope/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	maxRetries  = 10
	readTimeout = 60 * time.Second
)

// Worker handles one venue feed WebSocket connection.
type Worker struct {
	venue     string
	url       string
	pairs     []string
	out       chan<- *domain.OrderBookSnapshot
	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker creates a feed worker pushing snapshots into out.
func NewWorker(venue, url string, pairs []string, out chan<- *domain.OrderBookSnapshot) *Worker {
	return &Worker{
		venue: venue,
		url:   url,
		pairs: pairs,
		out:   out,
	}
}

// Connect starts the WebSocket connection
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("Feed connection failed",
				slog.String("venue", w.venue),
				slog.Any("error", err),
				slog.Int("retry", retryCount))
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.url, http.Header{})
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	infra.GlobalMetrics.IncrementFeeds()

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return err
	}

	slog.Info("Feed connected", slog.String("venue", w.venue), slog.Int("pairs", len(w.pairs)))
	return nil
}

func (w *Worker) subscribe() error {
	msg := map[string]interface{}{
		"op":    "subscribe",
		"pairs": w.pairs,
	}
	b, _ := json.Marshal(msg)
	return w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *Worker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *Worker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		if w.conn == nil {
			w.mu.RUnlock()
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(readTimeout))
		w.mu.RUnlock()

		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *Worker) handleMessage(data []byte) {
	msg := acquireMessage()
	defer releaseMessage(msg)

	if json.Unmarshal(data, msg) != nil || msg.Pair == "" {
		return
	}

	snap, err := msg.toSnapshot(w.venue)
	if err != nil {
		slog.Warn("Dropping malformed snapshot",
			slog.String("venue", w.venue),
			slog.Any("error", err))
		infra.GlobalMetrics.RecordError()
		return
	}

	select {
	case w.out <- snap:
	default: // DROP: the service buffer is full, a newer tick will follow
	}
}

// toSnapshot converts the wire message into a validated domain snapshot.
// The venue label defaults to the worker's venue when absent.
func (m *snapshotMessage) toSnapshot(venue string) (*domain.OrderBookSnapshot, error) {
	if m.Venue != "" {
		venue = m.Venue
	}

	snap := &domain.OrderBookSnapshot{
		Venue:      venue,
		Pair:       m.Pair,
		CapturedAt: time.UnixMilli(m.Timestamp).UTC(),
	}

	var err error
	if snap.Bids, err = toLevels(m.Bids); err != nil {
		return nil, fmt.Errorf("bad bid level: %w", err)
	}
	if snap.Asks, err = toLevels(m.Asks); err != nil {
		return nil, fmt.Errorf("bad ask level: %w", err)
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

func toLevels(rows [][2]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(rows))
	for _, row := range rows {
		price, err := decimal.NewFromString(row[0])
		if err != nil {
			return nil, err
		}
		size, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	return levels, nil
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
		infra.GlobalMetrics.DecrementFeeds()
	}
	w.connected = false
}

// IsConnected reports whether the worker currently holds a connection.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Disconnect stops the worker and waits for its loops to exit.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
