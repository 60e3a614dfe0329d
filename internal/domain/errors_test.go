package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNetworkErrorRetriable(t *testing.T) {
	base := errors.New("connection refused")

	re := NewNetworkError("connect", base)
	if !IsRetriable(re) {
		t.Error("NewNetworkError should be retriable")
	}

	fatal := NewFatalNetworkError("fetch", base)
	if IsRetriable(fatal) {
		t.Error("NewFatalNetworkError should not be retriable")
	}

	if IsRetriable(base) {
		t.Error("plain error should not be retriable")
	}
	if IsRetriable(nil) {
		t.Error("nil should not be retriable")
	}
}

func TestNetworkErrorWrapping(t *testing.T) {
	base := errors.New("timeout")
	wrapped := fmt.Errorf("polling: %w", NewNetworkError("fetch", base))

	if !IsRetriable(wrapped) {
		t.Error("retriable error should survive fmt.Errorf wrapping")
	}
	if !errors.Is(wrapped, base) {
		t.Error("Unwrap should reach the underlying error")
	}
}

func TestCacheFillError(t *testing.T) {
	base := errors.New("503")
	r := TimeRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC),
	}
	cfe := &CacheFillError{
		Venue:    "KRAKEN",
		Pair:     "BTC/USDT",
		Interval: Interval1h,
		Missing:  []TimeRange{r},
		Err:      base,
	}

	if !errors.Is(cfe, base) {
		t.Error("CacheFillError should unwrap to the underlying error")
	}

	var got *CacheFillError
	wrapped := fmt.Errorf("warmup: %w", cfe)
	if !errors.As(wrapped, &got) {
		t.Fatal("errors.As failed to recover CacheFillError")
	}
	if len(got.Missing) != 1 || !got.Missing[0].Start.Equal(r.Start) {
		t.Errorf("missing ranges lost in transit: %+v", got.Missing)
	}
}

func TestStaleSnapshotErrorMessage(t *testing.T) {
	err := &StaleSnapshotError{Venue: "COINBASE", Age: 7 * time.Second, Threshold: 5 * time.Second}
	msg := err.Error()
	if msg == "" {
		t.Fatal("empty error message")
	}
	for _, want := range []string{"COINBASE", "7s", "5s"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}
