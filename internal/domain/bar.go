package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Interval identifies a bar duration in its wire form ("1m", "1h", ...).
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Duration returns the bar length, or 0 for an unknown interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval4h:
		return 4 * time.Hour
	case Interval1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Valid reports whether the interval is one of the supported values.
func (i Interval) Valid() bool {
	return i.Duration() > 0
}

// OHLCVBar is a single open/high/low/close/volume bar. Bars are immutable
// once cached; retention is an external concern.
type OHLCVBar struct {
	Venue    string          `json:"venue"`
	Pair     string          `json:"pair"`
	Interval Interval        `json:"interval"`
	Start    time.Time       `json:"start"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

// Validate checks bar invariants: a supported interval, a start timestamp
// aligned to the interval boundary, low <= open,close <= high and a
// non-negative volume.
func (b *OHLCVBar) Validate() error {
	dur := b.Interval.Duration()
	if dur == 0 {
		return fmt.Errorf("unsupported interval %q", b.Interval)
	}
	if !b.Start.Equal(b.Start.Truncate(dur)) {
		return fmt.Errorf("bar start %s not aligned to %s boundary", b.Start.Format(time.RFC3339), b.Interval)
	}
	if b.Low.GreaterThan(b.Open) || b.Low.GreaterThan(b.Close) ||
		b.High.LessThan(b.Open) || b.High.LessThan(b.Close) {
		return fmt.Errorf("bar at %s violates low <= open,close <= high", b.Start.Format(time.RFC3339))
	}
	if b.Volume.IsNegative() {
		return fmt.Errorf("bar at %s has negative volume", b.Start.Format(time.RFC3339))
	}
	return nil
}
