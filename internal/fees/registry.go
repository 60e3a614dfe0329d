// Package fees holds the static fee schedule registry. Schedules are
// loaded once at startup and read-only afterwards; an absent entry means
// "unknown", never "free".
package fees

import (
	"sort"

	"arbscope/internal/domain"

	"github.com/shopspring/decimal"
)

// Registry is the read-only venue fee lookup.
type Registry struct {
	schedules map[string]domain.FeeSchedule
}

// NewRegistry builds a registry keyed by venue. Later duplicates win.
func NewRegistry(schedules []domain.FeeSchedule) *Registry {
	m := make(map[string]domain.FeeSchedule, len(schedules))
	for _, s := range schedules {
		m[s.Venue] = s
	}
	return &Registry{schedules: m}
}

// Lookup returns the fee schedule for a venue. The boolean is false when
// the venue is unknown; callers must exclude such venues from net-profit
// ranking instead of assuming zero cost.
func (r *Registry) Lookup(venue string) (domain.FeeSchedule, bool) {
	s, ok := r.schedules[venue]
	return s, ok
}

// WithdrawalFee returns the fixed withdrawal fee a venue charges for an
// asset, in asset units. False means the fee is unknown.
func (r *Registry) WithdrawalFee(venue, asset string) (decimal.Decimal, bool) {
	s, ok := r.schedules[venue]
	if !ok {
		return decimal.Zero, false
	}
	return s.Withdrawal(asset)
}

// Venues returns the known venues in sorted order.
func (r *Registry) Venues() []string {
	venues := make([]string, 0, len(r.schedules))
	for v := range r.schedules {
		venues = append(venues, v)
	}
	sort.Strings(venues)
	return venues
}
