// Package history is the incremental, range-aware cache of OHLCV bars.
// Coverage per (venue, pair, interval) is tracked explicitly so repeated
// requests never re-fetch data the cache already holds.
package history

import (
	"sort"

	"arbscope/internal/domain"
)

// RangeSet tracks the covered time ranges for one cache unit. Ranges are
// kept sorted, merged and non-overlapping; all ranges are half-open.
type RangeSet struct {
	ranges []domain.TimeRange
}

// NewRangeSet builds a set from existing ranges, normalizing them.
func NewRangeSet(ranges []domain.TimeRange) *RangeSet {
	s := &RangeSet{}
	for _, r := range ranges {
		s.Add(r)
	}
	return s
}

// Add inserts a range, merging it with any overlapping or adjacent
// existing ranges. Invalid ranges are ignored.
func (s *RangeSet) Add(r domain.TimeRange) {
	if !r.Valid() {
		return
	}

	merged := make([]domain.TimeRange, 0, len(s.ranges)+1)
	for _, existing := range s.ranges {
		// Adjacent ranges (touching endpoints) merge too.
		if existing.End.Before(r.Start) || r.End.Before(existing.Start) {
			merged = append(merged, existing)
			continue
		}
		if existing.Start.Before(r.Start) {
			r.Start = existing.Start
		}
		if existing.End.After(r.End) {
			r.End = existing.End
		}
	}
	merged = append(merged, r)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Start.Before(merged[j].Start)
	})
	s.ranges = merged
}

// Gaps returns the sub-ranges of r not covered by the set, in order.
func (s *RangeSet) Gaps(r domain.TimeRange) []domain.TimeRange {
	if !r.Valid() {
		return nil
	}

	var gaps []domain.TimeRange
	cursor := r.Start
	for _, covered := range s.ranges {
		if !covered.End.After(cursor) {
			continue
		}
		if !covered.Start.Before(r.End) {
			break
		}
		if covered.Start.After(cursor) {
			gaps = append(gaps, domain.TimeRange{Start: cursor, End: covered.Start})
		}
		if covered.End.After(cursor) {
			cursor = covered.End
		}
	}
	if cursor.Before(r.End) {
		gaps = append(gaps, domain.TimeRange{Start: cursor, End: r.End})
	}
	return gaps
}

// Covers reports whether r is fully inside the set.
func (s *RangeSet) Covers(r domain.TimeRange) bool {
	return len(s.Gaps(r)) == 0
}

// Ranges returns a copy of the normalized ranges.
func (s *RangeSet) Ranges() []domain.TimeRange {
	out := make([]domain.TimeRange, len(s.ranges))
	copy(out, s.ranges)
	return out
}
