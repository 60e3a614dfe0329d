package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"arbscope/internal/domain"
)

// Unit is the in-memory form of one cache unit: the merged, sorted bar
// sequence for a (venue, pair, interval) plus its covered-range metadata.
type Unit struct {
	Venue    string
	Pair     string
	Interval domain.Interval
	Bars     []domain.OHLCVBar
	Ranges   *RangeSet
}

// unitFile is the on-disk JSON layout of a Unit.
type unitFile struct {
	Venue    string             `json:"venue"`
	Pair     string             `json:"pair"`
	Interval domain.Interval    `json:"interval"`
	Ranges   []domain.TimeRange `json:"ranges"`
	Bars     []domain.OHLCVBar  `json:"bars"`
}

// UnitStore persists one file per cache unit under its directory. Writes
// go to a temp file first and are renamed into place, so a crash mid-write
// never corrupts previously committed data.
type UnitStore struct {
	dir string
}

// NewUnitStore creates the store directory if needed.
func NewUnitStore(dir string) (*UnitStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &UnitStore{dir: dir}, nil
}

// Load reads a unit. A missing file is zero coverage, not an error.
func (s *UnitStore) Load(venue, pair string, interval domain.Interval) (*Unit, error) {
	empty := &Unit{Venue: venue, Pair: pair, Interval: interval, Ranges: NewRangeSet(nil)}

	data, err := os.ReadFile(s.unitPath(venue, pair, interval))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return empty, nil
		}
		return nil, fmt.Errorf("failed to read cache unit: %w", err)
	}

	var file unitFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode cache unit: %w", err)
	}

	return &Unit{
		Venue:    venue,
		Pair:     pair,
		Interval: interval,
		Bars:     file.Bars,
		Ranges:   NewRangeSet(file.Ranges),
	}, nil
}

// Save atomically replaces the unit file.
func (s *UnitStore) Save(u *Unit) error {
	file := unitFile{
		Venue:    u.Venue,
		Pair:     u.Pair,
		Interval: u.Interval,
		Ranges:   u.Ranges.Ranges(),
		Bars:     u.Bars,
	}
	data, err := json.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to encode cache unit: %w", err)
	}

	path := s.unitPath(u.Venue, u.Pair, u.Interval)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace cache unit: %w", err)
	}
	return nil
}

func (s *UnitStore) unitPath(venue, pair string, interval domain.Interval) string {
	name := fmt.Sprintf("%s_%s_%s.json", sanitizeKey(venue), sanitizeKey(pair), interval)
	return filepath.Join(s.dir, name)
}

func sanitizeKey(part string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, part)
}
