// Package station provides the station inventory model consumed by the
// event associator and the export layer.
package station

import (
	"sort"

	"github.com/quakeflow/quakeflow/internal/errors"
)

// Station is one seismometer site.
type Station struct {
	Network   string
	Code      string
	ID        string // network.station
	Latitude  float64
	Longitude float64
	Elevation float64 // meters
}

// Table is a read-only station inventory with id lookup. Build one with
// NewTable; the zero value is an empty table.
type Table struct {
	stations []Station
	byID     map[string]int
}

// NewTable builds a table from a station list. Duplicate ids keep the first
// occurrence.
func NewTable(stations []Station) *Table {
	t := &Table{byID: make(map[string]int, len(stations))}
	for _, s := range stations {
		if s.ID == "" {
			s.ID = s.Network + "." + s.Code
		}
		if _, exists := t.byID[s.ID]; exists {
			continue
		}
		t.byID[s.ID] = len(t.stations)
		t.stations = append(t.stations, s)
	}
	return t
}

// Len returns the number of stations.
func (t *Table) Len() int {
	return len(t.stations)
}

// Get looks up a station by its network.station id.
func (t *Table) Get(id string) (Station, bool) {
	idx, ok := t.byID[id]
	if !ok {
		return Station{}, false
	}
	return t.stations[idx], true
}

// Has reports whether the table contains the given id.
func (t *Table) Has(id string) bool {
	_, ok := t.byID[id]
	return ok
}

// All returns the stations in insertion order. The returned slice is a copy.
func (t *Table) All() []Station {
	out := make([]Station, len(t.stations))
	copy(out, t.stations)
	return out
}

// IDs returns the sorted station ids.
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// validate rejects stations with out-of-range coordinates.
func validate(s *Station) error {
	if s.Latitude < -90 || s.Latitude > 90 {
		return errors.Newf("station %s: latitude %g out of range", s.ID, s.Latitude).
			Component("station").
			Category(errors.CategoryValidation).
			Build()
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		return errors.Newf("station %s: longitude %g out of range", s.ID, s.Longitude).
			Component("station").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
