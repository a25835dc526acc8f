// Package session holds the mutable analysis state between pipeline runs.
// Background tasks receive immutable snapshots; results are applied back
// through the Apply methods once a task reports success, so the session is
// the only writer of pipeline state.
package session

import (
	"sync"

	"github.com/quakeflow/quakeflow/internal/associate"
	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/picker"
	"github.com/quakeflow/quakeflow/internal/station"
	"github.com/quakeflow/quakeflow/internal/waveform"
)

// Kind identifies one of the three pipeline operations. At most one
// invocation of each kind runs at a time.
type Kind int

const (
	KindLoad Kind = iota
	KindDetect
	KindAssociate
)

func (k Kind) String() string {
	switch k {
	case KindLoad:
		return "load"
	case KindDetect:
		return "detect"
	case KindAssociate:
		return "associate"
	default:
		return "unknown"
	}
}

// ChunkNav tracks the position within a chunked recording.
type ChunkNav struct {
	Index int // zero-based current chunk
	Total int
}

// State is the session's pipeline state. The zero value is empty but
// usable.
type State struct {
	mu          sync.Mutex
	stream      waveform.Stream
	picks       []picker.Pick
	stations    *station.Table
	events      []associate.Event
	assignments []associate.Assignment
	excluded    []string
	busy        map[Kind]bool
	chunk       ChunkNav
}

// New creates an empty session.
func New() *State {
	return &State{busy: make(map[Kind]bool)}
}

// Begin marks an operation kind in flight. It fails when an invocation of
// the same kind is already running.
func (s *State) Begin(kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[kind] {
		return errors.Newf("a %s operation is already running", kind).
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}
	s.busy[kind] = true
	return nil
}

// Finish clears the in-flight mark for a kind. Safe to call after a
// failure.
func (s *State) Finish(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, kind)
}

// Busy reports whether an invocation of the kind is in flight.
func (s *State) Busy(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[kind]
}

// Stream returns the current waveform snapshot.
func (s *State) Stream() waveform.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// Picks returns the current pick snapshot.
func (s *State) Picks() []picker.Pick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.picks
}

// Stations returns the loaded station table, which may be nil.
func (s *State) Stations() *station.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stations
}

// Events returns the current event catalog snapshot.
func (s *State) Events() []associate.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// Assignments returns the current assignment snapshot.
func (s *State) Assignments() []associate.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assignments
}

// ExcludedStations returns the station ids dropped during the last
// association.
func (s *State) ExcludedStations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.excluded
}

// SetStations installs a station inventory.
func (s *State) SetStations(table *station.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations = table
}

// ApplyStream installs a freshly loaded stream and invalidates everything
// derived from the previous one.
func (s *State) ApplyStream(stream waveform.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = stream
	s.picks = nil
	s.events = nil
	s.assignments = nil
	s.excluded = nil
}

// ApplyPicks installs detection output and invalidates the catalog derived
// from the previous picks.
func (s *State) ApplyPicks(picks []picker.Pick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.picks = picks
	s.events = nil
	s.assignments = nil
	s.excluded = nil
}

// ApplyAssociation installs an association result.
func (s *State) ApplyAssociation(result *associate.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = result.Events
	s.assignments = result.Assignments
	s.excluded = result.Excluded
}

// RequireStream is the precondition check before dispatching detection.
func (s *State) RequireStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stream) == 0 {
		return errors.Newf("no waveform data loaded").
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// RequirePicks is the precondition check before dispatching association.
func (s *State) RequirePicks() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.picks) == 0 {
		return errors.Newf("no picks detected").
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// RequireStations is the precondition check before dispatching association.
func (s *State) RequireStations() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stations == nil || s.stations.Len() == 0 {
		return errors.Newf("no station table loaded").
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// SetChunkTotal resets chunk navigation for a recording split into total
// windows.
func (s *State) SetChunkTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if total < 0 {
		total = 0
	}
	s.chunk = ChunkNav{Index: 0, Total: total}
}

// Chunk returns the current navigation position.
func (s *State) Chunk() ChunkNav {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunk
}

// NextChunk advances the chunk index, reporting whether it moved.
func (s *State) NextChunk() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunk.Index+1 >= s.chunk.Total {
		return false
	}
	s.chunk.Index++
	return true
}

// PrevChunk steps the chunk index back, reporting whether it moved.
func (s *State) PrevChunk() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunk.Index == 0 {
		return false
	}
	s.chunk.Index--
	return true
}
