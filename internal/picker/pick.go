// Package picker runs a phase classifier over waveform streams and produces
// time-ordered phase arrival picks.
package picker

import (
	"time"

	"github.com/quakeflow/quakeflow/internal/waveform"
)

// Phase classifies a seismic wave arrival.
type Phase string

const (
	PhaseP Phase = "P"
	PhaseS Phase = "S"
)

// RawPick is a classifier output: an arrival tied to the full channel id it
// was detected on.
type RawPick struct {
	TraceID   string
	Time      time.Time
	Phase     Phase
	PeakValue float64 // classifier peak confidence in [0, 1]
}

// Pick is a detected phase arrival, carrying the station identifier
// (network.station) derived from the originating channel. Picks are
// immutable once produced.
type Pick struct {
	Time        time.Time
	Phase       Phase
	Station     string
	Probability float64
}

// fromRaw converts a classifier pick, truncating the channel id.
func fromRaw(raw RawPick) Pick {
	return Pick{
		Time:        raw.Time,
		Phase:       raw.Phase,
		Station:     waveform.StationID(raw.TraceID),
		Probability: raw.PeakValue,
	}
}
