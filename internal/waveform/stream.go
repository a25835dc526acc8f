// Package waveform provides the continuous waveform data model and the
// loading/preprocessing stage of the analysis pipeline.
package waveform

import (
	"math"
	"strings"
	"time"

	"github.com/quakeflow/quakeflow/internal/errors"
)

// Trace is a continuous single-channel recording. The ID follows the SEED
// convention network.station.location.channel.
type Trace struct {
	ID           string
	StartTime    time.Time
	SamplingRate float64 // Hz
	Samples      []float64
}

// EndTime returns the time of the last sample.
func (tr *Trace) EndTime() time.Time {
	if len(tr.Samples) == 0 || tr.SamplingRate <= 0 {
		return tr.StartTime
	}
	d := float64(len(tr.Samples)-1) / tr.SamplingRate
	return tr.StartTime.Add(time.Duration(d * float64(time.Second)))
}

// Duration returns the length of the trace in time.
func (tr *Trace) Duration() time.Duration {
	if tr.SamplingRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(tr.Samples)) / tr.SamplingRate * float64(time.Second))
}

// Station returns the network.station prefix of the trace ID. Picks carry
// this truncated identifier so they can be matched against station tables.
func (tr *Trace) Station() string {
	return StationID(tr.ID)
}

// StationID truncates a full channel id to its network.station prefix.
func StationID(channelID string) string {
	parts := strings.SplitN(channelID, ".", 3)
	if len(parts) < 2 {
		return channelID
	}
	return parts[0] + "." + parts[1]
}

// Slice returns the portion of the trace within [start, end). The returned
// trace shares sample memory with the original and must be treated as
// read-only.
func (tr *Trace) Slice(start, end time.Time) *Trace {
	if tr.SamplingRate <= 0 || len(tr.Samples) == 0 {
		return nil
	}
	if !end.After(start) {
		return nil
	}

	// Sample i lies at StartTime + i/fs; keep i when start <= t(i) < end.
	first := 0
	if start.After(tr.StartTime) {
		first = int(math.Ceil(start.Sub(tr.StartTime).Seconds() * tr.SamplingRate))
	}
	last := len(tr.Samples)
	if d := end.Sub(tr.StartTime).Seconds() * tr.SamplingRate; d < float64(last) {
		last = int(math.Ceil(d))
	}
	if first >= last {
		return nil
	}

	sliceStart := tr.StartTime.Add(time.Duration(float64(first) / tr.SamplingRate * float64(time.Second)))
	return &Trace{
		ID:           tr.ID,
		StartTime:    sliceStart,
		SamplingRate: tr.SamplingRate,
		Samples:      tr.Samples[first:last],
	}
}

// Stream is an ordered collection of traces sharing one time reference.
type Stream []*Trace

// Span returns the earliest start and latest end time across all traces.
func (s Stream) Span() (start, end time.Time, err error) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}, errors.Newf("stream is empty").
			Component("waveform").
			Category(errors.CategoryValidation).
			Build()
	}
	start = s[0].StartTime
	end = s[0].EndTime()
	for _, tr := range s[1:] {
		if tr.StartTime.Before(start) {
			start = tr.StartTime
		}
		if tr.EndTime().After(end) {
			end = tr.EndTime()
		}
	}
	return start, end, nil
}

// Slice returns a new stream restricted to [start, end). Traces with no
// samples inside the window are omitted; an empty result is returned as a
// nil stream.
func (s Stream) Slice(start, end time.Time) Stream {
	var out Stream
	for _, tr := range s {
		if sliced := tr.Slice(start, end); sliced != nil {
			out = append(out, sliced)
		}
	}
	return out
}
