package picker

import (
	"math"
	"strings"
	"time"

	"github.com/quakeflow/quakeflow/internal/conf"
	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/waveform"
)

// STALTA is the recursive short-term/long-term average reference picker. It
// declares P arrivals on vertical channels and S arrivals on horizontal
// channels. The reported probability is the peak STA/LTA ratio scaled so
// that the configured trigger threshold maps to 0.5.
type STALTA struct {
	triggerOn  float64
	triggerOff float64
	shortWin   float64 // seconds
	longWin    float64 // seconds
}

// NewSTALTA validates the trigger configuration and returns a picker.
func NewSTALTA(settings *conf.PickerSettings) (*STALTA, error) {
	fail := func(msg string) error {
		return errors.Newf("%s", msg).
			Component("picker").
			Category(errors.CategoryModelLoad).
			Context("short_window", settings.ShortWindowSec).
			Context("long_window", settings.LongWindowSec).
			Build()
	}
	switch {
	case settings.ShortWindowSec <= 0 || settings.LongWindowSec <= 0:
		return nil, fail("sta/lta windows must be positive")
	case settings.ShortWindowSec >= settings.LongWindowSec:
		return nil, fail("short window must be shorter than long window")
	case settings.TriggerOn <= 0 || settings.TriggerOff <= 0:
		return nil, fail("trigger thresholds must be positive")
	case settings.TriggerOff >= settings.TriggerOn:
		return nil, fail("detrigger threshold must be below trigger threshold")
	}
	return &STALTA{
		triggerOn:  settings.TriggerOn,
		triggerOff: settings.TriggerOff,
		shortWin:   settings.ShortWindowSec,
		longWin:    settings.LongWindowSec,
	}, nil
}

// Classify scans every trace and returns the arrivals whose scaled peak
// ratio clears the per-phase probability threshold.
func (s *STALTA) Classify(stream waveform.Stream, pThreshold, sThreshold float64) ([]RawPick, error) {
	var picks []RawPick
	for _, tr := range stream {
		phase, ok := phaseForComponent(tr.ID)
		if !ok {
			continue
		}
		threshold := pThreshold
		if phase == PhaseS {
			threshold = sThreshold
		}
		for _, p := range s.scan(tr, phase) {
			if p.PeakValue >= threshold {
				picks = append(picks, p)
			}
		}
	}
	return picks, nil
}

// scan runs the recursive trigger over a single trace. The long average must
// warm up over one full window before triggers are honored.
func (s *STALTA) scan(tr *waveform.Trace, phase Phase) []RawPick {
	fs := tr.SamplingRate
	warmup := int(s.longWin * fs)
	if fs <= 0 || len(tr.Samples) <= warmup {
		return nil
	}

	alphaShort := 1.0 / (s.shortWin * fs)
	alphaLong := 1.0 / (s.longWin * fs)

	var picks []RawPick
	var sta, lta float64
	triggered := false
	var onset int
	var peak float64

	for i, v := range tr.Samples {
		cf := v * v
		sta += alphaShort * (cf - sta)
		lta += alphaLong * (cf - lta)
		if i < warmup || lta <= 0 {
			continue
		}
		ratio := sta / lta

		switch {
		case !triggered && ratio >= s.triggerOn:
			triggered = true
			onset = i
			peak = ratio
		case triggered && ratio > peak:
			peak = ratio
		case triggered && ratio < s.triggerOff:
			picks = append(picks, s.rawPick(tr, phase, onset, peak))
			triggered = false
		}
	}
	if triggered {
		picks = append(picks, s.rawPick(tr, phase, onset, peak))
	}
	return picks
}

func (s *STALTA) rawPick(tr *waveform.Trace, phase Phase, onset int, peak float64) RawPick {
	offset := time.Duration(float64(onset) / tr.SamplingRate * float64(time.Second))
	return RawPick{
		TraceID:   tr.ID,
		Time:      tr.StartTime.Add(offset),
		Phase:     phase,
		PeakValue: math.Min(1, peak/(2*s.triggerOn)),
	}
}

// phaseForComponent maps a channel code's orientation letter to a phase:
// vertical components carry P, horizontals carry S. Unrecognized
// orientations are skipped.
func phaseForComponent(traceID string) (Phase, bool) {
	idx := strings.LastIndex(traceID, ".")
	channel := traceID[idx+1:]
	if channel == "" {
		return "", false
	}
	switch channel[len(channel)-1] {
	case 'Z':
		return PhaseP, true
	case 'N', 'E', '1', '2':
		return PhaseS, true
	default:
		return "", false
	}
}
