package picker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakeflow/quakeflow/internal/conf"
	"github.com/quakeflow/quakeflow/internal/waveform"
)

func staltaSettings() *conf.PickerSettings {
	return &conf.PickerSettings{
		TriggerOn:      3.0,
		TriggerOff:     1.5,
		ShortWindowSec: 1.0,
		LongWindowSec:  10.0,
	}
}

// burstTrace is unit-amplitude background with a stronger burst injected at
// the given offset.
func burstTrace(id string, fs float64, seconds, burstAt, burstLen, amplitude float64) *waveform.Trace {
	tr := makeTrace(id, t0, fs, seconds)
	for i := range tr.Samples {
		if i%2 == 0 {
			tr.Samples[i] = 1
		} else {
			tr.Samples[i] = -1
		}
	}
	from := int(burstAt * fs)
	to := from + int(burstLen*fs)
	for i := from; i < to && i < len(tr.Samples); i++ {
		if i%2 == 0 {
			tr.Samples[i] = amplitude
		} else {
			tr.Samples[i] = -amplitude
		}
	}
	return tr
}

func TestSTALTA_PicksBurstOnVerticalAsP(t *testing.T) {
	s, err := NewSTALTA(staltaSettings())
	require.NoError(t, err)

	tr := burstTrace("CX.PB01..HHZ", 100, 60, 30, 2, 10)
	picks, err := s.Classify(waveform.Stream{tr}, 0.5, 0.5)
	require.NoError(t, err)
	require.Len(t, picks, 1)

	p := picks[0]
	assert.Equal(t, PhaseP, p.Phase)
	assert.Equal(t, "CX.PB01..HHZ", p.TraceID)
	assert.GreaterOrEqual(t, p.PeakValue, 0.5)

	onset := t0.Add(30 * time.Second)
	assert.False(t, p.Time.Before(onset))
	assert.True(t, p.Time.Before(onset.Add(2*time.Second)),
		"pick should land inside the burst")
}

func TestSTALTA_HorizontalComponentPicksS(t *testing.T) {
	s, err := NewSTALTA(staltaSettings())
	require.NoError(t, err)

	tr := burstTrace("CX.PB01..HHN", 100, 60, 30, 2, 10)
	picks, err := s.Classify(waveform.Stream{tr}, 2.0, 0.0)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, PhaseS, picks[0].Phase)
}

func TestSTALTA_QuietTraceYieldsNoPicks(t *testing.T) {
	s, err := NewSTALTA(staltaSettings())
	require.NoError(t, err)

	tr := burstTrace("CX.PB01..HHZ", 100, 60, 0, 0, 1)
	picks, err := s.Classify(waveform.Stream{tr}, 0.5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, picks)
}

func TestSTALTA_SkipsShortAndOddTraces(t *testing.T) {
	s, err := NewSTALTA(staltaSettings())
	require.NoError(t, err)

	stream := waveform.Stream{
		// Shorter than the long window, cannot warm up.
		burstTrace("CX.PB01..HHZ", 100, 5, 2, 1, 10),
		// Unrecognized orientation letter.
		burstTrace("CX.PB01..HHX", 100, 60, 30, 2, 10),
	}
	picks, err := s.Classify(stream, 0.0, 0.0)
	require.NoError(t, err)
	assert.Empty(t, picks)
}

func TestNewSTALTA_RejectsBadWindows(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*conf.PickerSettings)
	}{
		{"zero short window", func(s *conf.PickerSettings) { s.ShortWindowSec = 0 }},
		{"short not below long", func(s *conf.PickerSettings) { s.ShortWindowSec = s.LongWindowSec }},
		{"zero trigger", func(s *conf.PickerSettings) { s.TriggerOn = 0 }},
		{"detrigger above trigger", func(s *conf.PickerSettings) { s.TriggerOff = s.TriggerOn + 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			settings := staltaSettings()
			tc.mutate(settings)
			_, err := NewSTALTA(settings)
			assert.Error(t, err)
		})
	}
}
