package waveform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 12, 8, 0, 0, 0, time.UTC)

func makeTrace(id string, start time.Time, fs float64, seconds float64) *Trace {
	n := int(seconds * fs)
	return &Trace{
		ID:           id,
		StartTime:    start,
		SamplingRate: fs,
		Samples:      make([]float64, n),
	}
}

func TestStationID(t *testing.T) {
	assert.Equal(t, "CX.PB01", StationID("CX.PB01..HHZ"))
	assert.Equal(t, "CX.PB01", StationID("CX.PB01.00.HHZ"))
	assert.Equal(t, "CX.PB01", StationID("CX.PB01"))
	assert.Equal(t, "PB01", StationID("PB01"))
}

func TestTrace_EndTimeAndDuration(t *testing.T) {
	tr := makeTrace("CX.PB01..HHZ", t0, 100, 60)
	assert.Equal(t, 60*time.Second, tr.Duration())

	// Last sample sits one sample interval before the nominal duration.
	want := t0.Add(60*time.Second - 10*time.Millisecond)
	assert.Equal(t, want, tr.EndTime())
}

func TestTrace_Slice(t *testing.T) {
	tr := makeTrace("CX.PB01..HHZ", t0, 100, 60)
	for i := range tr.Samples {
		tr.Samples[i] = float64(i)
	}

	t.Run("interior window", func(t *testing.T) {
		s := tr.Slice(t0.Add(10*time.Second), t0.Add(20*time.Second))
		require.NotNil(t, s)
		assert.Equal(t, t0.Add(10*time.Second), s.StartTime)
		assert.Equal(t, 1000.0, s.Samples[0])
	})

	t.Run("window before trace", func(t *testing.T) {
		s := tr.Slice(t0.Add(-10*time.Second), t0.Add(5*time.Second))
		require.NotNil(t, s)
		assert.Equal(t, t0, s.StartTime)
	})

	t.Run("end boundary sample is excluded", func(t *testing.T) {
		s := tr.Slice(t0.Add(10*time.Second), t0.Add(20*time.Second))
		require.NotNil(t, s)
		assert.Len(t, s.Samples, 1000)
		assert.Equal(t, 1999.0, s.Samples[len(s.Samples)-1])
	})

	t.Run("consecutive windows share no samples", func(t *testing.T) {
		a := tr.Slice(t0.Add(10*time.Second), t0.Add(20*time.Second))
		b := tr.Slice(t0.Add(20*time.Second), t0.Add(30*time.Second))
		require.NotNil(t, a)
		require.NotNil(t, b)
		assert.Equal(t, 2000.0, b.Samples[0])
		assert.Equal(t, t0.Add(20*time.Second), b.StartTime)
	})

	t.Run("one hertz over five seconds yields five samples", func(t *testing.T) {
		slow := makeTrace("CX.PB01..HHZ", t0, 1, 60)
		s := slow.Slice(t0, t0.Add(5*time.Second))
		require.NotNil(t, s)
		assert.Len(t, s.Samples, 5)
	})

	t.Run("inverted window is nil", func(t *testing.T) {
		assert.Nil(t, tr.Slice(t0.Add(20*time.Second), t0.Add(10*time.Second)))
	})

	t.Run("disjoint window is nil", func(t *testing.T) {
		assert.Nil(t, tr.Slice(t0.Add(2*time.Hour), t0.Add(3*time.Hour)))
	})
}

func TestStream_Span(t *testing.T) {
	s := Stream{
		makeTrace("CX.PB01..HHZ", t0, 100, 60),
		makeTrace("CX.PB02..HHZ", t0.Add(-5*time.Second), 100, 30),
	}
	start, end, err := s.Span()
	require.NoError(t, err)
	assert.Equal(t, t0.Add(-5*time.Second), start)
	assert.True(t, end.After(t0.Add(59*time.Second)))

	_, _, err = Stream{}.Span()
	assert.Error(t, err)
}

func TestStream_Slice_OmitsEmptyTraces(t *testing.T) {
	s := Stream{
		makeTrace("CX.PB01..HHZ", t0, 100, 60),
		makeTrace("CX.PB02..HHZ", t0.Add(2*time.Hour), 100, 60),
	}
	sliced := s.Slice(t0, t0.Add(30*time.Second))
	require.Len(t, sliced, 1)
	assert.Equal(t, "CX.PB01..HHZ", sliced[0].ID)
}
