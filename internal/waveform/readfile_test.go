package waveform

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestWAV writes an interleaved 16-bit PCM file with the given number
// of channels carrying a 5 Hz tone.
func writeTestWAV(t *testing.T, path string, fs, channels int, seconds float64) {
	t.Helper()

	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	enc := wav.NewEncoder(out, fs, 16, channels, 1)
	frames := int(seconds * float64(fs))
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		v := int(10000 * math.Sin(2*math.Pi*5*float64(i)/float64(fs)))
		for ch := 0; ch < channels; ch++ {
			data[i*channels+ch] = v
		}
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: fs},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestWAVReader_Probe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pb01.wav")
	writeTestWAV(t, path, 100, 2, 60)

	info, err := NewWAVReader().Probe(path)
	require.NoError(t, err)

	assert.Equal(t, 100.0, info.SamplingRate)
	assert.Equal(t, 2, info.Channels)
	assert.Equal(t, 6000, info.TotalSamples)
	assert.InDelta(t, 60.0, info.End.Sub(info.Start).Seconds(), 0.01)
}

func TestWAVReader_Read(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pb01.wav")
	writeTestWAV(t, path, 100, 2, 60)

	stream, err := NewWAVReader().Read(path, nil)
	require.NoError(t, err)
	require.Len(t, stream, 2)

	assert.Equal(t, "QF.PB01..HHZ", stream[0].ID)
	assert.Equal(t, "QF.PB01..HHN", stream[1].ID)
	for _, tr := range stream {
		assert.Equal(t, 100.0, tr.SamplingRate)
		assert.Len(t, tr.Samples, 6000)
	}

	// Samples normalized to [-1, 1].
	var peak float64
	for _, v := range stream[0].Samples {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	assert.InDelta(t, 10000.0/32768.0, peak, 0.01)
}

func TestWAVReader_ReadWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pb01.wav")
	writeTestWAV(t, path, 100, 1, 60)

	reader := NewWAVReader()
	info, err := reader.Probe(path)
	require.NoError(t, err)

	window := &Window{Start: info.Start.Add(10 * time.Second), End: info.Start.Add(20 * time.Second)}
	stream, err := reader.Read(path, window)
	require.NoError(t, err)
	require.Len(t, stream, 1)
	assert.InDelta(t, 10.0, stream[0].Duration().Seconds(), 0.1)
}

func TestWAVReader_ReadWindow_Disjoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pb01.wav")
	writeTestWAV(t, path, 100, 1, 10)

	reader := NewWAVReader()
	info, err := reader.Probe(path)
	require.NoError(t, err)

	window := &Window{Start: info.End.Add(time.Hour), End: info.End.Add(2 * time.Hour)}
	_, err = reader.Read(path, window)
	assert.Error(t, err)
}

func TestWAVReader_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-audio.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file"), 0o644))

	_, err := NewWAVReader().Probe(path)
	assert.Error(t, err)

	_, err = NewWAVReader().Read(path, nil)
	assert.Error(t, err)
}

func TestStationFromPath(t *testing.T) {
	assert.Equal(t, "PB01", stationFromPath("/data/pb01.wav"))
	assert.Equal(t, "STA12", stationFromPath("sta-123_long_name.wav"))
	assert.Equal(t, "XXXXX", stationFromPath("….wav"))
}
