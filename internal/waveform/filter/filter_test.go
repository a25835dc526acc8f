package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLowPass_RejectsNyquistViolation(t *testing.T) {
	_, err := NewLowPass(100, 50, 0.707, 1)
	require.Error(t, err)

	_, err = NewLowPass(100, 60, 0.707, 1)
	require.Error(t, err)

	_, err = NewLowPass(100, 49.9, 0.707, 1)
	assert.NoError(t, err)
}

func TestNewFilter_InvalidParams(t *testing.T) {
	_, err := NewHighPass(100, 1.0, 0.707, 0)
	assert.Error(t, err, "zero passes")

	_, err = NewBandPass(100, -1.0, 1.0, 1)
	assert.Error(t, err, "negative frequency")
}

func TestBiquad_ApplyBatch_InPlace(t *testing.T) {
	f, err := NewLowPass(100, 10, 0.707, 1)
	require.NoError(t, err)

	input := []float64{1.0, 0.5, 0.0, -0.5, -1.0}
	addr := &input[0]
	f.ApplyBatch(input)
	assert.Equal(t, addr, &input[0], "should modify slice in place")
}

func TestLowPass_PassesDC(t *testing.T) {
	f, err := NewLowPass(100, 10, 0.707, 1)
	require.NoError(t, err)

	input := make([]float64, 1000)
	for i := range input {
		input[i] = 0.5
	}
	f.ApplyBatch(input)

	for i := 900; i < 1000; i++ {
		assert.InDelta(t, 0.5, input[i], 0.01, "DC should pass through lowpass (sample %d)", i)
	}
}

func TestHighPass_RemovesDC(t *testing.T) {
	f, err := NewHighPass(100, 1.0, 0.707, 1)
	require.NoError(t, err)

	input := make([]float64, 2000)
	for i := range input {
		input[i] = 1.0
	}
	f.ApplyBatch(input)

	// After settling the DC offset must be gone.
	for i := 1900; i < 2000; i++ {
		assert.InDelta(t, 0.0, input[i], 0.01, "DC should be rejected by highpass (sample %d)", i)
	}
}

func TestHighPass_AttenuatesBelowCorner(t *testing.T) {
	fs := 100.0
	f, err := NewHighPass(fs, 10.0, 0.707, 2)
	require.NoError(t, err)

	// 0.5 Hz tone, well below the 10 Hz corner.
	n := 4000
	input := make([]float64, n)
	for i := range input {
		input[i] = math.Sin(2 * math.Pi * 0.5 * float64(i) / fs)
	}
	f.ApplyBatch(input)

	var peak float64
	for i := n / 2; i < n; i++ {
		if a := math.Abs(input[i]); a > peak {
			peak = a
		}
	}
	assert.Less(t, peak, 0.05, "sub-corner tone should be strongly attenuated")
}

func TestChain(t *testing.T) {
	c := NewChain()
	assert.Equal(t, 0, c.Length())

	require.Error(t, c.Add(nil))
	require.Error(t, c.Add(&Biquad{}))

	hp, err := NewHighPass(100, 1.0, 0.707, 1)
	require.NoError(t, err)
	lp, err := NewLowPass(100, 20.0, 0.707, 1)
	require.NoError(t, err)

	require.NoError(t, c.Add(hp))
	require.NoError(t, c.Add(lp))
	assert.Equal(t, 2, c.Length())

	input := make([]float64, 500)
	input[0] = 1.0
	c.ApplyBatch(input) // must not panic, output is the cascade response
}
