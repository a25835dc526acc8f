// Package filter provides IIR biquad filters based on Robert
// Bristow-Johnson's audio EQ cookbook, used for waveform preprocessing.
//
// Supported filters:
//
//   - Low-pass
//   - High-pass
//   - Band-pass
package filter

import (
	"math"
	"sync"

	"github.com/quakeflow/quakeflow/internal/errors"
)

// Kind identifies the filter type.
type Kind int

const (
	Undefined Kind = iota
	LowPass
	HighPass
	BandPass
)

// Biquad holds the digital filter parameters and per-pass state.
type Biquad struct {
	kind Kind

	// state variables, one set per pass
	in1  []float64
	in2  []float64
	out1 []float64
	out2 []float64

	passes int

	// pre-computed normalized coefficients
	b0a0, b1a0, b2a0, a1a0, a2a0 float64
}

// IsZero returns true when the filter is not initialized.
func (f *Biquad) IsZero() bool {
	return f.kind == Undefined
}

// newBiquad creates a Biquad from raw cookbook coefficients.
func newBiquad(kind Kind, a0, a1, a2, b0, b1, b2 float64, passes int) *Biquad {
	f := &Biquad{
		kind:   kind,
		passes: passes,
		in1:    make([]float64, passes),
		in2:    make([]float64, passes),
		out1:   make([]float64, passes),
		out2:   make([]float64, passes),
	}
	f.b0a0 = b0 / a0
	f.b1a0 = b1 / a0
	f.b2a0 = b2 / a0
	f.a1a0 = a1 / a0
	f.a2a0 = a2 / a0
	return f
}

// validateCorner rejects corner frequencies at or above the Nyquist limit.
// Requesting such a filter produces unstable coefficients, so it is an error
// here rather than a numerical surprise later.
func validateCorner(sampleRate, frequency float64, passes int) error {
	if passes < 1 {
		return errors.Newf("filter passes must be 1 or greater, got %d", passes).
			Component("filter").
			Category(errors.CategoryFiltering).
			Build()
	}
	if frequency <= 0 {
		return errors.Newf("corner frequency must be positive, got %g Hz", frequency).
			Component("filter").
			Category(errors.CategoryFiltering).
			Build()
	}
	if frequency >= sampleRate/2 {
		return errors.Newf("corner frequency %g Hz is at or above nyquist %g Hz",
			frequency, sampleRate/2).
			Component("filter").
			Category(errors.CategoryFiltering).
			Context("sampling_rate", sampleRate).
			Build()
	}
	return nil
}

// NewLowPass returns a low-pass filter with the given corner frequency.
func NewLowPass(sampleRate, frequency, q float64, passes int) (*Biquad, error) {
	if err := validateCorner(sampleRate, frequency, passes); err != nil {
		return nil, err
	}

	w0 := 2.0 * math.Pi * frequency / sampleRate
	alpha := math.Sin(w0) / (2.0 * q)

	return newBiquad(
		LowPass,
		1.0+alpha,
		-2.0*math.Cos(w0),
		1.0-alpha,
		(1.0-math.Cos(w0))/2.0,
		1.0-math.Cos(w0),
		(1.0-math.Cos(w0))/2.0,
		passes,
	), nil
}

// NewHighPass returns a high-pass filter with the given corner frequency.
func NewHighPass(sampleRate, frequency, q float64, passes int) (*Biquad, error) {
	if err := validateCorner(sampleRate, frequency, passes); err != nil {
		return nil, err
	}

	w0 := 2.0 * math.Pi * frequency / sampleRate
	alpha := math.Sin(w0) / (2.0 * q)

	return newBiquad(
		HighPass,
		1.0+alpha,
		-2.0*math.Cos(w0),
		1.0-alpha,
		(1.0+math.Cos(w0))/2.0,
		-1.0*(1.0+math.Cos(w0)),
		(1.0+math.Cos(w0))/2.0,
		passes,
	), nil
}

// NewBandPass returns a band-pass filter centered on frequency with the
// given bandwidth in octaves.
func NewBandPass(sampleRate, frequency, width float64, passes int) (*Biquad, error) {
	if err := validateCorner(sampleRate, frequency, passes); err != nil {
		return nil, err
	}

	w0 := 2.0 * math.Pi * frequency / sampleRate
	alpha := math.Sin(w0) * math.Sinh(math.Log(2.0)/2.0*width*w0/math.Sin(w0))

	return newBiquad(
		BandPass,
		1.0+alpha,
		-2.0*math.Cos(w0),
		1.0-alpha,
		alpha,
		0.0,
		-1.0*alpha,
		passes,
	), nil
}

// ApplyBatch applies the filter to a batch of samples in place.
func (f *Biquad) ApplyBatch(input []float64) {
	for p := range f.passes {
		for i := range input {
			output := f.b0a0*input[i] + f.b1a0*f.in1[p] + f.b2a0*f.in2[p] -
				f.a1a0*f.out1[p] - f.a2a0*f.out2[p]

			f.in2[p] = f.in1[p]
			f.in1[p] = input[i]
			f.out2[p] = f.out1[p]
			f.out1[p] = output

			input[i] = output
		}
	}
}

// Chain applies a sequence of filters in order.
type Chain struct {
	filters []*Biquad
	mu      sync.RWMutex
}

// NewChain creates an empty filter chain.
func NewChain() *Chain {
	return &Chain{filters: make([]*Biquad, 0)}
}

// Add appends a filter to the chain.
func (c *Chain) Add(f *Biquad) error {
	if f == nil || f.IsZero() {
		return errors.Newf("cannot add nil or uninitialized filter to chain").
			Component("filter").
			Category(errors.CategoryFiltering).
			Build()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = append(c.filters, f)
	return nil
}

// Length returns the number of filters in the chain.
func (c *Chain) Length() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.filters)
}

// ApplyBatch runs all filters in the chain over the input in place.
func (c *Chain) ApplyBatch(input []float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.filters {
		f.ApplyBatch(input)
	}
}
