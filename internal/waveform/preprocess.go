package waveform

import (
	"github.com/quakeflow/quakeflow/internal/conf"
	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/waveform/filter"
)

// HighCutoff computes the effective bandpass high cutoff for a trace:
// the configured upper bound, clamped below the Nyquist frequency. The
// filter implementation treats a corner at or above Nyquist as a fatal
// numerical error, so the clamp keeps a 0.1 Hz safety margin.
func HighCutoff(configured, samplingRate float64) float64 {
	nyquist := samplingRate / 2.0
	cutoff := nyquist - 0.1
	if configured < cutoff {
		cutoff = configured
	}
	return cutoff
}

// Detrend removes a linear trend from the trace samples in place, using a
// least-squares fit over the sample index.
func (tr *Trace) Detrend() {
	n := len(tr.Samples)
	if n < 2 {
		return
	}

	// Least-squares line fit y = a + b*x over x = 0..n-1.
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range tr.Samples {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return
	}
	b := (fn*sumXY - sumX*sumY) / denom
	a := (sumY - b*sumX) / fn

	for i := range tr.Samples {
		tr.Samples[i] -= a + b*float64(i)
	}
}

// Bandpass applies a high-pass/low-pass cascade to the trace in place. The
// low corner comes from the filter settings; the high corner is the
// Nyquist-clamped cutoff for this trace's sampling rate.
func (tr *Trace) Bandpass(settings *conf.FilterSettings) error {
	if tr.SamplingRate <= 0 {
		return errors.Newf("trace %s has invalid sampling rate %g", tr.ID, tr.SamplingRate).
			Component("waveform").
			Category(errors.CategoryFiltering).
			Build()
	}

	high := HighCutoff(settings.HighCutoff, tr.SamplingRate)
	if high <= settings.LowCutoff {
		return errors.Newf("trace %s: usable band is empty (low %g Hz, clamped high %g Hz)",
			tr.ID, settings.LowCutoff, high).
			Component("waveform").
			Category(errors.CategoryFiltering).
			Context("sampling_rate", tr.SamplingRate).
			Build()
	}

	chain := filter.NewChain()

	hp, err := filter.NewHighPass(tr.SamplingRate, settings.LowCutoff, settings.Q, settings.Passes)
	if err != nil {
		return err
	}
	lp, err := filter.NewLowPass(tr.SamplingRate, high, settings.Q, settings.Passes)
	if err != nil {
		return err
	}
	if err := chain.Add(hp); err != nil {
		return err
	}
	if err := chain.Add(lp); err != nil {
		return err
	}

	chain.ApplyBatch(tr.Samples)
	return nil
}

// Preprocess runs the mandatory preprocessing over every trace: linear
// detrend first, then bandpass. The order is fixed; filtering an untrended
// trace smears the DC step across the band edges.
func Preprocess(stream Stream, settings *conf.FilterSettings) error {
	for _, tr := range stream {
		tr.Detrend()
		if err := tr.Bandpass(settings); err != nil {
			return err
		}
	}
	return nil
}
