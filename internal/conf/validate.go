package conf

import (
	"github.com/quakeflow/quakeflow/internal/errors"
)

// ValidateSettings checks the loaded settings for values that would make the
// pipeline misbehave. Invalid settings are a configuration error reported at
// startup, before any background work is dispatched.
func ValidateSettings(settings *Settings) error {
	var errs []error

	if err := validateFilterSettings(&settings.Waveform.Filter); err != nil {
		errs = append(errs, err)
	}
	if err := validatePickerSettings(&settings.Picker); err != nil {
		errs = append(errs, err)
	}
	if err := validateAssociatorSettings(&settings.Associator); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.New(errors.Join(errs...)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func validateFilterSettings(filter *FilterSettings) error {
	if filter.LowCutoff <= 0 {
		return errors.Newf("filter low cutoff must be positive, got %g", filter.LowCutoff).Build()
	}
	if filter.HighCutoff <= filter.LowCutoff {
		return errors.Newf("filter high cutoff %g must be above low cutoff %g",
			filter.HighCutoff, filter.LowCutoff).Build()
	}
	if filter.Q <= 0 {
		return errors.Newf("filter Q must be positive, got %g", filter.Q).Build()
	}
	if filter.Passes < 1 {
		return errors.Newf("filter passes must be 1 or greater, got %d", filter.Passes).Build()
	}
	return nil
}

func validatePickerSettings(picker *PickerSettings) error {
	if picker.Threshold < 0 || picker.Threshold > 1 {
		return errors.Newf("picker threshold must be in [0,1], got %g", picker.Threshold).Build()
	}
	if picker.ChunkMode && picker.ChunkSeconds <= 0 {
		return errors.Newf("chunk duration must be positive, got %g", picker.ChunkSeconds).Build()
	}
	if picker.LongWindowSec <= picker.ShortWindowSec {
		return errors.Newf("long window %g must exceed short window %g",
			picker.LongWindowSec, picker.ShortWindowSec).Build()
	}
	return nil
}

func validateAssociatorSettings(assoc *AssociatorSettings) error {
	r := assoc.Region
	if r.MinLatitude >= r.MaxLatitude {
		return errors.Newf("region latitude bounds out of order: %g >= %g",
			r.MinLatitude, r.MaxLatitude).Build()
	}
	if r.MinLongitude >= r.MaxLongitude {
		return errors.Newf("region longitude bounds out of order: %g >= %g",
			r.MinLongitude, r.MaxLongitude).Build()
	}
	if r.MinDepth < 0 || r.MaxDepth <= r.MinDepth {
		return errors.Newf("region depth range invalid: [%g, %g]", r.MinDepth, r.MaxDepth).Build()
	}

	vm := assoc.VelocityModel
	if vm.PVelocity <= 0 || vm.SVelocity <= 0 {
		return errors.Newf("velocities must be positive: Vp=%g Vs=%g", vm.PVelocity, vm.SVelocity).Build()
	}
	if vm.SVelocity >= vm.PVelocity {
		return errors.Newf("S velocity %g must be below P velocity %g", vm.SVelocity, vm.PVelocity).Build()
	}
	if vm.Tolerance <= 0 {
		return errors.Newf("velocity model tolerance must be positive, got %g", vm.Tolerance).Build()
	}
	if vm.CutoffDistance <= 0 {
		return errors.Newf("cutoff distance must be positive, got %g", vm.CutoffDistance).Build()
	}

	if assoc.MinPicks < 1 {
		return errors.Newf("minimum pick count must be at least 1, got %d", assoc.MinPicks).Build()
	}
	if assoc.MinPAndSPicks < 0 {
		return errors.Newf("minimum P+S pick count must not be negative, got %d", assoc.MinPAndSPicks).Build()
	}
	return nil
}
