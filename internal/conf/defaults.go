// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig registers the defaults on the global viper used by Load.
func setDefaultConfig() {
	setDefaults(viper.GetViper())
}

// setDefaults sets default values for the configuration. The region and
// velocity model defaults describe a northern Chile deployment, matching the
// network this tool was first used with.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "QuakeFlow")

	v.SetDefault("waveform.filter.lowcutoff", 1.0)
	v.SetDefault("waveform.filter.highcutoff", 20.0)
	v.SetDefault("waveform.filter.q", 0.707)
	v.SetDefault("waveform.filter.passes", 1)

	v.SetDefault("picker.model", "PhaseNet")
	v.SetDefault("picker.threshold", 0.5)
	v.SetDefault("picker.chunkmode", false)
	v.SetDefault("picker.chunkseconds", 600.0)
	v.SetDefault("picker.triggeron", 3.0)
	v.SetDefault("picker.triggeroff", 1.5)
	v.SetDefault("picker.shortwindowsec", 1.0)
	v.SetDefault("picker.longwindowsec", 10.0)

	v.SetDefault("associator.region.minlatitude", -25.0)
	v.SetDefault("associator.region.maxlatitude", -18.0)
	v.SetDefault("associator.region.minlongitude", -71.5)
	v.SetDefault("associator.region.maxlongitude", -68.0)
	v.SetDefault("associator.region.mindepth", 0.0)
	v.SetDefault("associator.region.maxdepth", 200.0)

	v.SetDefault("associator.velocitymodel.pvelocity", 7.0)
	v.SetDefault("associator.velocitymodel.svelocity", 4.0)
	v.SetDefault("associator.velocitymodel.tolerance", 2.0)
	v.SetDefault("associator.velocitymodel.cutoffdistance", 250.0)

	v.SetDefault("associator.minpicks", 10)
	v.SetDefault("associator.minpandspicks", 4)
	v.SetDefault("associator.timebefore", 300.0)

	v.SetDefault("stations.path", "")

	v.SetDefault("output.sqlite.enabled", false)
	v.SetDefault("output.sqlite.path", "quakeflow.db")
	v.SetDefault("output.csv.enabled", true)
	v.SetDefault("output.csv.path", "catalog/")
}
