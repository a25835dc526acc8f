// Package conf defines the application settings and loads them with viper.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// FilterSettings holds the waveform preprocessing configuration. The high
// cutoff is an upper bound: the effective value is clamped below the Nyquist
// frequency of each trace at load time.
type FilterSettings struct {
	LowCutoff  float64 // bandpass low cutoff in Hz
	HighCutoff float64 // bandpass high cutoff upper bound in Hz
	Q          float64 // biquad Q value
	Passes     int     // filter passes per corner
}

// WaveformSettings contains settings for waveform loading.
type WaveformSettings struct {
	Filter FilterSettings
}

// PickerSettings contains settings for phase detection.
type PickerSettings struct {
	Model          string  // one of the supported classifier kinds
	Threshold      float64 // P and S probability threshold
	ChunkMode      bool    // process the stream in fixed-duration windows
	ChunkSeconds   float64 // window duration in seconds when chunked
	TriggerOn      float64 // reference picker STA/LTA trigger threshold
	TriggerOff     float64 // reference picker detrigger threshold
	ShortWindowSec float64 // reference picker short average window
	LongWindowSec  float64 // reference picker long average window
}

// RegionSettings bounds the associator's operating region.
type RegionSettings struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
	MinDepth     float64 // km
	MaxDepth     float64 // km
}

// VelocityModelSettings is a uniform (0-D) two-velocity travel-time model.
type VelocityModelSettings struct {
	PVelocity      float64 // km/s
	SVelocity      float64 // km/s
	Tolerance      float64 // travel-time tolerance window in seconds
	CutoffDistance float64 // max station distance for spatial partitioning, km
}

// AssociatorSettings contains settings for event association.
type AssociatorSettings struct {
	Region        RegionSettings
	VelocityModel VelocityModelSettings
	MinPicks      int // minimum total picks per retained event
	MinPAndSPicks int // minimum combined P+S picks per retained event
	TimeBefore    float64
}

// OutputSettings controls catalog persistence and export.
type OutputSettings struct {
	SQLite struct {
		Enabled bool
		Path    string
	}
	CSV struct {
		Enabled bool
		Path    string // directory for exported event/assignment tables
	}
}

// Settings is the top-level configuration structure.
type Settings struct {
	Debug bool

	Main struct {
		Name string // node name for exported catalogs
	}

	Waveform   WaveformSettings
	Picker     PickerSettings
	Associator AssociatorSettings
	Stations   struct {
		Path string // station inventory file (CSV or StationXML)
	}
	Output OutputSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file, applies defaults and unmarshals into a
// Settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	initViper()

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

func initViper() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths := configDirs()
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !asConfigFileNotFound(err, &notFound) {
			fmt.Fprintf(os.Stderr, "error reading config file: %v\n", err)
		}
	}
}

func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

// configDirs returns the directories searched for config.yaml, in order.
func configDirs() []string {
	dirs := []string{"."}
	if configDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(configDir, "quakeflow"))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(homeDir, ".config", "quakeflow"))
	}
	return dirs
}

// Setting returns the current settings instance, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				panic(fmt.Sprintf("error loading settings: %v", err))
			}
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
