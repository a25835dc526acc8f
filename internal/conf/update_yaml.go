package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SaveAs writes the settings to the given path as YAML. Used by the CLI to
// generate a starting config file the user can edit.
func SaveAs(settings *Settings, path string) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to yaml: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", path, err)
	}
	return nil
}

// DefaultSettings returns a Settings struct populated with the package
// defaults. It builds on a throwaway viper instance, so neither the global
// viper used by Load nor any values set on it leak into the result.
func DefaultSettings() *Settings {
	v := viper.New()
	setDefaults(v)
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		// Defaults are static, a failure here is a programming error.
		panic(fmt.Sprintf("error building default settings: %v", err))
	}
	return settings
}
