// Package cmd assembles the quakeflow command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quakeflow/quakeflow/cmd/analyze"
	"github.com/quakeflow/quakeflow/cmd/associate"
	"github.com/quakeflow/quakeflow/cmd/config"
	"github.com/quakeflow/quakeflow/cmd/detect"
	"github.com/quakeflow/quakeflow/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quakeflow",
		Short: "QuakeFlow seismic analysis CLI",
		Long:  `Load seismic waveform recordings, detect P and S phase arrivals and associate them into an earthquake catalog.`,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		analyze.Command(settings),
		detect.Command(settings),
		associate.Command(settings),
		config.Command(settings),
	)

	// Flag defaults come from the loaded config, so unset flags keep the
	// configured values and set flags override them.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines the flags shared by every pipeline subcommand.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVarP(&settings.Picker.Model, "model", "m", viper.GetString("picker.model"), "Phase picking model: EQTransformer, PhaseNet, PickBlue or OBSTransformer")
	rootCmd.PersistentFlags().Float64VarP(&settings.Picker.Threshold, "threshold", "t", viper.GetFloat64("picker.threshold"), "Pick probability threshold between 0.0 and 1.0")
	rootCmd.PersistentFlags().BoolVar(&settings.Picker.ChunkMode, "chunked", viper.GetBool("picker.chunkmode"), "Run detection in fixed-duration chunks")
	rootCmd.PersistentFlags().Float64Var(&settings.Picker.ChunkSeconds, "chunk-seconds", viper.GetFloat64("picker.chunkseconds"), "Chunk duration in seconds")
	rootCmd.PersistentFlags().StringVarP(&settings.Stations.Path, "stations", "s", viper.GetString("stations.path"), "Station inventory file (CSV or StationXML)")
	rootCmd.PersistentFlags().StringVarP(&settings.Output.CSV.Path, "output", "o", viper.GetString("output.csv.path"), "Directory for exported pick and catalog tables")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
