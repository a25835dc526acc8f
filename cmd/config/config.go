// Package config implements the config-file generation subcommand.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quakeflow/quakeflow/internal/conf"
)

// Command creates the config command, which writes a config file seeded
// with the package defaults.
func Command(settings *conf.Settings) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "config [path]",
		Short: "Write a default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := conf.SaveAs(conf.DefaultSettings(), path); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
