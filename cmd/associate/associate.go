// Package associate implements the catalog-building subcommand.
package associate

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quakeflow/quakeflow/internal/analysis"
	"github.com/quakeflow/quakeflow/internal/conf"
	"github.com/quakeflow/quakeflow/internal/export"
)

// Command creates the associate command: read a pick table, cluster it
// into events and write the catalog.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "associate [picks.csv]",
		Short: "Associate a pick table into an event catalog",
		Long:  `Read picks from a CSV table (as written by the detect command), group them into events using the configured region and velocity model, and write the catalog outputs.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			picks, err := export.ReadPicksCSV(f)
			if err != nil {
				return err
			}

			pipeline, err := analysis.NewPipeline(settings)
			if err != nil {
				return err
			}
			if err := pipeline.LoadStations(); err != nil {
				return err
			}
			pipeline.SetPicks(picks)
			if err := pipeline.Associate(cmd.Context()); err != nil {
				return err
			}
			if err := pipeline.WriteOutputs(); err != nil {
				return err
			}

			sess := pipeline.Session()
			if excluded := sess.ExcludedStations(); len(excluded) > 0 {
				fmt.Printf("excluded stations: %v\n", excluded)
			}
			fmt.Printf("%d events from %d picks\n", len(sess.Events()), len(picks))
			return nil
		},
	}
}
