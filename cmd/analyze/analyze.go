// Package analyze implements the full-pipeline subcommand.
package analyze

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quakeflow/quakeflow/internal/analysis"
	"github.com/quakeflow/quakeflow/internal/conf"
)

// Command creates the analyze command running load, detect and associate
// over a single recording.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [input.wav]",
		Short: "Run the full pipeline over a waveform file",
		Long:  `Load a waveform recording, detect phase arrivals and associate them into an event catalog, then write the configured outputs.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := analysis.NewPipeline(settings)
			if err != nil {
				return err
			}

			if err := pipeline.LoadStations(); err != nil {
				return err
			}
			if err := pipeline.Load(cmd.Context(), args[0], nil); err != nil {
				return err
			}
			if err := pipeline.Detect(cmd.Context()); err != nil {
				return err
			}
			if err := pipeline.Associate(cmd.Context()); err != nil {
				return err
			}
			if err := pipeline.WriteOutputs(); err != nil {
				return err
			}

			sess := pipeline.Session()
			if settings.Picker.ChunkMode {
				fmt.Printf("processed %d chunks of %.0f s\n",
					sess.Chunk().Total, settings.Picker.ChunkSeconds)
			}
			fmt.Printf("%d picks, %d events, %d assignments\n",
				len(sess.Picks()), len(sess.Events()), len(sess.Assignments()))
			return nil
		},
	}
}
