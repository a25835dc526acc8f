// Package detect implements the load-and-pick subcommand.
package detect

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quakeflow/quakeflow/internal/analysis"
	"github.com/quakeflow/quakeflow/internal/conf"
	"github.com/quakeflow/quakeflow/internal/export"
)

// Command creates the detect command: load a recording, run phase
// detection and print the pick report.
func Command(settings *conf.Settings) *cobra.Command {
	var writeFiles bool

	cmd := &cobra.Command{
		Use:   "detect [input.wav]",
		Short: "Detect phase arrivals in a waveform file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := analysis.NewPipeline(settings)
			if err != nil {
				return err
			}
			if err := pipeline.Load(cmd.Context(), args[0], nil); err != nil {
				return err
			}
			if err := pipeline.Detect(cmd.Context()); err != nil {
				return err
			}

			if settings.Picker.ChunkMode {
				// The report goes to stdout, keep the summary off it.
				fmt.Fprintf(cmd.ErrOrStderr(), "processed %d chunks of %.0f s\n",
					pipeline.Session().Chunk().Total, settings.Picker.ChunkSeconds)
			}

			if writeFiles {
				return pipeline.WriteOutputs()
			}
			return export.WritePickReport(os.Stdout, pipeline.Session().Picks())
		},
	}

	cmd.Flags().BoolVarP(&writeFiles, "write", "w", false, "Write pick files to the output directory instead of stdout")
	return cmd
}
