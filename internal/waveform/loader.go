package waveform

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/quakeflow/quakeflow/internal/conf"
	"github.com/quakeflow/quakeflow/internal/logging"
	"github.com/quakeflow/quakeflow/internal/worker"
)

// Loader reads a waveform file and runs the mandatory preprocessing. It is
// dispatched as a background task and reports three progress milestones:
// start, after the read, and completion.
type Loader struct {
	reader   Reader
	settings *conf.Settings
	log      *slog.Logger
}

// NewLoader creates a Loader using the given reader.
func NewLoader(reader Reader, settings *conf.Settings) *Loader {
	return &Loader{
		reader:   reader,
		settings: settings,
		log:      logging.ForService("waveform-loader"),
	}
}

// Probe performs a header-only read to discover the available time range.
func (l *Loader) Probe(path string) (Info, error) {
	return l.reader.Probe(path)
}

// Task returns the background task that loads and preprocesses the file.
// The payload of the success notification is the resulting Stream.
func (l *Loader) Task(path string, window *Window) worker.Task {
	return func(ctx context.Context, n *worker.Notifier) (any, error) {
		n.Status("Loading waveform data...")
		n.Progress(10)

		if window != nil {
			n.Statusf("Loading data from %s to %s...", window.Start, window.End)
		} else {
			n.Status("Loading the whole waveform file...")
		}

		stream, err := l.reader.Read(path, window)
		if err != nil {
			return nil, err
		}
		n.Progress(50)

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n.Status("Preprocessing waveform data...")
		if err := Preprocess(stream, &l.settings.Waveform.Filter); err != nil {
			return nil, err
		}

		n.Progress(100)
		n.Status("Waveform loading and preprocessing finished")
		if l.log != nil {
			l.log.Info("waveform loaded",
				"file", filepath.Base(path),
				"traces", len(stream))
		}
		return stream, nil
	}
}
