package picker

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/quakeflow/quakeflow/internal/conf"
	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/logging"
	"github.com/quakeflow/quakeflow/internal/waveform"
	"github.com/quakeflow/quakeflow/internal/worker"
)

// ChunkObserver receives chunk outcomes during chunked detection.
type ChunkObserver interface {
	ChunkProcessed()
	ChunkSkipped()
	ChunkFailed()
}

// Detector runs a loaded classifier over a stream as a background task,
// either over the whole stream at once or in fixed-duration chunks.
type Detector struct {
	model    *Model
	settings *conf.PickerSettings
	chunks   ChunkObserver
	log      *slog.Logger
}

// NewDetector loads the configured model and returns a detector bound to it.
func NewDetector(settings *conf.Settings) (*Detector, error) {
	model, err := LoadModel(settings.Picker.Model, &settings.Picker)
	if err != nil {
		return nil, err
	}
	return NewDetectorWithModel(model, &settings.Picker), nil
}

// NewDetectorWithModel wires an already loaded classifier. Used by tests and
// by callers that manage model lifetime themselves.
func NewDetectorWithModel(model *Model, settings *conf.PickerSettings) *Detector {
	return &Detector{
		model:    model,
		settings: settings,
		log:      logging.ForService("phase-detector"),
	}
}

// ObserveChunks installs an observer notified of every chunk outcome. A
// nil observer disables the notifications.
func (d *Detector) ObserveChunks(o ChunkObserver) {
	d.chunks = o
}

// Task returns the background task running detection over the stream. The
// payload of the success notification is a time-ordered []Pick.
func (d *Detector) Task(stream waveform.Stream) worker.Task {
	return func(ctx context.Context, n *worker.Notifier) (any, error) {
		if len(stream) == 0 {
			return nil, errors.Newf("no waveform data to run detection on").
				Component("picker").
				Category(errors.CategoryDetection).
				Build()
		}

		n.Statusf("Running %s phase detection...", d.model.Kind)

		var picks []Pick
		var err error
		if d.settings.ChunkMode {
			picks, err = d.detectChunked(ctx, n, stream)
		} else {
			picks, err = d.detectWhole(ctx, n, stream)
		}
		if err != nil {
			return nil, err
		}

		sortPicks(picks)
		n.Progress(100)
		n.Statusf("Phase detection finished: %d picks", len(picks))
		if d.log != nil {
			d.log.Info("detection finished",
				"model", string(d.model.Kind),
				"picks", len(picks),
				"chunked", d.settings.ChunkMode)
		}
		return picks, nil
	}
}

// detectWhole classifies the full stream in one pass. Progress tracks the
// conversion of classifier output into picks.
func (d *Detector) detectWhole(ctx context.Context, n *worker.Notifier, stream waveform.Stream) ([]Pick, error) {
	raws, err := d.classify(stream)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	picks := make([]Pick, 0, len(raws))
	for i, raw := range raws {
		picks = append(picks, fromRaw(raw))
		n.Progress((i + 1) * 100 / len(raws))
	}
	return picks, nil
}

// ChunkCount returns the number of fixed-duration windows covering the
// stream's span: ceil(span/chunk), with the final window possibly shorter.
func ChunkCount(stream waveform.Stream, chunkSeconds float64) (int, error) {
	start, end, err := stream.Span()
	if err != nil {
		return 0, err
	}
	if chunkSeconds <= 0 {
		return 0, errors.Newf("chunk duration must be positive").
			Component("picker").
			Category(errors.CategoryValidation).
			Context("chunk_seconds", chunkSeconds).
			Build()
	}
	chunk := time.Duration(chunkSeconds * float64(time.Second))
	return int(math.Ceil(float64(end.Sub(start)) / float64(chunk))), nil
}

// detectChunked slices the stream into ceil(span/chunk) fixed windows and
// classifies each in turn. Empty windows and windows where the classifier
// errors are reported and skipped; the rest of the stream still runs.
func (d *Detector) detectChunked(ctx context.Context, n *worker.Notifier, stream waveform.Stream) ([]Pick, error) {
	total, err := ChunkCount(stream, d.settings.ChunkSeconds)
	if err != nil {
		return nil, err
	}
	start, _, err := stream.Span()
	if err != nil {
		return nil, err
	}
	chunk := time.Duration(d.settings.ChunkSeconds * float64(time.Second))

	var picks []Pick
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		winStart := start.Add(time.Duration(i) * chunk)
		winEnd := winStart.Add(chunk)
		n.Statusf("Processing chunk %d/%d...", i+1, total)

		window := stream.Slice(winStart, winEnd)
		if len(window) == 0 {
			n.Statusf("Chunk %d/%d holds no data, skipping", i+1, total)
			if d.chunks != nil {
				d.chunks.ChunkSkipped()
			}
			n.Progress((i + 1) * 100 / total)
			continue
		}

		raws, err := d.classify(window)
		if err != nil {
			n.Statusf("Chunk %d/%d failed, skipping: %v", i+1, total, err)
			if d.log != nil {
				d.log.Warn("chunk classification failed",
					"chunk", i+1, "total", total, "error", err)
			}
			if d.chunks != nil {
				d.chunks.ChunkFailed()
			}
			n.Progress((i + 1) * 100 / total)
			continue
		}

		for _, raw := range raws {
			picks = append(picks, fromRaw(raw))
		}
		if d.chunks != nil {
			d.chunks.ChunkProcessed()
		}
		n.Progress((i + 1) * 100 / total)
	}
	return picks, nil
}

func (d *Detector) classify(stream waveform.Stream) ([]RawPick, error) {
	raws, err := d.model.Classify(stream, d.settings.Threshold, d.settings.Threshold)
	if err != nil {
		return nil, errors.New(err).
			Component("picker").
			Category(errors.CategoryDetection).
			Context("model", string(d.model.Kind)).
			Build()
	}
	return raws, nil
}

// sortPicks orders picks ascending by time, breaking ties by station then
// phase so output is deterministic.
func sortPicks(picks []Pick) {
	sort.Slice(picks, func(i, j int) bool {
		if !picks[i].Time.Equal(picks[j].Time) {
			return picks[i].Time.Before(picks[j].Time)
		}
		if picks[i].Station != picks[j].Station {
			return picks[i].Station < picks[j].Station
		}
		return picks[i].Phase < picks[j].Phase
	})
}
