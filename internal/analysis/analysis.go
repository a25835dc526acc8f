// Package analysis wires the pipeline components together for the CLI
// commands: load, detect, associate, persist and export. It owns the
// session state and applies task results through it.
package analysis

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quakeflow/quakeflow/internal/associate"
	"github.com/quakeflow/quakeflow/internal/conf"
	"github.com/quakeflow/quakeflow/internal/datastore"
	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/export"
	"github.com/quakeflow/quakeflow/internal/logging"
	"github.com/quakeflow/quakeflow/internal/observability/metrics"
	"github.com/quakeflow/quakeflow/internal/picker"
	"github.com/quakeflow/quakeflow/internal/session"
	"github.com/quakeflow/quakeflow/internal/station"
	"github.com/quakeflow/quakeflow/internal/waveform"
	"github.com/quakeflow/quakeflow/internal/worker"
)

// Pipeline runs the analysis stages against one session.
type Pipeline struct {
	settings *conf.Settings
	sess     *session.State
	metrics  *metrics.Pipeline
	log      *slog.Logger
}

// NewPipeline creates a pipeline with a fresh session and its own metrics
// registry.
func NewPipeline(settings *conf.Settings) (*Pipeline, error) {
	pm, err := metrics.NewPipeline(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		settings: settings,
		sess:     session.New(),
		metrics:  pm,
		log:      logging.ForService("analysis"),
	}, nil
}

// Session exposes the pipeline's session state.
func (p *Pipeline) Session() *session.State {
	return p.sess
}

// LoadStations reads the configured station inventory into the session.
func (p *Pipeline) LoadStations() error {
	path := p.settings.Stations.Path
	if path == "" {
		return errors.Newf("no station inventory configured").
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
	table, err := station.LoadInventory(path)
	if err != nil {
		return err
	}
	p.sess.SetStations(table)
	p.log.Info("station inventory loaded", "path", path, "stations", table.Len())
	return nil
}

// Load runs the waveform loader and installs the stream on success.
func (p *Pipeline) Load(ctx context.Context, path string, window *waveform.Window) error {
	loader := waveform.NewLoader(waveform.NewWAVReader(), p.settings)

	start := time.Now()
	payload, err := p.runTask(ctx, session.KindLoad, loader.Task(path, window))
	if err != nil {
		return err
	}
	p.metrics.ObserveLoad(time.Since(start))

	stream, ok := payload.(waveform.Stream)
	if !ok {
		return unexpectedPayload("load")
	}
	p.sess.ApplyStream(stream)
	return nil
}

// Detect runs phase detection over the loaded stream and installs the
// picks on success.
func (p *Pipeline) Detect(ctx context.Context) error {
	if err := p.sess.RequireStream(); err != nil {
		return err
	}
	detector, err := picker.NewDetector(p.settings)
	if err != nil {
		return err
	}
	detector.ObserveChunks(p.metrics)

	if p.settings.Picker.ChunkMode {
		total, err := picker.ChunkCount(p.sess.Stream(), p.settings.Picker.ChunkSeconds)
		if err != nil {
			return err
		}
		p.sess.SetChunkTotal(total)
	} else {
		p.sess.SetChunkTotal(0)
	}

	start := time.Now()
	payload, err := p.runTask(ctx, session.KindDetect, detector.Task(p.sess.Stream()))
	if err != nil {
		return err
	}
	p.metrics.ObserveDetect(time.Since(start))

	picks, ok := payload.([]picker.Pick)
	if !ok {
		return unexpectedPayload("detect")
	}
	p.sess.ApplyPicks(picks)
	p.metrics.PicksDetected.Add(float64(len(picks)))
	return nil
}

// Associate clusters the detected picks into events and installs the
// catalog on success.
func (p *Pipeline) Associate(ctx context.Context) error {
	if err := p.sess.RequirePicks(); err != nil {
		return err
	}
	if err := p.sess.RequireStations(); err != nil {
		return err
	}
	associator, err := associate.NewAssociator(&p.settings.Associator, p.sess.Stations())
	if err != nil {
		return err
	}

	start := time.Now()
	payload, err := p.runTask(ctx, session.KindAssociate, associator.Task(p.sess.Picks()))
	if err != nil {
		return err
	}
	p.metrics.ObserveAssociate(time.Since(start))

	result, ok := payload.(*associate.Result)
	if !ok {
		return unexpectedPayload("associate")
	}
	p.sess.ApplyAssociation(result)
	p.metrics.EventsAssociated.Add(float64(len(result.Events)))
	return nil
}

// SetPicks installs externally supplied picks, bypassing detection.
func (p *Pipeline) SetPicks(picks []picker.Pick) {
	p.sess.ApplyPicks(picks)
}

// WriteOutputs persists and exports whatever the session holds, honoring
// the output configuration.
func (p *Pipeline) WriteOutputs() error {
	out := &p.settings.Output

	if out.CSV.Enabled {
		if err := os.MkdirAll(out.CSV.Path, 0o755); err != nil {
			return errors.New(err).
				Component("analysis").
				Category(errors.CategoryFileIO).
				Context("path", out.CSV.Path).
				Build()
		}
		if picks := p.sess.Picks(); len(picks) > 0 {
			if err := writePickFiles(out.CSV.Path, picks); err != nil {
				return err
			}
		}
		if events := p.sess.Events(); len(events) > 0 {
			catalog := filepath.Join(out.CSV.Path, "catalog.csv")
			if err := export.ExportCatalog(catalog, events, p.sess.Assignments()); err != nil {
				return err
			}
			p.log.Info("catalog exported",
				"events", catalog,
				"phases", export.PhasesPath(catalog))
		}
	}

	if out.SQLite.Enabled {
		store := datastore.NewSQLiteStore(out.SQLite.Path)
		if err := store.Open(); err != nil {
			return err
		}
		defer store.Close()
		if picks := p.sess.Picks(); len(picks) > 0 {
			if err := store.SavePicks(picks); err != nil {
				return err
			}
		}
		if events := p.sess.Events(); len(events) > 0 {
			if err := store.SaveCatalog(events, p.sess.Assignments()); err != nil {
				return err
			}
		}
		p.log.Info("catalog saved", "path", out.SQLite.Path)
	}
	return nil
}

func writePickFiles(dir string, picks []picker.Pick) error {
	report, err := os.Create(filepath.Join(dir, "picks.txt"))
	if err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Build()
	}
	defer report.Close()
	if err := export.WritePickReport(report, picks); err != nil {
		return err
	}

	table, err := os.Create(filepath.Join(dir, "picks.csv"))
	if err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Build()
	}
	defer table.Close()
	return export.WritePicksCSV(table, picks)
}

// runTask dispatches a background task, consumes its notifications and
// returns the success payload. The busy flag for the kind is held for the
// task's duration.
func (p *Pipeline) runTask(ctx context.Context, kind session.Kind, task worker.Task) (any, error) {
	if err := p.sess.Begin(kind); err != nil {
		return nil, err
	}
	defer p.sess.Finish(kind)

	n := worker.NewNotifier()
	worker.Run(ctx, n, task)

	var payload any
	var failure string
	succeeded := false
	for notification := range n.Events() {
		switch notification.Kind {
		case worker.KindStatus:
			p.log.Info(notification.Status, "operation", kind.String())
		case worker.KindProgress:
			p.log.Debug("progress",
				"operation", kind.String(),
				"percent", notification.Progress)
		case worker.KindSuccess:
			payload = notification.Payload
			succeeded = true
		case worker.KindFailure:
			failure = notification.Message
		}
	}

	if !succeeded {
		return nil, errors.Newf("%s failed: %s", kind, failure).
			Component("analysis").
			Category(errors.CategoryGeneric).
			Build()
	}
	return payload, nil
}

func unexpectedPayload(operation string) error {
	return errors.Newf("%s task returned an unexpected payload type", operation).
		Component("analysis").
		Category(errors.CategoryGeneric).
		Build()
}
