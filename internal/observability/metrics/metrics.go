// Package metrics collects pipeline counters and duration histograms.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quakeflow/quakeflow/internal/errors"
)

// Pipeline holds the metrics recorded across load, detect and associate
// runs.
type Pipeline struct {
	ChunksProcessed  prometheus.Counter
	ChunksSkipped    prometheus.Counter
	ChunksFailed     prometheus.Counter
	PicksDetected    prometheus.Counter
	EventsAssociated prometheus.Counter

	durations *prometheus.HistogramVec
}

// NewPipeline creates and registers the pipeline metrics on the given
// registry.
func NewPipeline(registry *prometheus.Registry) (*Pipeline, error) {
	p := &Pipeline{
		ChunksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quakeflow_chunks_processed_total",
			Help: "Number of waveform chunks classified.",
		}),
		ChunksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quakeflow_chunks_skipped_total",
			Help: "Number of empty waveform chunks skipped.",
		}),
		ChunksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quakeflow_chunks_failed_total",
			Help: "Number of waveform chunks whose classification failed.",
		}),
		PicksDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quakeflow_picks_detected_total",
			Help: "Number of phase picks produced by detection.",
		}),
		EventsAssociated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quakeflow_events_associated_total",
			Help: "Number of events produced by association.",
		}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quakeflow_operation_duration_seconds",
			Help:    "Duration of pipeline operations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"operation"}),
	}

	collectors := []prometheus.Collector{
		p.ChunksProcessed, p.ChunksSkipped, p.ChunksFailed,
		p.PicksDetected, p.EventsAssociated, p.durations,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, errors.New(err).
				Component("metrics").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}
	return p, nil
}

// ChunkProcessed counts a successfully classified chunk.
func (p *Pipeline) ChunkProcessed() {
	p.ChunksProcessed.Inc()
}

// ChunkSkipped counts an empty chunk skipped during chunked detection.
func (p *Pipeline) ChunkSkipped() {
	p.ChunksSkipped.Inc()
}

// ChunkFailed counts a chunk whose classification errored.
func (p *Pipeline) ChunkFailed() {
	p.ChunksFailed.Inc()
}

// ObserveLoad records a waveform load duration.
func (p *Pipeline) ObserveLoad(d time.Duration) {
	p.durations.WithLabelValues("load").Observe(d.Seconds())
}

// ObserveDetect records a detection duration.
func (p *Pipeline) ObserveDetect(d time.Duration) {
	p.durations.WithLabelValues("detect").Observe(d.Seconds())
}

// ObserveAssociate records an association duration.
func (p *Pipeline) ObserveAssociate(d time.Duration) {
	p.durations.WithLabelValues("associate").Observe(d.Seconds())
}
