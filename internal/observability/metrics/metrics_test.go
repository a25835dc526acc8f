package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipeline_RegistersAndCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	p, err := NewPipeline(registry)
	require.NoError(t, err)

	p.PicksDetected.Add(6)
	p.ChunksProcessed.Inc()
	p.ChunksSkipped.Inc()
	p.EventsAssociated.Inc()
	p.ObserveDetect(120 * time.Millisecond)

	assert.Equal(t, 6.0, testutil.ToFloat64(p.PicksDetected))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.ChunksProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.EventsAssociated))

	count, err := testutil.GatherAndCount(registry,
		"quakeflow_picks_detected_total",
		"quakeflow_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPipeline_ChunkObservations(t *testing.T) {
	registry := prometheus.NewRegistry()
	p, err := NewPipeline(registry)
	require.NoError(t, err)

	p.ChunkProcessed()
	p.ChunkProcessed()
	p.ChunkSkipped()
	p.ChunkFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(p.ChunksProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.ChunksSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.ChunksFailed))
}

func TestNewPipeline_DoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewPipeline(registry)
	require.NoError(t, err)

	_, err = NewPipeline(registry)
	assert.Error(t, err)
}
