package waveform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakeflow/quakeflow/internal/conf"
	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/worker"
)

type stubReader struct {
	stream Stream
	err    error
}

func (s *stubReader) Probe(path string) (Info, error) {
	if s.err != nil {
		return Info{}, s.err
	}
	start, end, _ := s.stream.Span()
	return Info{Start: start, End: end, SamplingRate: s.stream[0].SamplingRate}, nil
}

func (s *stubReader) Read(path string, window *Window) (Stream, error) {
	if s.err != nil {
		return nil, s.err
	}
	if window != nil {
		return s.stream.Slice(window.Start, window.End), nil
	}
	return s.stream, nil
}

func loaderSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Waveform.Filter = conf.FilterSettings{LowCutoff: 1.0, HighCutoff: 20.0, Q: 0.707, Passes: 1}
	return s
}

func runTask(t *testing.T, task worker.Task) []worker.Notification {
	t.Helper()
	n := worker.NewNotifier()
	worker.Run(context.Background(), n, task)

	var out []worker.Notification
	timeout := time.After(5 * time.Second)
	for {
		select {
		case notification, ok := <-n.Events():
			if !ok {
				return out
			}
			out = append(out, notification)
		case <-timeout:
			t.Fatal("timed out waiting for loader task")
		}
	}
}

func TestLoader_Success(t *testing.T) {
	stream := Stream{makeTrace("CX.PB01..HHZ", t0, 100, 60)}
	loader := NewLoader(&stubReader{stream: stream}, loaderSettings())

	got := runTask(t, loader.Task("test.wav", nil))
	require.NotEmpty(t, got)

	last := got[len(got)-1]
	require.Equal(t, worker.KindSuccess, last.Kind)

	loaded, ok := last.Payload.(Stream)
	require.True(t, ok)
	assert.Len(t, loaded, 1)

	// Expect the three milestones in order.
	var milestones []int
	for _, notification := range got {
		if notification.Kind == worker.KindProgress {
			milestones = append(milestones, notification.Progress)
		}
	}
	assert.Equal(t, []int{10, 50, 100}, milestones)
}

func TestLoader_ReadFailure(t *testing.T) {
	readErr := errors.Newf("read failed: truncated record").
		Category(errors.CategoryWaveformIO).Build()
	loader := NewLoader(&stubReader{err: readErr}, loaderSettings())

	got := runTask(t, loader.Task("broken.wav", nil))
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, worker.KindFailure, last.Kind)
	assert.Contains(t, last.Message, "truncated record")
}

func TestLoader_FilterFailureIsReported(t *testing.T) {
	// 2 Hz sampling leaves no usable band above the 1 Hz low cutoff.
	stream := Stream{makeTrace("CX.PB01..HHZ", t0, 2, 60)}
	loader := NewLoader(&stubReader{stream: stream}, loaderSettings())

	got := runTask(t, loader.Task("lowrate.wav", nil))
	last := got[len(got)-1]
	assert.Equal(t, worker.KindFailure, last.Kind)
}
