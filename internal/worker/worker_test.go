package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quakeflow/quakeflow/internal/errors"
)

// drain collects every notification until the channel closes.
func drain(t *testing.T, n *Notifier) []Notification {
	t.Helper()
	var out []Notification
	timeout := time.After(5 * time.Second)
	for {
		select {
		case notification, ok := <-n.Events():
			if !ok {
				return out
			}
			out = append(out, notification)
		case <-timeout:
			t.Fatal("timed out waiting for notifications")
		}
	}
}

func TestRun_SuccessTerminalIsLast(t *testing.T) {
	n := NewNotifier()
	Run(context.Background(), n, func(ctx context.Context, n *Notifier) (any, error) {
		n.Status("working")
		n.Progress(10)
		n.Progress(50)
		n.Progress(100)
		return "result", nil
	})

	got := drain(t, n)
	require.NotEmpty(t, got)

	last := got[len(got)-1]
	assert.Equal(t, KindSuccess, last.Kind)
	assert.Equal(t, "result", last.Payload)
	assert.Equal(t, StateSucceeded, n.State())

	// No terminal notification before the last one.
	for _, notification := range got[:len(got)-1] {
		assert.NotEqual(t, KindSuccess, notification.Kind)
		assert.NotEqual(t, KindFailure, notification.Kind)
	}
}

func TestRun_ErrorBecomesFailure(t *testing.T) {
	n := NewNotifier()
	Run(context.Background(), n, func(ctx context.Context, n *Notifier) (any, error) {
		return nil, errors.NewStd("filter math failed")
	})

	got := drain(t, n)
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, KindFailure, last.Kind)
	assert.Equal(t, "filter math failed", last.Message)
	assert.Equal(t, StateFailed, n.State())
}

func TestRun_PanicBecomesFailure(t *testing.T) {
	n := NewNotifier()
	Run(context.Background(), n, func(ctx context.Context, n *Notifier) (any, error) {
		panic("pathological slice")
	})

	got := drain(t, n)
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, KindFailure, last.Kind)
	assert.Contains(t, last.Message, "pathological slice")
}

func TestProgress_Monotonic(t *testing.T) {
	n := NewNotifier()
	Run(context.Background(), n, func(ctx context.Context, n *Notifier) (any, error) {
		n.Progress(30)
		n.Progress(10) // out of order, must be clamped up
		n.Progress(80)
		n.Progress(250) // above 100, must be clamped down
		return nil, nil
	})

	got := drain(t, n)
	prev := 0
	for _, notification := range got {
		if notification.Kind != KindProgress {
			continue
		}
		assert.GreaterOrEqual(t, notification.Progress, prev)
		assert.LessOrEqual(t, notification.Progress, 100)
		prev = notification.Progress
	}
}

func TestNotifier_NothingAfterTerminal(t *testing.T) {
	n := NewNotifier()
	Run(context.Background(), n, func(ctx context.Context, n *Notifier) (any, error) {
		return 42, nil
	})

	got := drain(t, n)
	require.Equal(t, KindSuccess, got[len(got)-1].Kind)

	// Emissions after the terminal state must be silently discarded.
	n.Progress(99)
	n.Status("late status")
	assert.Equal(t, StateSucceeded, n.State())
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	n := NewNotifier()
	Run(ctx, n, func(ctx context.Context, n *Notifier) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	<-started
	cancel()

	got := drain(t, n)
	require.NotEmpty(t, got)
	assert.Equal(t, KindFailure, got[len(got)-1].Kind)
}
