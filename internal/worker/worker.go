// Package worker runs pipeline computations on background goroutines and
// relays progress, status and terminal notifications to the orchestrator.
//
// Notification ordering is enforced at the channel boundary: progress is
// monotonically non-decreasing, the terminal notification (success or
// failure) is always last, and nothing is emitted after it.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/quakeflow/quakeflow/internal/errors"
	"github.com/quakeflow/quakeflow/internal/logging"
)

// NotificationKind discriminates the notification variants.
type NotificationKind int

const (
	KindProgress NotificationKind = iota
	KindStatus
	KindSuccess
	KindFailure
)

// String returns a string representation of the notification kind.
func (k NotificationKind) String() string {
	switch k {
	case KindProgress:
		return "Progress"
	case KindStatus:
		return "Status"
	case KindSuccess:
		return "Success"
	case KindFailure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// Notification is a single message from a background task to its caller.
type Notification struct {
	Kind     NotificationKind
	Progress int    // percent, set for KindProgress
	Status   string // set for KindStatus
	Payload  any    // set for KindSuccess
	Message  string // set for KindFailure
}

// State tracks the lifecycle of a task. Terminal states absorb: once
// Succeeded or Failed, no further notifications are emitted.
type State int

const (
	StateRunning State = iota
	StateSucceeded
	StateFailed
)

// String returns a string representation of the task state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Notifier is the write side of a task's notification channel. Progress and
// status are fire-and-forget: if the consumer lags they are dropped rather
// than blocking the computation. The terminal notification is never dropped.
type Notifier struct {
	mu           sync.Mutex
	state        State
	lastProgress int
	events       chan Notification
	closeOnce    sync.Once
}

// NewNotifier creates a Notifier with a buffered event channel.
func NewNotifier() *Notifier {
	return &Notifier{
		state:  StateRunning,
		events: make(chan Notification, 64),
	}
}

// Events returns the read side of the notification channel. The channel is
// closed after the terminal notification.
func (n *Notifier) Events() <-chan Notification {
	return n.events
}

// State returns the current task state.
func (n *Notifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Progress emits a progress notification. Values below the last emitted
// progress are clamped up so the sequence stays non-decreasing; values
// after the terminal notification are discarded.
func (n *Notifier) Progress(percent int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateRunning {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent < n.lastProgress {
		percent = n.lastProgress
	}
	n.lastProgress = percent
	n.trySend(Notification{Kind: KindProgress, Progress: percent})
}

// Status emits a human-readable status notification.
func (n *Notifier) Status(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateRunning {
		return
	}
	n.trySend(Notification{Kind: KindStatus, Status: text})
}

// Statusf emits a formatted status notification.
func (n *Notifier) Statusf(format string, args ...any) {
	n.Status(fmt.Sprintf(format, args...))
}

// succeed transitions to StateSucceeded and emits the terminal notification.
func (n *Notifier) succeed(payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateRunning {
		return
	}
	n.state = StateSucceeded
	n.events <- Notification{Kind: KindSuccess, Payload: payload}
	n.closeOnce.Do(func() { close(n.events) })
}

// fail transitions to StateFailed and emits the terminal notification.
func (n *Notifier) fail(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != StateRunning {
		return
	}
	n.state = StateFailed
	n.events <- Notification{Kind: KindFailure, Message: message}
	n.closeOnce.Do(func() { close(n.events) })
}

// trySend delivers a non-terminal notification without blocking.
func (n *Notifier) trySend(notification Notification) {
	select {
	case n.events <- notification:
	default:
		// consumer is lagging, drop the notification
	}
}

// Task is a unit of background work. It reports intermediate progress via
// the Notifier and returns its result or an error. Implementations should
// check ctx between phases or chunks for cooperative cancellation.
type Task func(ctx context.Context, n *Notifier) (any, error)

// Run executes the task on a new goroutine. Panics and errors are converted
// into a failure notification; nothing escapes the task boundary.
func Run(ctx context.Context, n *Notifier, task Task) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("background task panicked", "panic", r)
				n.fail(fmt.Sprintf("internal error: %v", r))
			}
		}()

		payload, err := task(ctx, n)
		switch {
		case err != nil:
			n.fail(err.Error())
		case ctx.Err() != nil:
			n.fail(cancellationError(ctx.Err()).Error())
		default:
			n.succeed(payload)
		}
	}()
}

func cancellationError(cause error) error {
	return errors.New(cause).
		Component("worker").
		Category(errors.CategoryCancellation).
		Build()
}
