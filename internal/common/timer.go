// Package common provides timing helpers shared by the tracker and the CLI.
package common

import (
	"log/slog"
	"time"
)

// Timer measures one interval. A named timer logs under its name.
type Timer struct {
	name    string
	start   time.Time
	elapsed time.Duration
	stopped bool
}

// NewTimer creates a started timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// NewNamedTimer creates a started timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop freezes the timer on the first call. Every call returns the frozen
// interval.
func (t *Timer) Stop() time.Duration {
	if !t.stopped {
		t.elapsed = time.Since(t.start)
		t.stopped = true
	}
	return t.elapsed
}

// Elapsed returns the running time, or the frozen interval once stopped.
func (t *Timer) Elapsed() time.Duration {
	if t.stopped {
		return t.elapsed
	}
	return time.Since(t.start)
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// Attr stops the timer and returns the interval as a log attribute keyed by
// the timer name, or "duration" if unnamed.
func (t *Timer) Attr() slog.Attr {
	key := t.name
	if key == "" {
		key = "duration"
	}
	return slog.Duration(key, t.Stop())
}

// String formats the elapsed time as name=duration.
func (t *Timer) String() string {
	if t.name == "" {
		return t.Elapsed().String()
	}
	return t.name + "=" + t.Elapsed().String()
}
