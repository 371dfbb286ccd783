// Package common provides shared timing and benchmarking utilities.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Lap is one named segment of a Timer.
type Lap struct {
	Name     string
	Duration time.Duration
}

// Timer measures elapsed time with optional named laps.
type Timer struct {
	start    time.Time
	last     time.Time
	name     string
	duration time.Duration
	laps     []Lap
}

// NewTimer creates and starts an unnamed timer.
func NewTimer() *Timer {
	return NewNamedTimer("")
}

// NewNamedTimer creates and starts a timer with the given name.
func NewNamedTimer(name string) *Timer {
	now := time.Now()
	return &Timer{name: name, start: now, last: now}
}

// Lap records the time since the previous lap (or the start) under name and
// returns it.
func (t *Timer) Lap(name string) time.Duration {
	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	t.laps = append(t.laps, Lap{Name: name, Duration: d})
	return d
}

// Laps returns the recorded laps in order.
func (t *Timer) Laps() []Lap {
	return t.laps
}

// Stop stops the timer and returns the total elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// LogAttrs returns the laps and total as alternating key/value pairs for
// slog, with durations rounded to microseconds.
func (t *Timer) LogAttrs() []any {
	attrs := make([]any, 0, 2*len(t.laps)+2)
	for _, l := range t.laps {
		attrs = append(attrs, l.Name, l.Duration.Round(time.Microsecond))
	}
	return append(attrs, "total", t.duration.Round(time.Microsecond))
}

// String returns a formatted representation, including laps.
func (t *Timer) String() string {
	var b strings.Builder
	if t.name != "" {
		b.WriteString(t.name)
		b.WriteString(": ")
	}
	b.WriteString(t.duration.String())
	if len(t.laps) > 0 {
		parts := make([]string, len(t.laps))
		for i, l := range t.laps {
			parts[i] = fmt.Sprintf("%s=%v", l.Name, l.Duration)
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	return b.String()
}
