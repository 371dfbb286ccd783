package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer(t *testing.T) {
	timer := NewNamedTimer("test_timer")
	assert.Equal(t, "test_timer", timer.Name())

	time.Sleep(10 * time.Millisecond)

	duration := timer.Stop()
	assert.GreaterOrEqual(t, duration, 10*time.Millisecond)
	assert.Equal(t, duration, timer.Duration())

	str := timer.String()
	assert.Contains(t, str, "test_timer: ")
	assert.Contains(t, str, "ms")
}

func TestTimer_Laps(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	first := timer.Lap("discover")
	time.Sleep(5 * time.Millisecond)
	second := timer.Lap("schedule")
	total := timer.Stop()

	laps := timer.Laps()
	require.Len(t, laps, 2)
	assert.Equal(t, "discover", laps[0].Name)
	assert.Equal(t, first, laps[0].Duration)
	assert.Equal(t, second, laps[1].Duration)
	assert.GreaterOrEqual(t, first, 5*time.Millisecond)
	assert.GreaterOrEqual(t, total, first+second)

	assert.Contains(t, timer.String(), "(discover=")
	assert.NotContains(t, timer.String(), ": ", "unnamed timer has no prefix")

	attrs := timer.LogAttrs()
	require.Len(t, attrs, 6)
	assert.Equal(t, "discover", attrs[0])
	assert.Equal(t, "schedule", attrs[2])
	assert.Equal(t, "total", attrs[4])
}
