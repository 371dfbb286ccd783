package pipeline

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoOpProgressCallback(t *testing.T) {
	callback := NoOpProgressCallback{}
	callback.OnStart(10)
	callback.OnProgress(5, 10)
	callback.OnComplete()
	callback.OnError(3, assert.AnError)
}

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "Test: ").WithUpdateInterval(0)

	callback.OnStart(10)
	assert.Contains(t, buf.String(), "Test: 0/10 items")

	buf.Reset()
	callback.OnProgress(5, 10)
	output := buf.String()
	assert.Contains(t, output, "5/10 (50.0%)")
	assert.Contains(t, output, "█")
	assert.Contains(t, output, "░")

	buf.Reset()
	callback.OnComplete()
	assert.Contains(t, buf.String(), "Test: Completed in")
	assert.NotContains(t, buf.String(), "failed")
}

func TestConsoleProgressCallback_Errors(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "")

	callback.OnStart(4)
	callback.OnError(3, assert.AnError)
	assert.Contains(t, buf.String(), "Item 3 failed: "+assert.AnError.Error())

	buf.Reset()
	callback.OnComplete()
	assert.Contains(t, buf.String(), "with 1 failed items")

	// OnStart resets the error count.
	buf.Reset()
	callback.OnStart(4)
	callback.OnComplete()
	assert.NotContains(t, buf.String(), "failed")
}

func TestConsoleProgressCallback_WithOptions(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "Test: ").
		WithWidth(20).
		WithUpdateInterval(time.Millisecond)

	callback.OnStart(10)
	time.Sleep(10 * time.Millisecond)

	buf.Reset()
	callback.OnProgress(5, 10)
	output := buf.String()

	assert.Contains(t, output, "Test: [")
	assert.Equal(t, 10, bytes.Count([]byte(output), []byte("█")))
	assert.Contains(t, output, "/s")
	assert.Contains(t, output, "ETA:")
}

func TestConsoleProgressCallback_UpdateThrottling(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "Test: ").
		WithUpdateInterval(time.Hour)

	callback.OnStart(10)
	buf.Reset()

	callback.OnProgress(1, 10)
	firstOutput := buf.String()

	buf.Reset()
	callback.OnProgress(2, 10)
	secondOutput := buf.String()

	assert.NotEmpty(t, firstOutput)
	assert.Empty(t, secondOutput)

	// The final update always goes through.
	buf.Reset()
	callback.OnProgress(10, 10)
	assert.Contains(t, buf.String(), "10/10 (100.0%)")
}

func TestConsoleProgressCallback_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	callback := NewConsoleProgressCallback(&buf, "")
	callback.OnStart(0)
	buf.Reset()
	callback.OnProgress(0, 0)
	assert.Empty(t, buf.String())
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	callback := NewLogProgressCallback(logger, slog.LevelInfo).WithInterval(2)

	callback.OnStart(10)
	output := buf.String()
	assert.Contains(t, output, "Starting work items")
	assert.Contains(t, output, "total=10")

	buf.Reset()
	callback.OnProgress(1, 10)
	assert.Empty(t, buf.String())

	buf.Reset()
	callback.OnProgress(2, 10)
	output = buf.String()
	assert.Contains(t, output, "Progress update")
	assert.Contains(t, output, "current=2")
	assert.Contains(t, output, "percent=20.0")

	buf.Reset()
	callback.OnProgress(10, 10)
	assert.Contains(t, buf.String(), "current=10")

	buf.Reset()
	callback.OnComplete()
	assert.Contains(t, buf.String(), "Work items completed")

	buf.Reset()
	callback.OnError(5, assert.AnError)
	output = buf.String()
	assert.Contains(t, output, "level=WARN")
	assert.Contains(t, output, "current=5")
}

func TestLogProgressCallback_IntervalFloor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	callback := NewLogProgressCallback(logger, slog.LevelInfo).WithInterval(0)

	callback.OnStart(3)
	buf.Reset()
	callback.OnProgress(1, 3)
	assert.Contains(t, buf.String(), "current=1")
}

type countingCallback struct {
	starts, progress, completes, errors int
}

func (c *countingCallback) OnStart(int)         { c.starts++ }
func (c *countingCallback) OnProgress(int, int) { c.progress++ }
func (c *countingCallback) OnComplete()         { c.completes++ }
func (c *countingCallback) OnError(int, error)  { c.errors++ }

func TestMultiProgressCallback(t *testing.T) {
	a, b := &countingCallback{}, &countingCallback{}
	multi := NewMultiProgressCallback(a, nil, b)
	assert.Equal(t, 2, multi.Len())

	multi.Add(nil)
	assert.Equal(t, 2, multi.Len())

	multi.OnStart(3)
	multi.OnProgress(1, 3)
	multi.OnProgress(2, 3)
	multi.OnError(2, assert.AnError)
	multi.OnComplete()

	for _, c := range []*countingCallback{a, b} {
		assert.Equal(t, 1, c.starts)
		assert.Equal(t, 2, c.progress)
		assert.Equal(t, 1, c.errors)
		assert.Equal(t, 1, c.completes)
	}
}
