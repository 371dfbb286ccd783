package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/pixbatch/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readTextfile(t *testing.T, m *Metrics) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pixbatch.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestMetrics_Items(t *testing.T) {
	m := NewMetrics()
	m.ObserveItem("negate", scheduler.StatusWritten, 10*time.Millisecond)
	m.ObserveItem("negate", scheduler.StatusWritten, 20*time.Millisecond)
	m.ObserveItem("negate", scheduler.StatusSkipped, 0)
	m.ObserveItem("blur", scheduler.StatusFailed, 5*time.Millisecond)

	out := readTextfile(t, m)
	assert.Contains(t, out, `pixbatch_work_items_total{status="written",transform="negate"} 2`)
	assert.Contains(t, out, `pixbatch_work_items_total{status="skipped",transform="negate"} 1`)
	assert.Contains(t, out, `pixbatch_work_items_total{status="failed",transform="blur"} 1`)
	// Only written items feed the duration histogram.
	assert.Contains(t, out, `pixbatch_work_item_duration_seconds_count{transform="negate"} 2`)
	assert.NotContains(t, out, `pixbatch_work_item_duration_seconds_count{transform="blur"}`)
}

func TestMetrics_PhasesAndRun(t *testing.T) {
	m := NewMetrics()
	m.ObservePhase("read", 500*time.Millisecond)
	m.ObservePhase("read", 250*time.Millisecond)
	m.ObserveImages(5, 1, 2, 0)
	m.ObserveRun(2*time.Second, 4096)

	out := readTextfile(t, m)
	assert.Contains(t, out, `pixbatch_phase_seconds_total{phase="read"} 0.75`)
	assert.Contains(t, out, `pixbatch_images_total{outcome="processed"} 5`)
	assert.Contains(t, out, `pixbatch_images_total{outcome="skipped"} 1`)
	assert.Contains(t, out, `pixbatch_images_total{outcome="failed"} 2`)
	assert.Contains(t, out, "pixbatch_run_duration_seconds 2")
	assert.Contains(t, out, "pixbatch_peak_heap_bytes 4096")
	assert.Contains(t, out, "# HELP pixbatch_last_run_timestamp_seconds")
}

func TestMetrics_PrivateRegistry(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.ObserveImages(1, 0, 0, 0)

	families, err := b.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "pixbatch_images_total" {
			for _, metric := range f.GetMetric() {
				assert.Zero(t, metric.GetCounter().GetValue())
			}
		}
	}
}

func TestMetrics_WriteTextfileError(t *testing.T) {
	m := NewMetrics()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	assert.ErrorContains(t, err, "failed to write metrics file")
}
