package batch

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/pixbatch/internal/scheduler"
	"github.com/MeKo-Tech/pixbatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleReport covers three images with two transforms each: image 1 fully
// written, image 2 missing, image 3 with a failed encode for blur.
func sampleReport() *Report {
	encodeErr := &scheduler.ItemError{Index: 3, Transform: "blur", Stage: scheduler.StageEncode, Err: errors.New("disk full")}
	outcome := &scheduler.Outcome{
		Policy: scheduler.PolicyWindowed,
		Images: 3,
		Items: []scheduler.ItemResult{
			{Index: 1, Transform: "negate", Output: "out/negated/1.png", Status: scheduler.StatusWritten, Duration: 2 * time.Millisecond},
			{Index: 1, Transform: "blur", Output: "out/blurred/1.png", Status: scheduler.StatusWritten, Duration: 5 * time.Millisecond},
			{Index: 2, Transform: "negate", Output: "out/negated/2.png", Status: scheduler.StatusSkipped},
			{Index: 2, Transform: "blur", Output: "out/blurred/2.png", Status: scheduler.StatusSkipped},
			{Index: 3, Transform: "negate", Output: "out/negated/3.png", Status: scheduler.StatusWritten, Duration: time.Millisecond},
			{Index: 3, Transform: "blur", Output: "out/blurred/3.png", Status: scheduler.StatusFailed, Err: encodeErr},
		},
		Phases:  scheduler.PhaseTimes{Read: 3 * time.Millisecond, Process: 4 * time.Millisecond, Write: 2 * time.Millisecond},
		Windows: 1,
		Written: 3,
		Skipped: 2,
		Failed:  1,
	}
	return &Report{
		InputDir:        "in",
		OutputDir:       "out",
		RequestedPolicy: "auto",
		Policy:          "windowed",
		Workers:         4,
		BatchSize:       100,
		KernelSize:      3,
		Normalization:   "inbounds",
		Transforms:      []string{"negate", "blur"},
		Outcome:         outcome,
		Duration:        20 * time.Millisecond,
		PeakMemoryBytes: 3 << 20,

		AverageMemoryBytes: 2 << 20,
	}
}

func TestReport_Images(t *testing.T) {
	counts := sampleReport().Images()
	assert.Equal(t, ImageCounts{Total: 3, Processed: 2, Skipped: 1}, counts)
}

func TestReport_ImagesAllFailedOrCanceled(t *testing.T) {
	r := &Report{
		Transforms: []string{"negate"},
		Outcome: &scheduler.Outcome{
			Images: 2,
			Items: []scheduler.ItemResult{
				{Index: 1, Status: scheduler.StatusFailed},
				{Index: 2, Status: scheduler.StatusCanceled},
			},
		},
	}
	assert.Equal(t, ImageCounts{Total: 2, Failed: 1, Canceled: 1}, r.Images())
	assert.Equal(t, ImageCounts{}, (&Report{}).Images())
}

func TestReport_SaveReportToWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().SaveReport(&buf, "text", "", false))
	assert.Contains(t, buf.String(), "Policy:      windowed (requested auto)")
}

func TestReport_SaveReportToFile(t *testing.T) {
	path := filepath.Join(testutil.CreateTempDir(t), "report.json")
	var buf bytes.Buffer
	require.NoError(t, sampleReport().SaveReport(&buf, "json", path, false))
	assert.Contains(t, buf.String(), "Report written to")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"policy": "windowed"`)

	buf.Reset()
	require.NoError(t, sampleReport().SaveReport(&buf, "csv", path, true))
	assert.Empty(t, buf.String())
}

func TestReport_SaveReportBadFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, sampleReport().SaveReport(&buf, "xml", "", false))
}

func TestReport_PrintStats(t *testing.T) {
	var buf bytes.Buffer
	sampleReport().PrintStats(&buf, false)
	out := buf.String()
	assert.Contains(t, out, "Processing Statistics:")
	assert.Contains(t, out, "Total images: 3")
	assert.Contains(t, out, "Processed: 2")
	assert.Contains(t, out, "Windows: 1")
	assert.Contains(t, out, "Throughput: 100.0 images/sec")
	assert.Contains(t, out, "Peak memory: 3.0 MiB")
	assert.Contains(t, out, "Avg memory: 2.0 MiB")

	buf.Reset()
	sampleReport().PrintStats(&buf, true)
	assert.Empty(t, buf.String())
}
