// Package batch describes numbered image corpora and reports the results of
// running the transform pipeline over them.
package batch

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/pixbatch/internal/scheduler"
)

// Report holds the result of one pipeline run.
type Report struct {
	InputDir        string   `json:"input_dir"`
	OutputDir       string   `json:"output_dir"`
	RequestedPolicy string   `json:"requested_policy"`
	Policy          string   `json:"policy"`
	Workers         int      `json:"workers"`
	PixelWorkers    int      `json:"pixel_workers"`
	BatchSize       int      `json:"batch_size"`
	KernelSize      int      `json:"kernel_size,omitempty"`
	Normalization   string   `json:"normalization,omitempty"`
	Transforms      []string `json:"transforms"`

	Outcome            *scheduler.Outcome `json:"-"`
	Duration           time.Duration      `json:"duration_ns"`
	PeakMemoryBytes    uint64             `json:"peak_memory_bytes"`
	AverageMemoryBytes uint64             `json:"average_memory_bytes"`
}

// ImageCounts classifies source images by the fate of their work items.
type ImageCounts struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`
}

// Images counts source images. An image is processed if at least one of its
// outputs was written, skipped if its source was missing, and failed if
// none of its outputs could be produced.
func (r *Report) Images() ImageCounts {
	var c ImageCounts
	if r.Outcome == nil {
		return c
	}
	c.Total = r.Outcome.Images

	m := len(r.Transforms)
	if m == 0 {
		return c
	}
	items := r.Outcome.Items
	for start := 0; start+m <= len(items); start += m {
		var written, skipped, failed int
		for _, it := range items[start : start+m] {
			switch it.Status {
			case scheduler.StatusWritten:
				written++
			case scheduler.StatusSkipped:
				skipped++
			case scheduler.StatusFailed:
				failed++
			}
		}
		switch {
		case written > 0:
			c.Processed++
		case skipped == m:
			c.Skipped++
		case failed > 0:
			c.Failed++
		default:
			c.Canceled++
		}
	}
	return c
}

// FormatReport formats the report as text, json or csv.
func (r *Report) FormatReport(format string) (string, error) {
	return formatReport(r, format)
}

// SaveReport writes the formatted report to outputFile, or to w when
// outputFile is empty.
func (r *Report) SaveReport(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatReport(format)
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write report file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Report written to %s\n", outputFile)
		}
		return nil
	}

	_, err = fmt.Fprint(w, output)
	return err
}

// PrintStats prints throughput and memory statistics.
func (r *Report) PrintStats(w io.Writer, quiet bool) {
	if quiet || r.Outcome == nil {
		return
	}
	counts := r.Images()
	p := newPrinter()

	_, _ = p.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = p.Fprintf(w, "  Total images: %d\n", counts.Total)
	_, _ = p.Fprintf(w, "  Processed: %d\n", counts.Processed)
	_, _ = p.Fprintf(w, "  Skipped: %d\n", counts.Skipped)
	_, _ = p.Fprintf(w, "  Failed: %d\n", counts.Failed)
	_, _ = p.Fprintf(w, "  Workers: %d\n", r.Workers)
	if r.Outcome.Windows > 0 {
		_, _ = p.Fprintf(w, "  Windows: %d\n", r.Outcome.Windows)
	}
	_, _ = p.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if counts.Processed > 0 {
		avg := r.Duration / time.Duration(counts.Processed)
		_, _ = p.Fprintf(w, "  Avg per image: %v\n", avg.Round(time.Microsecond))
	}
	_, _ = p.Fprintf(w, "  Throughput: %.1f images/sec\n", r.throughput(counts))
	_, _ = p.Fprintf(w, "  Peak memory: %s\n", formatBytes(r.PeakMemoryBytes))
	if r.AverageMemoryBytes > 0 {
		_, _ = p.Fprintf(w, "  Avg memory: %s\n", formatBytes(r.AverageMemoryBytes))
	}
}

func (r *Report) throughput(counts ImageCounts) float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(counts.Processed) / r.Duration.Seconds()
}
