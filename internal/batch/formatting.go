package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/pixbatch/internal/scheduler"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Report formats accepted by FormatReport.
var Formats = []string{"text", "json", "csv"}

func newPrinter() *message.Printer {
	return message.NewPrinter(language.English)
}

// formatReport formats the report in the specified format.
func formatReport(r *Report, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(r)
	case "csv":
		return formatCSV(r)
	case "", "text":
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unsupported report format %q (must be one of: %s)", format, strings.Join(Formats, ", "))
	}
}

type jsonItem struct {
	Index      int     `json:"index"`
	Transform  string  `json:"transform"`
	Output     string  `json:"output"`
	Status     string  `json:"status"`
	DurationMs float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

func items(r *Report) []scheduler.ItemResult {
	if r.Outcome == nil {
		return nil
	}
	return r.Outcome.Items
}

// formatJSON formats the summary and every work item as JSON.
func formatJSON(r *Report) (string, error) {
	payload := struct {
		*Report
		Images ImageCounts          `json:"images"`
		Counts map[string]int       `json:"items_by_status"`
		Phases scheduler.PhaseTimes `json:"phases"`
		Items  []jsonItem           `json:"items"`
	}{
		Report: r,
		Images: r.Images(),
		Counts: map[string]int{},
		Items:  []jsonItem{},
	}

	if r.Outcome != nil {
		payload.Phases = r.Outcome.Phases
		payload.Counts[string(scheduler.StatusWritten)] = r.Outcome.Written
		payload.Counts[string(scheduler.StatusSkipped)] = r.Outcome.Skipped
		payload.Counts[string(scheduler.StatusFailed)] = r.Outcome.Failed
		payload.Counts[string(scheduler.StatusCanceled)] = r.Outcome.Canceled
	}
	for _, it := range items(r) {
		ji := jsonItem{
			Index:      it.Index,
			Transform:  it.Transform,
			Output:     it.Output,
			Status:     string(it.Status),
			DurationMs: float64(it.Duration) / float64(time.Millisecond),
		}
		if it.Err != nil {
			ji.Error = it.Err.Error()
		}
		payload.Items = append(payload.Items, ji)
	}

	bts, err := json.MarshalIndent(payload, "", "  ")
	return string(bts), err
}

// formatCSV formats one row per work item.
func formatCSV(r *Report) (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{"index", "transform", "status", "output", "duration_ms", "error"}); err != nil {
		return "", err
	}
	for _, it := range items(r) {
		errText := ""
		if it.Err != nil {
			errText = it.Err.Error()
		}
		row := []string{
			strconv.Itoa(it.Index),
			it.Transform,
			string(it.Status),
			it.Output,
			strconv.FormatFloat(float64(it.Duration)/float64(time.Millisecond), 'f', 3, 64),
			errText,
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

// formatText formats a human-readable summary with phase timings.
func formatText(r *Report) string {
	var b strings.Builder
	p := newPrinter()
	counts := r.Images()

	_, _ = p.Fprintf(&b, "Input:       %s\n", r.InputDir)
	_, _ = p.Fprintf(&b, "Output:      %s\n", r.OutputDir)
	policy := r.Policy
	if r.RequestedPolicy != "" && r.RequestedPolicy != r.Policy {
		policy = fmt.Sprintf("%s (requested %s)", r.Policy, r.RequestedPolicy)
	}
	_, _ = p.Fprintf(&b, "Policy:      %s\n", policy)
	_, _ = p.Fprintf(&b, "Transforms:  %s\n", strings.Join(r.Transforms, ", "))
	_, _ = p.Fprintf(&b, "Images:      %d total, %d processed, %d skipped, %d failed\n",
		counts.Total, counts.Processed, counts.Skipped, counts.Failed)
	if counts.Canceled > 0 {
		_, _ = p.Fprintf(&b, "Canceled:    %d images\n", counts.Canceled)
	}

	if r.Outcome != nil {
		o := r.Outcome
		_, _ = p.Fprintf(&b, "Work items:  %d written, %d skipped, %d failed, %d canceled\n",
			o.Written, o.Skipped, o.Failed, o.Canceled)
		_, _ = p.Fprintf(&b, "Timings:\n")
		_, _ = p.Fprintf(&b, "  read:            %v\n", o.Phases.Read.Round(time.Microsecond))
		_, _ = p.Fprintf(&b, "  process:         %v\n", o.Phases.Process.Round(time.Microsecond))
		_, _ = p.Fprintf(&b, "  write:           %v\n", o.Phases.Write.Round(time.Microsecond))
		_, _ = p.Fprintf(&b, "  process+write:   %v\n", (o.Phases.Process + o.Phases.Write).Round(time.Microsecond))
		_, _ = p.Fprintf(&b, "  wall:            %v\n", r.Duration.Round(time.Microsecond))

		failures := 0
		for _, it := range o.Items {
			if it.Status != scheduler.StatusFailed {
				continue
			}
			if failures == 0 {
				_, _ = p.Fprintf(&b, "Failures:\n")
			}
			failures++
			_, _ = p.Fprintf(&b, "  %v\n", it.Err)
		}
	}
	return b.String()
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
