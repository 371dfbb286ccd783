package pipeline

import (
	"fmt"
	"time"

	"github.com/MeKo-Tech/pixbatch/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects run metrics in a private registry. A batch run has no
// scrape endpoint, so the registry is written out in the node exporter
// textfile format when the run ends.
type Metrics struct {
	registry *prometheus.Registry

	itemsTotal    *prometheus.CounterVec
	itemDuration  *prometheus.HistogramVec
	phaseSeconds  *prometheus.CounterVec
	imagesTotal   *prometheus.CounterVec
	runDuration   prometheus.Gauge
	peakMemory    prometheus.Gauge
	lastRunFinish prometheus.Gauge
}

// NewMetrics creates and registers the pipeline metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		itemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixbatch_work_items_total",
				Help: "Total number of work items by transform and final status",
			},
			[]string{"transform", "status"},
		),
		itemDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pixbatch_work_item_duration_seconds",
				Help:    "Transform plus encode time per work item in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"transform"},
		),
		phaseSeconds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixbatch_phase_seconds_total",
				Help: "Time spent per phase summed across workers",
			},
			[]string{"phase"}, // phase: read, process, write
		),
		imagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pixbatch_images_total",
				Help: "Total number of source images by outcome",
			},
			[]string{"outcome"}, // outcome: processed, skipped, failed, canceled
		),
		runDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pixbatch_run_duration_seconds",
				Help: "Wall-clock duration of the last run",
			},
		),
		peakMemory: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pixbatch_peak_heap_bytes",
				Help: "Peak sampled heap usage during the last run",
			},
		),
		lastRunFinish: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pixbatch_last_run_timestamp_seconds",
				Help: "Unix time at which the last run finished",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveItem implements scheduler.Recorder.
func (m *Metrics) ObserveItem(transform string, status scheduler.Status, d time.Duration) {
	m.itemsTotal.WithLabelValues(transform, string(status)).Inc()
	if status == scheduler.StatusWritten {
		m.itemDuration.WithLabelValues(transform).Observe(d.Seconds())
	}
}

// ObservePhase implements scheduler.Recorder.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	m.phaseSeconds.WithLabelValues(phase).Add(d.Seconds())
}

// ObserveImages records per-image outcome counts.
func (m *Metrics) ObserveImages(processed, skipped, failed, canceled int) {
	m.imagesTotal.WithLabelValues("processed").Add(float64(processed))
	m.imagesTotal.WithLabelValues("skipped").Add(float64(skipped))
	m.imagesTotal.WithLabelValues("failed").Add(float64(failed))
	m.imagesTotal.WithLabelValues("canceled").Add(float64(canceled))
}

// ObserveRun records the run duration and peak heap usage.
func (m *Metrics) ObserveRun(d time.Duration, peakHeapBytes uint64) {
	m.runDuration.Set(d.Seconds())
	m.peakMemory.Set(float64(peakHeapBytes))
	m.lastRunFinish.SetToCurrentTime()
}

// WriteTextfile writes all metrics to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
