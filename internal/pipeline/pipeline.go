// Package pipeline drives a batch run: it discovers the corpus, prepares the
// output layout, schedules every work item and reports the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/MeKo-Tech/pixbatch/internal/batch"
	"github.com/MeKo-Tech/pixbatch/internal/codec"
	"github.com/MeKo-Tech/pixbatch/internal/common"
	"github.com/MeKo-Tech/pixbatch/internal/scheduler"
	"github.com/MeKo-Tech/pixbatch/internal/transform"
)

// ErrInputDirMissing is returned by Run when the input directory does not
// exist.
var ErrInputDirMissing = errors.New("input directory does not exist")

// Config holds configuration for a pipeline run.
type Config struct {
	Corpus       batch.Config
	OutputDir    string
	OutputFormat codec.Format

	Transforms      []string
	KernelSize      int
	Normalization   transform.Normalization
	BrightnessDelta int

	Policy       scheduler.Policy
	Workers      int // images or tasks in flight (0 = NumCPU)
	PixelWorkers int // goroutines per transform (0 = derived from policy)
	BatchSize    int

	IgnoreDiagnostics bool
	Resource          ResourceConfig
	MetricsFile       string

	Progress ProgressCallback
	Logger   *slog.Logger
	// Codec overrides the file codec built from OutputFormat.
	Codec codec.Codec
}

// DefaultConfig returns the default run: negate and blur with a 3x3 mask.
func DefaultConfig() Config {
	return Config{
		Corpus:            batch.DefaultConfig(),
		OutputDir:         ".",
		OutputFormat:      codec.FormatPNG,
		Transforms:        []string{transform.NameNegate, transform.NameBlur},
		KernelSize:        3,
		Normalization:     transform.NormalizeInBounds,
		BrightnessDelta:   20,
		Policy:            scheduler.PolicyAuto,
		BatchSize:         scheduler.DefaultBatchSize,
		IgnoreDiagnostics: true,
		Resource:          DefaultResourceConfig(),
	}
}

// Validate checks the configuration without touching the filesystem.
func (c Config) Validate() error {
	if err := c.Corpus.Validate(); err != nil {
		return err
	}
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if _, err := codec.ParseFormat(string(c.OutputFormat)); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	if c.PixelWorkers < 0 {
		return fmt.Errorf("pixel workers must be non-negative, got %d", c.PixelWorkers)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch size must be non-negative, got %d", c.BatchSize)
	}
	_, err := transform.Build(c.Transforms, c.transformOptions(1))
	return err
}

func (c Config) transformOptions(pixelWorkers int) transform.Options {
	return transform.Options{
		KernelSize:      c.KernelSize,
		Normalization:   c.Normalization,
		BrightnessDelta: c.BrightnessDelta,
		Workers:         pixelWorkers,
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithInputDir sets the corpus directory.
func (b *Builder) WithInputDir(dir string) *Builder {
	b.cfg.Corpus.InputDir = dir
	return b
}

// WithRange limits the corpus to count indices from start (count 0 = all).
func (b *Builder) WithRange(start, count int) *Builder {
	b.cfg.Corpus.Start = start
	b.cfg.Corpus.Count = count
	return b
}

// WithOutputDir sets the root of the per-transform output directories.
func (b *Builder) WithOutputDir(dir string) *Builder {
	if dir != "" {
		b.cfg.OutputDir = dir
	}
	return b
}

// WithTransforms replaces the requested transform set.
func (b *Builder) WithTransforms(names ...string) *Builder {
	b.cfg.Transforms = names
	return b
}

// WithKernelSize sets the blur mask size.
func (b *Builder) WithKernelSize(size int) *Builder {
	b.cfg.KernelSize = size
	return b
}

// WithPolicy sets the scheduling policy.
func (b *Builder) WithPolicy(p scheduler.Policy) *Builder {
	b.cfg.Policy = p
	return b
}

// WithWorkers sets the image-level worker count.
func (b *Builder) WithWorkers(n int) *Builder {
	if n >= 0 {
		b.cfg.Workers = n
	}
	return b
}

// WithBatchSize sets the window size.
func (b *Builder) WithBatchSize(size int) *Builder {
	if size > 0 {
		b.cfg.BatchSize = size
	}
	return b
}

// WithMemoryLimit sets the heap ceiling used to shrink windows.
func (b *Builder) WithMemoryLimit(bytes uint64) *Builder {
	b.cfg.Resource.MaxMemoryBytes = bytes
	return b
}

// WithProgressCallback sets the progress callback.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Progress = callback
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.cfg.Logger = logger
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the config and creates the pipeline.
func (b *Builder) Build() (*Pipeline, error) { return New(b.cfg) }

// Pipeline runs one configured batch.
type Pipeline struct {
	cfg    Config
	codec  codec.Codec
	logger *slog.Logger
}

// New validates cfg and creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := cfg.Codec
	if c == nil {
		fc := codec.NewFileCodec()
		fc.Format = cfg.OutputFormat
		fc.IgnoreDiagnostics = cfg.IgnoreDiagnostics
		fc.Logger = logger
		c = fc
	}
	return &Pipeline{cfg: cfg, codec: c, logger: logger}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Run processes the corpus. Per-item failures are recorded in the report and
// never fail the run; a missing input directory, an unusable output
// directory or a canceled context do. On cancellation the partial report is
// returned with the error.
func (p *Pipeline) Run(ctx context.Context) (*batch.Report, error) {
	cfg := p.cfg
	timer := common.NewNamedTimer("pipeline")

	info, err := os.Stat(cfg.Corpus.InputDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInputDirMissing, cfg.Corpus.InputDir)
	}

	corpus := cfg.Corpus
	corpus.OutputExtension = cfg.OutputFormat.Extension()
	images, err := batch.Discover(corpus)
	if err != nil {
		return nil, fmt.Errorf("discover corpus: %w", err)
	}
	timer.Lap("discover")

	policy := cfg.Policy.Resolve(len(images), cfg.BatchSize)
	pixelWorkers := resolvePixelWorkers(cfg.PixelWorkers, policy, len(cfg.Transforms))
	ts, err := transform.Build(cfg.Transforms, cfg.transformOptions(pixelWorkers))
	if err != nil {
		return nil, err
	}

	for _, t := range ts {
		dir := filepath.Join(cfg.OutputDir, t.Dir())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}
	timer.Lap("prepare")

	rm := NewResourceManager(cfg.Resource)
	rm.Start()
	defer rm.Stop()

	var metrics *Metrics
	if cfg.MetricsFile != "" {
		metrics = NewMetrics()
	}

	s := &scheduler.Scheduler{
		Codec:      p.codec,
		Transforms: ts,
		Policy:     policy,
		Workers:    cfg.Workers,
		BatchSize:  cfg.BatchSize,
		OutputDir:  cfg.OutputDir,
		Logger:     p.logger,
	}
	if cfg.Resource.MaxMemoryBytes > 0 {
		s.Throttle = rm
	}
	if cfg.Progress != nil {
		s.Progress = cfg.Progress
	}
	if metrics != nil {
		s.Metrics = metrics
	}

	p.logger.Info("Starting batch run",
		"input_dir", cfg.Corpus.InputDir,
		"output_dir", cfg.OutputDir,
		"images", len(images),
		"transforms", strings.Join(cfg.Transforms, ","),
		"policy", policy.String(),
		"pixel_workers", pixelWorkers,
	)

	outcome, runErr := s.Run(ctx, images)
	timer.Lap("schedule")
	if outcome == nil {
		return nil, runErr
	}

	rm.memoryMonitor.Sample()
	stats := rm.GetStats()
	report := &batch.Report{
		InputDir:        cfg.Corpus.InputDir,
		OutputDir:       cfg.OutputDir,
		RequestedPolicy: cfg.Policy.String(),
		Policy:          outcome.Policy.String(),
		Workers:         s.Workers,
		PixelWorkers:    pixelWorkers,
		BatchSize:       cfg.BatchSize,
		Transforms:      transformNames(ts),
		Outcome:         outcome,
		Duration:        outcome.Wall,

		PeakMemoryBytes:    stats.PeakMemoryBytes,
		AverageMemoryBytes: stats.AverageMemoryBytes,
	}
	if report.Workers == 0 {
		report.Workers = runtime.NumCPU()
	}
	for _, t := range ts {
		if blur, ok := t.(transform.BoxBlur); ok {
			report.KernelSize = blur.Kernel.Size()
			report.Normalization = blur.Normalization.String()
		}
	}

	if metrics != nil {
		counts := report.Images()
		metrics.ObserveImages(counts.Processed, counts.Skipped, counts.Failed, counts.Canceled)
		metrics.ObserveRun(outcome.Wall, stats.PeakMemoryBytes)
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			p.logger.Warn("Failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}
	timer.Lap("report")
	timer.Stop()

	p.logger.Info("Batch run finished",
		append([]any{
			"written", outcome.Written,
			"skipped", outcome.Skipped,
			"failed", outcome.Failed,
			"canceled", outcome.Canceled,
			"read", outcome.Phases.Read.Round(time.Microsecond),
			"process", outcome.Phases.Process.Round(time.Microsecond),
			"write", outcome.Phases.Write.Round(time.Microsecond),
		}, timer.LogAttrs()...)...,
	)

	return report, runErr
}

// resolvePixelWorkers picks the per-transform goroutine count. Sections runs
// one sequential stream per transform, so the CPUs are shared between the
// streams; the other policies already run one image per CPU.
func resolvePixelWorkers(requested int, policy scheduler.Policy, transforms int) int {
	if requested > 0 {
		return requested
	}
	if policy != scheduler.PolicySections || transforms <= 0 {
		return 1
	}
	return max(1, runtime.NumCPU()/transforms)
}

func transformNames(ts []transform.Transform) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name()
	}
	return names
}
