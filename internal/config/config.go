package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/MeKo-Tech/pixbatch/internal/batch"
	"github.com/MeKo-Tech/pixbatch/internal/codec"
	"github.com/MeKo-Tech/pixbatch/internal/pipeline"
	"github.com/MeKo-Tech/pixbatch/internal/scheduler"
	"github.com/MeKo-Tech/pixbatch/internal/transform"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	p := pipeline.DefaultConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Input: InputConfig{
			Extension: p.Corpus.Extension,
			Start:     p.Corpus.Start,
			Count:     0,
		},
		Output: OutputConfig{
			Dir:          p.OutputDir,
			Format:       string(p.OutputFormat),
			ReportFormat: "text",
		},
		Transforms: TransformConfig{
			Enabled:         slices.Clone(p.Transforms),
			KernelSize:      p.KernelSize,
			Normalization:   p.Normalization.String(),
			BrightnessDelta: p.BrightnessDelta,
		},
		Scheduler: SchedulerConfig{
			Policy:          p.Policy.String(),
			Workers:         runtime.NumCPU(),
			PixelWorkers:    0,
			BatchSize:       p.BatchSize,
			MemoryLimit:     "",
			MemoryThreshold: p.Resource.MemoryThreshold,
		},
		Codec: CodecConfig{
			IgnoreDiagnostics: p.IgnoreDiagnostics,
		},
	}
}

// Validate validates the configuration and returns any errors. The input
// directory is not checked here since commands may take it as an argument.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Output.ReportFormat != "" && !slices.Contains(batch.Formats, c.Output.ReportFormat) {
		return fmt.Errorf("invalid report format: %s (must be one of: %s)", c.Output.ReportFormat, strings.Join(batch.Formats, ", "))
	}
	if _, err := codec.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("invalid output format: %w", err)
	}

	if c.Input.Start < 0 {
		return fmt.Errorf("invalid input start: %d (must be non-negative)", c.Input.Start)
	}
	if c.Input.Count < 0 {
		return fmt.Errorf("invalid input count: %d (must be non-negative)", c.Input.Count)
	}

	if len(c.Transforms.Enabled) == 0 {
		return errors.New("at least one transform must be enabled")
	}
	if c.Transforms.KernelSize <= 0 || c.Transforms.KernelSize%2 == 0 {
		return fmt.Errorf("invalid kernel size: %d (must be an odd positive integer)", c.Transforms.KernelSize)
	}
	if _, err := transform.ParseNormalization(c.Transforms.Normalization); err != nil {
		return err
	}
	if _, err := transform.Build(c.Transforms.Enabled, transform.Options{KernelSize: c.Transforms.KernelSize}); err != nil {
		return err
	}

	if _, err := scheduler.ParsePolicy(c.Scheduler.Policy); err != nil {
		return err
	}
	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("invalid scheduler workers: %d (must be non-negative)", c.Scheduler.Workers)
	}
	if c.Scheduler.PixelWorkers < 0 {
		return fmt.Errorf("invalid pixel workers: %d (must be non-negative)", c.Scheduler.PixelWorkers)
	}
	if c.Scheduler.BatchSize <= 0 {
		return fmt.Errorf("invalid batch size: %d (must be positive)", c.Scheduler.BatchSize)
	}
	if err := validateThreshold(c.Scheduler.MemoryThreshold, "scheduler.memory_threshold"); err != nil {
		return err
	}
	if _, err := pipeline.ParseMemoryLimit(c.Scheduler.MemoryLimit); err != nil {
		return fmt.Errorf("invalid scheduler memory limit: %w", err)
	}

	return nil
}

// ToPipelineConfig converts the config to the pipeline configuration.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()

	format, err := codec.ParseFormat(c.Output.Format)
	if err != nil {
		return cfg, err
	}
	norm, err := transform.ParseNormalization(c.Transforms.Normalization)
	if err != nil {
		return cfg, err
	}
	policy, err := scheduler.ParsePolicy(c.Scheduler.Policy)
	if err != nil {
		return cfg, err
	}
	limit, err := pipeline.ParseMemoryLimit(c.Scheduler.MemoryLimit)
	if err != nil {
		return cfg, err
	}

	cfg.Corpus = batch.Config{
		InputDir:  c.Input.Dir,
		Extension: c.Input.Extension,
		Start:     c.Input.Start,
		Count:     c.Input.Count,
	}
	cfg.OutputDir = c.Output.Dir
	cfg.OutputFormat = format
	cfg.MetricsFile = c.Output.MetricsFile

	cfg.Transforms = slices.Clone(c.Transforms.Enabled)
	cfg.KernelSize = c.Transforms.KernelSize
	cfg.Normalization = norm
	cfg.BrightnessDelta = c.Transforms.BrightnessDelta

	cfg.Policy = policy
	cfg.Workers = c.Scheduler.Workers
	cfg.PixelWorkers = c.Scheduler.PixelWorkers
	cfg.BatchSize = c.Scheduler.BatchSize
	cfg.Resource.MaxMemoryBytes = limit
	cfg.Resource.MemoryThreshold = c.Scheduler.MemoryThreshold

	cfg.IgnoreDiagnostics = c.Codec.IgnoreDiagnostics
	return cfg, nil
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
