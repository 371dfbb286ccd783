package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/pixbatch/internal/config"
	"github.com/MeKo-Tech/pixbatch/internal/pipeline"
	"github.com/spf13/cobra"
)

func newRunCommand(c *cli) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [input-dir]",
		Short: "Apply the requested transforms to every image of a numbered corpus",
		Long: `Decode every image 1.<ext> ... N.<ext> of the input directory and write one
output per requested transform into <output>/negated, <output>/grayscale,
<output>/brightened and <output>/blurred, named like its source.

Missing indices are skipped. Images that cannot be decoded or written are
reported and never stop the batch. The exit status is non-zero only for
configuration errors or a missing input directory.

Supported input formats: PNG, JPEG, GIF, BMP, TIFF, WebP
Supported output formats: PNG, TIFF, BMP

Examples:
  pixbatch run ./images
  pixbatch run ./images --transforms negate,grayscale,brightness,blur --brightness -30
  pixbatch run ./images --prompt-kernel < kernel.txt
  pixbatch run ./images --report-format json --report-file report.json --stats`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunCommand(cmd, args, c)
		},
	}

	addPipelineFlags(runCmd)

	// Output flags
	runCmd.Flags().StringP("report-format", "f", "text", "report format: text, json, csv")
	runCmd.Flags().String("report-file", "", "report file (default: stdout)")
	runCmd.Flags().String("metrics-file", "", "write prometheus metrics in textfile format to this path")

	// Interaction and progress flags
	runCmd.Flags().Bool("prompt-kernel", false, "read the blur mask size from stdin before starting")
	runCmd.Flags().Bool("progress", false, "show progress bar on stderr")
	runCmd.Flags().Bool("quiet", false, "suppress informational output")
	runCmd.Flags().Bool("stats", false, "show processing statistics on stderr")
	runCmd.Flags().Duration("progress-interval", 200*time.Millisecond, "progress update interval")

	return runCmd
}

// addPipelineFlags registers the flags shared by run and bench.
func addPipelineFlags(cmd *cobra.Command) {
	// Corpus flags
	cmd.Flags().String("ext", "png", "extension of the numbered source files")
	cmd.Flags().Int("start", 1, "first index of the corpus")
	cmd.Flags().Int("count", 0, "number of indices from --start (0 = up to the highest index present)")

	// Output flags
	cmd.Flags().StringP("output", "o", ".", "root directory of the per-transform output directories")
	cmd.Flags().String("format", "png", "output image format: png, tiff, bmp")

	// Transform flags
	cmd.Flags().StringSlice("transforms", []string{"negate", "blur"}, "transforms to apply: negate, grayscale, brightness, blur")
	cmd.Flags().IntP("kernel", "k", 3, "blur mask size (odd positive integer)")
	cmd.Flags().String("normalization", "inbounds", "blur border normalization: inbounds, fixed")
	cmd.Flags().Int("brightness", 20, "brightness delta added to every color channel")

	// Scheduling flags
	cmd.Flags().StringP("policy", "p", "auto", "scheduling policy: auto, flat, sections, fanout, windowed")
	cmd.Flags().IntP("workers", "w", 0, fmt.Sprintf("number of images processed concurrently (default: %d)", runtime.NumCPU()))
	cmd.Flags().Int("pixel-workers", 0, "goroutines per transform (0 = derived from policy)")
	cmd.Flags().Int("batch-size", 100, "window size of the windowed policy")
	cmd.Flags().String("memory-limit", "", "heap ceiling that shrinks windows (e.g. 512MB, 2GB)")
	cmd.Flags().Float64("memory-threshold", 0.8, "fraction of --memory-limit that counts as pressure (0.0-1.0)")
	cmd.Flags().Bool("report-diagnostics", false, "log non-fatal codec diagnostics")
}

// applyPipelineFlags maps explicitly set flags onto cfg. Flags override
// config file and environment values.
func applyPipelineFlags(cfg *config.Config, cmd *cobra.Command, args []string) {
	flags := cmd.Flags()

	if len(args) > 0 {
		cfg.Input.Dir = args[0]
	}
	if flags.Changed("ext") {
		cfg.Input.Extension, _ = flags.GetString("ext")
	}
	if flags.Changed("start") {
		cfg.Input.Start, _ = flags.GetInt("start")
	}
	if flags.Changed("count") {
		cfg.Input.Count, _ = flags.GetInt("count")
	}

	if flags.Changed("output") {
		cfg.Output.Dir, _ = flags.GetString("output")
	}
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}

	if flags.Changed("transforms") {
		cfg.Transforms.Enabled, _ = flags.GetStringSlice("transforms")
	}
	if flags.Changed("kernel") {
		cfg.Transforms.KernelSize, _ = flags.GetInt("kernel")
	}
	if flags.Changed("normalization") {
		cfg.Transforms.Normalization, _ = flags.GetString("normalization")
	}
	if flags.Changed("brightness") {
		cfg.Transforms.BrightnessDelta, _ = flags.GetInt("brightness")
	}

	if flags.Changed("policy") {
		cfg.Scheduler.Policy, _ = flags.GetString("policy")
	}
	if flags.Changed("workers") {
		cfg.Scheduler.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("pixel-workers") {
		cfg.Scheduler.PixelWorkers, _ = flags.GetInt("pixel-workers")
	}
	if flags.Changed("batch-size") {
		cfg.Scheduler.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("memory-limit") {
		cfg.Scheduler.MemoryLimit, _ = flags.GetString("memory-limit")
	}
	if flags.Changed("memory-threshold") {
		cfg.Scheduler.MemoryThreshold, _ = flags.GetFloat64("memory-threshold")
	}
	if flags.Changed("report-diagnostics") {
		report, _ := flags.GetBool("report-diagnostics")
		cfg.Codec.IgnoreDiagnostics = !report
	}
}

// resolveRunConfig merges flags into the loaded configuration and
// validates the result.
func resolveRunConfig(cmd *cobra.Command, args []string, c *cli) (*config.Config, error) {
	if c.cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	cfg := *c.cfg
	cfg.Transforms.Enabled = append([]string(nil), c.cfg.Transforms.Enabled...)
	applyPipelineFlags(&cfg, cmd, args)

	flags := cmd.Flags()
	if flags.Lookup("report-format") != nil && flags.Changed("report-format") {
		cfg.Output.ReportFormat, _ = flags.GetString("report-format")
	}
	if flags.Lookup("report-file") != nil && flags.Changed("report-file") {
		cfg.Output.ReportFile, _ = flags.GetString("report-file")
	}
	if flags.Lookup("metrics-file") != nil && flags.Changed("metrics-file") {
		cfg.Output.MetricsFile, _ = flags.GetString("metrics-file")
	}

	if prompt, _ := flags.GetBool("prompt-kernel"); prompt {
		size, err := promptKernelSize(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		cfg.Transforms.KernelSize = size
	}

	if cfg.Input.Dir == "" {
		return nil, errors.New("input directory is required (argument or input.dir)")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// promptKernelSize asks for the blur mask size on w and reads it from r.
func promptKernelSize(r io.Reader, w io.Writer) (int, error) {
	_, _ = fmt.Fprint(w, "Enter the size of Mask: ")
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return 0, fmt.Errorf("failed to read mask size: %w", err)
	}
	size, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("invalid mask size %q: must be an integer", strings.TrimSpace(line))
	}
	return size, nil
}

func runRunCommand(cmd *cobra.Command, args []string, c *cli) error {
	cfg, err := resolveRunConfig(cmd, args, c)
	if err != nil {
		return err
	}

	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		return err
	}
	pc.Logger = slog.Default()

	flags := cmd.Flags()
	quiet, _ := flags.GetBool("quiet")
	showProgress, _ := flags.GetBool("progress")
	showStats, _ := flags.GetBool("stats")
	interval, _ := flags.GetDuration("progress-interval")

	progress := pipeline.NewMultiProgressCallback(
		pipeline.NewLogProgressCallback(pc.Logger, slog.LevelDebug).WithInterval(100),
	)
	if showProgress && !quiet {
		progress.Add(pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Processing: ").WithUpdateInterval(interval))
	}
	pc.Progress = progress

	p, err := pipeline.New(pc)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	report, err := p.Run(ctx)
	if err != nil && report == nil {
		return fmt.Errorf("batch run failed: %w", err)
	}

	if saveErr := report.SaveReport(cmd.OutOrStdout(), cfg.Output.ReportFormat, cfg.Output.ReportFile, quiet); saveErr != nil {
		return saveErr
	}
	if showStats {
		report.PrintStats(cmd.ErrOrStderr(), quiet)
	}
	if err != nil {
		return fmt.Errorf("batch run interrupted: %w", err)
	}
	return nil
}
