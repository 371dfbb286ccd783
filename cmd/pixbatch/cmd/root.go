// Package cmd implements the pixbatch command line.
package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/pixbatch/internal/config"
	"github.com/MeKo-Tech/pixbatch/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli holds the state shared by one command tree.
type cli struct {
	loader  *config.Loader
	cfgFile string
	cfg     *config.Config
}

// Execute runs the command line and exits with status 1 on failure. This is
// called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds a fresh command tree with its own viper instance, so
// tests can execute commands repeatedly without leaking flag state.
func NewRootCommand() *cobra.Command {
	c := &cli{loader: config.NewLoaderWithViper(viper.New())}

	rootCmd := &cobra.Command{
		Use:   "pixbatch",
		Short: "Batch raster transforms over numbered image corpora",
		Long: `pixbatch decodes a directory of sequentially numbered images (1.png, 2.png, ...)
and writes one output directory per requested transform: negated, grayscale,
brightened and blurred. Missing indices are skipped, corrupt sources are
reported, and the work is scheduled under a selectable concurrency policy.

Examples:
  pixbatch run ./images
  pixbatch run ./images --transforms negate,blur --kernel 5 --output ./out
  pixbatch run ./images --policy windowed --batch-size 50 --memory-limit 1GB
  pixbatch bench ./images --policies flat,windowed`,
		Version:      version.String(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $XDG_CONFIG_HOME/pixbatch, /etc/pixbatch)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	v := c.loader.GetViper()
	_ = v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	// Validation waits until subcommand flags are merged, so a flag can
	// repair a bad file or environment value.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := c.loader.LoadWithFileWithoutValidation(c.cfgFile)
		if err != nil {
			return err
		}
		c.cfg = cfg
		setupLogging(cmd.ErrOrStderr(), cfg)
		return nil
	}

	rootCmd.AddCommand(
		newRunCommand(c),
		newBenchCommand(c),
		newConfigCommand(c),
		newVersionCommand(),
	)
	return rootCmd
}

// setupLogging installs the JSON logger. Logs go to stderr so reports on
// stdout stay machine-readable.
func setupLogging(w io.Writer, cfg *config.Config) {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel(cfg),
	}))
	slog.SetDefault(logger)
}

func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			v, commit, date := version.Info()
			out := cmd.OutOrStdout()
			_, _ = io.WriteString(out, "pixbatch version "+v+"\n")
			_, _ = io.WriteString(out, "Commit: "+commit+"\n")
			_, _ = io.WriteString(out, "Date: "+date+"\n")
		},
	}
}
