//nolint:lll
package config

// Config represents the complete configuration for pixbatch. It can be
// loaded from configuration files, environment variables and command-line
// flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Input      InputConfig     `mapstructure:"input" yaml:"input" json:"input"`
	Output     OutputConfig    `mapstructure:"output" yaml:"output" json:"output"`
	Transforms TransformConfig `mapstructure:"transforms" yaml:"transforms" json:"transforms"`
	Scheduler  SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler" json:"scheduler"`
	Codec      CodecConfig     `mapstructure:"codec" yaml:"codec" json:"codec"`
}

// InputConfig describes the numbered source corpus.
type InputConfig struct {
	Dir       string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Extension string `mapstructure:"extension" yaml:"extension" json:"extension"`
	Start     int    `mapstructure:"start" yaml:"start" json:"start"`
	// Count of indices from Start; 0 discovers the highest index present.
	Count int `mapstructure:"count" yaml:"count" json:"count"`
}

// OutputConfig contains output layout and report settings.
type OutputConfig struct {
	Dir          string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	ReportFormat string `mapstructure:"report_format" yaml:"report_format" json:"report_format"`
	ReportFile   string `mapstructure:"report_file" yaml:"report_file" json:"report_file"`
	MetricsFile  string `mapstructure:"metrics_file" yaml:"metrics_file" json:"metrics_file"`
}

// TransformConfig selects and parameterizes the transforms.
type TransformConfig struct {
	Enabled         []string `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	KernelSize      int      `mapstructure:"kernel_size" yaml:"kernel_size" json:"kernel_size"`
	Normalization   string   `mapstructure:"normalization" yaml:"normalization" json:"normalization"`
	BrightnessDelta int      `mapstructure:"brightness_delta" yaml:"brightness_delta" json:"brightness_delta"`
}

// SchedulerConfig contains concurrency and memory settings.
type SchedulerConfig struct {
	Policy          string  `mapstructure:"policy" yaml:"policy" json:"policy"`
	Workers         int     `mapstructure:"workers" yaml:"workers" json:"workers"`
	PixelWorkers    int     `mapstructure:"pixel_workers" yaml:"pixel_workers" json:"pixel_workers"`
	BatchSize       int     `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`
	MemoryLimit     string  `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
	MemoryThreshold float64 `mapstructure:"memory_threshold" yaml:"memory_threshold" json:"memory_threshold"`
}

// CodecConfig contains raster codec settings.
type CodecConfig struct {
	IgnoreDiagnostics bool `mapstructure:"ignore_diagnostics" yaml:"ignore_diagnostics" json:"ignore_diagnostics"`
}
