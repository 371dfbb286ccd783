package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/pixbatch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigShow_YAML(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "config", "show")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestConfigShow_JSONWithEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PIXBATCH_TRANSFORMS_KERNEL_SIZE", "11")

	out, _, err := execute(t, "config", "show", "--format", "json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 11, cfg.Transforms.KernelSize)
}

func TestConfigShow_InvalidFormat(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "config", "show", "--format", "toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestConfigInit(t *testing.T) {
	root := isolate(t)

	out, _, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to pixbatch.yaml")

	path := filepath.Join(root, "pixbatch.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, "auto", cfg.Scheduler.Policy)

	_, _, err = execute(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, "config", "init", "--force")
	require.NoError(t, err)
}

func TestConfigInit_CustomFile(t *testing.T) {
	root := isolate(t)
	path := filepath.Join(root, "custom.yaml")

	_, _, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestConfigInit_Resolved(t *testing.T) {
	root := isolate(t)
	t.Setenv("PIXBATCH_SCHEDULER_POLICY", "windowed")
	cfgFile := filepath.Join(root, "custom.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("transforms:\n  kernel_size: 7\n"), 0o600))
	path := filepath.Join(root, "resolved.yaml")

	out, _, err := execute(t, "--config", cfgFile, "config", "init", "--resolved", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, "windowed", cfg.Scheduler.Policy)
	assert.Equal(t, 7, cfg.Transforms.KernelSize)
	assert.Equal(t, config.DefaultConfig().Scheduler.BatchSize, cfg.Scheduler.BatchSize)
}

func TestConfigInit_ResolvedRejectsInvalid(t *testing.T) {
	root := isolate(t)
	t.Setenv("PIXBATCH_TRANSFORMS_KERNEL_SIZE", "4")
	path := filepath.Join(root, "resolved.yaml")

	_, _, err := execute(t, "config", "init", "--resolved", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.NoFileExists(t, path)

	// The defaults can still be written over a broken environment.
	_, _, err = execute(t, "config", "init", path)
	require.NoError(t, err)
}

func TestConfigPaths(t *testing.T) {
	root := isolate(t)

	out, _, err := execute(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file used: (none)")
	assert.Contains(t, out, "PIXBATCH")

	require.NoError(t, os.WriteFile(filepath.Join(root, "pixbatch.yaml"), []byte("log_level: warn\n"), 0o600))
	out, _, err = execute(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, out, "pixbatch.yaml")
}
