package batch

import (
	"errors"
	"fmt"
	"strings"
)

// Config describes a numbered input corpus and how its outputs are named.
type Config struct {
	// InputDir holds the sources 1.<ext>, 2.<ext>, ….
	InputDir string
	// Extension of the source files, without the dot.
	Extension string
	// Start is the first index of the corpus.
	Start int
	// Count is the number of indices from Start; 0 discovers the highest
	// index present in InputDir.
	Count int
	// OutputExtension names the files written for each transform.
	OutputExtension string
}

// DefaultConfig returns a corpus config for PNG sources starting at 1.
func DefaultConfig() Config {
	return Config{
		Extension:       "png",
		Start:           1,
		OutputExtension: "png",
	}
}

// Validate checks the corpus config.
func (c Config) Validate() error {
	if c.InputDir == "" {
		return errors.New("input directory is required")
	}
	if c.Start < 0 {
		return fmt.Errorf("start index must be non-negative, got %d", c.Start)
	}
	if c.Count < 0 {
		return fmt.Errorf("count must be non-negative, got %d", c.Count)
	}
	if strings.Trim(c.Extension, ".") == "" {
		return errors.New("input extension is required")
	}
	return nil
}

func (c Config) extension() string {
	return strings.ToLower(strings.TrimPrefix(c.Extension, "."))
}

func (c Config) outputExtension() string {
	if ext := strings.TrimPrefix(c.OutputExtension, "."); ext != "" {
		return strings.ToLower(ext)
	}
	return c.extension()
}
