package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/pixbatch/internal/testutil"
)

// manifest describes a generated corpus.
type manifest struct {
	Count     int      `json:"count"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Extension string   `json:"extension"`
	Missing   []int    `json:"missing,omitempty"`
	Files     []string `json:"files"`
}

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		dir     = flag.String("dir", "testdata/corpus", "Output directory of the corpus")
		count   = flag.Int("count", 10, "Highest index to generate")
		width   = flag.Int("width", testutil.SmallSize.Width, "Image width")
		height  = flag.Int("height", testutil.SmallSize.Height, "Image height")
		ext     = flag.String("ext", "png", "Image extension (png, jpg, bmp, tiff, gif)")
		missing = flag.String("missing", "", "Comma-separated indices to leave out")
		labeled = flag.Bool("labeled", true, "Draw each index onto its image")
		writeMf = flag.Bool("manifest", true, "Write manifest.json next to the images")
		verbose = flag.Bool("v", false, "Verbose output")
		help    = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate a numbered image corpus for pixbatch.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                          # 10 images in testdata/corpus\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -count 500 -missing 7,42  # 498 images with two gaps\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -width 1920 -height 1080  # large images\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	gaps, err := parseIndices(*missing)
	if err != nil {
		slog.Error("Invalid -missing", "error", err)
		os.Exit(2)
	}
	if *count < 0 || *width <= 0 || *height <= 0 {
		slog.Error("Invalid corpus dimensions", "count", *count, "width", *width, "height", *height)
		os.Exit(2)
	}

	if *verbose {
		slog.Info("Options", "dir", *dir, "count", *count, "width", *width, "height", *height,
			"ext", *ext, "missing", gaps, "labeled", *labeled)
	}

	cfg := testutil.CorpusConfig{
		Dir:       *dir,
		Count:     *count,
		Size:      testutil.ImageSize{Width: *width, Height: *height},
		Extension: *ext,
		Missing:   gaps,
		Labeled:   *labeled,
	}
	paths, err := testutil.WriteCorpus(cfg)
	if err != nil {
		slog.Error("Failed to generate corpus", "error", err)
		os.Exit(1)
	}
	slog.Info("Generated corpus", "dir", *dir, "images", len(paths))

	if *writeMf {
		if err := writeManifest(cfg, paths); err != nil {
			slog.Error("Failed to write manifest", "error", err)
			os.Exit(1)
		}
	}
}

// parseIndices parses "3, 7,9" into [3 7 9].
func parseIndices(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid index %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func writeManifest(cfg testutil.CorpusConfig, paths []string) error {
	m := manifest{
		Count:     cfg.Count,
		Width:     cfg.Size.Width,
		Height:    cfg.Size.Height,
		Extension: cfg.Extension,
		Missing:   cfg.Missing,
		Files:     make([]string, len(paths)),
	}
	for i, p := range paths {
		m.Files[i] = filepath.Base(p)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(cfg.Dir, "manifest.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	slog.Info("Wrote manifest", "path", path)
	return nil
}
