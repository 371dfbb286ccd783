package batch

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/pixbatch/internal/scheduler"
)

// MaxSpan caps the number of indices a single corpus may cover.
const MaxSpan = 1 << 20

// ErrSpanTooLarge is returned when a corpus covers more than MaxSpan indices.
var ErrSpanTooLarge = errors.New("corpus index span too large")

// Discover builds the work images for the corpus described by config. The
// corpus is the contiguous index range; indices without a file are kept so
// the scheduler records them as skipped.
func Discover(config Config) ([]scheduler.WorkImage, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	start := config.Start
	var end int
	if config.Count > 0 {
		if config.Count > MaxSpan {
			return nil, fmt.Errorf("%w: count %d exceeds %d", ErrSpanTooLarge, config.Count, MaxSpan)
		}
		if start > math.MaxInt-config.Count {
			return nil, fmt.Errorf("%w: start %d plus count %d overflows", ErrSpanTooLarge, start, config.Count)
		}
		end = start + config.Count - 1
	} else {
		highest, err := highestIndex(config.InputDir, config.extension())
		if err != nil {
			return nil, err
		}
		end = highest
	}
	if end < start {
		return nil, nil
	}
	if end-start >= MaxSpan {
		return nil, fmt.Errorf("%w: indices %d..%d in %s exceed %d; set an explicit count",
			ErrSpanTooLarge, start, end, config.InputDir, MaxSpan)
	}

	ext := config.extension()
	outExt := config.outputExtension()
	images := make([]scheduler.WorkImage, 0, end-start+1)
	for i := start; i <= end; i++ {
		images = append(images, scheduler.WorkImage{
			Index:  i,
			Source: filepath.Join(config.InputDir, fmt.Sprintf("%d.%s", i, ext)),
			Name:   fmt.Sprintf("%d.%s", i, outExt),
		})
	}
	return images, nil
}

// highestIndex returns the largest n such that dir contains n.<ext>, or -1
// when there is none.
func highestIndex(dir, ext string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("cannot read input directory %s: %w", dir, err)
	}

	highest := -1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := parseIndex(e.Name(), ext); ok && n > highest {
			highest = n
		}
	}
	return highest, nil
}

// parseIndex extracts n from a file name of the form n.<ext>. Zero-padded
// stems are rejected since Discover rebuilds paths without padding.
func parseIndex(name, ext string) (int, bool) {
	stem, fileExt, found := strings.Cut(name, ".")
	if !found || !strings.EqualFold(fileExt, ext) || stem == "" {
		return 0, false
	}
	if len(stem) > 1 && stem[0] == '0' {
		return 0, false
	}
	for _, r := range stem {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(stem)
	if err != nil {
		return 0, false
	}
	return n, true
}
