// Package transform implements the pixel-level operations applied to each
// image: negation, grayscale, brightness and box blur.
package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/pixbatch/internal/imagebuf"
)

// Transform names as used in configuration and reports.
const (
	NameNegate     = "negate"
	NameBlur       = "blur"
	NameGrayscale  = "grayscale"
	NameBrightness = "brightness"
)

// AllNames lists every transform in canonical order.
var AllNames = []string{NameNegate, NameBlur, NameGrayscale, NameBrightness}

var (
	// ErrEmptyBuffer is returned when a transform is handed the sentinel.
	ErrEmptyBuffer = errors.New("empty image buffer")
	// ErrUnknownTransform is returned by Build for unrecognized names.
	ErrUnknownTransform = errors.New("unknown transform")
)

// Transform is one pixel operation.
//
// In-place transforms mutate the buffer they are given and return it. The
// others leave the input untouched and return a new buffer owned by the
// caller.
type Transform interface {
	Name() string
	// Dir is the output directory name for this transform's results.
	Dir() string
	InPlace() bool
	Apply(buf *imagebuf.Buffer) (*imagebuf.Buffer, error)
}

// Derive produces t's result for src without modifying src. The returned
// buffer is owned by the caller and must be released after use.
func Derive(src *imagebuf.Buffer, t Transform) (*imagebuf.Buffer, error) {
	if src.Empty() {
		return nil, ErrEmptyBuffer
	}
	if !t.InPlace() {
		return t.Apply(src)
	}
	cp := src.Clone()
	out, err := t.Apply(cp)
	if err != nil {
		cp.Release()
		return nil, err
	}
	return out, nil
}

// Consume produces t's result, taking ownership of src. For in-place
// transforms no copy is made. src must not be used afterwards.
func Consume(src *imagebuf.Buffer, t Transform) (*imagebuf.Buffer, error) {
	if src.Empty() {
		return nil, ErrEmptyBuffer
	}
	if t.InPlace() {
		out, err := t.Apply(src)
		if err != nil {
			src.Release()
			return nil, err
		}
		return out, nil
	}
	out, err := t.Apply(src)
	src.Release()
	return out, err
}

// Options parameterize Build.
type Options struct {
	KernelSize      int
	Normalization   Normalization
	BrightnessDelta int
	// Workers is the number of goroutines each transform splits rows across.
	Workers int
}

// Build resolves transform names into a set in canonical order. Duplicate
// names are collapsed.
func Build(names []string, opts Options) ([]Transform, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if !isKnown(n) {
			return nil, fmt.Errorf("%w: %s (must be one of: %s)", ErrUnknownTransform, n, strings.Join(AllNames, ", "))
		}
		wanted[n] = true
	}
	if len(wanted) == 0 {
		return nil, errors.New("no transforms requested")
	}

	var out []Transform
	for _, n := range AllNames {
		if !wanted[n] {
			continue
		}
		switch n {
		case NameNegate:
			out = append(out, Negate{Workers: opts.Workers})
		case NameGrayscale:
			out = append(out, Grayscale{Workers: opts.Workers})
		case NameBrightness:
			out = append(out, Brightness{Delta: opts.BrightnessDelta, Workers: opts.Workers})
		case NameBlur:
			k, err := NewBoxKernel(opts.KernelSize)
			if err != nil {
				return nil, err
			}
			out = append(out, BoxBlur{Kernel: k, Normalization: opts.Normalization, Workers: opts.Workers})
		}
	}
	return out, nil
}

func isKnown(name string) bool {
	for _, n := range AllNames {
		if n == name {
			return true
		}
	}
	return false
}
