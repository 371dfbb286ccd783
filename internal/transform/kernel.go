package transform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKernel is returned when kernel dimensions or weights are unusable.
var ErrInvalidKernel = errors.New("invalid kernel")

// Kernel is an immutable square weight matrix. It is safe to share between
// any number of concurrent blurs.
type Kernel struct {
	size    int
	weights []int
	total   int
	uniform bool
}

// NewBoxKernel returns the size×size all-ones kernel.
func NewBoxKernel(size int) (*Kernel, error) {
	if err := validateSize(size); err != nil {
		return nil, err
	}
	weights := make([]int, size*size)
	for i := range weights {
		weights[i] = 1
	}
	return NewKernel(size, weights)
}

// NewKernel builds a kernel from row-major weights. Weights must be
// non-negative with a positive sum. The slice is copied.
func NewKernel(size int, weights []int) (*Kernel, error) {
	if err := validateSize(size); err != nil {
		return nil, err
	}
	if len(weights) != size*size {
		return nil, fmt.Errorf("%w: expected %d weights, got %d", ErrInvalidKernel, size*size, len(weights))
	}

	k := &Kernel{size: size, weights: make([]int, len(weights)), uniform: true}
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("%w: negative weight %d at %d", ErrInvalidKernel, w, i)
		}
		k.weights[i] = w
		k.total += w
		if w != weights[0] {
			k.uniform = false
		}
	}
	if k.total == 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", ErrInvalidKernel)
	}
	return k, nil
}

func validateSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size %d must be positive", ErrInvalidKernel, size)
	}
	if size%2 == 0 {
		return fmt.Errorf("%w: size %d must be odd", ErrInvalidKernel, size)
	}
	return nil
}

// Size returns the side length.
func (k *Kernel) Size() int { return k.size }

// Radius returns size/2, the offset of the center cell.
func (k *Kernel) Radius() int { return k.size / 2 }

// Weight returns the weight at row ky, column kx (both 0-based).
func (k *Kernel) Weight(ky, kx int) int { return k.weights[ky*k.size+kx] }

// Total returns the sum of all weights.
func (k *Kernel) Total() int { return k.total }

// Uniform reports whether every weight is equal.
func (k *Kernel) Uniform() bool { return k.uniform }

// Normalization selects the divisor used by the blur at image borders.
type Normalization int

const (
	// NormalizeInBounds divides by the sum of weights whose taps fell inside
	// the image. Borders keep their brightness.
	NormalizeInBounds Normalization = iota
	// NormalizeFixed always divides by the full kernel weight, so taps that
	// fall outside the image count as black and borders darken.
	NormalizeFixed
)

// ParseNormalization resolves "inbounds" or "fixed".
func ParseNormalization(s string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inbounds", "in-bounds", "unbiased":
		return NormalizeInBounds, nil
	case "fixed", "area":
		return NormalizeFixed, nil
	default:
		return 0, fmt.Errorf("unknown normalization %q (must be inbounds or fixed)", s)
	}
}

func (n Normalization) String() string {
	if n == NormalizeFixed {
		return "fixed"
	}
	return "inbounds"
}
