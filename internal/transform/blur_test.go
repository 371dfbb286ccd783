package transform

import (
	"image/color"
	"testing"

	"github.com/MeKo-Tech/pixbatch/internal/imagebuf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKernel_Validation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		weights []int
	}{
		{"zero size", 0, nil},
		{"negative size", -3, nil},
		{"even size", 4, make([]int, 16)},
		{"wrong count", 3, []int{1, 1, 1}},
		{"negative weight", 1, []int{-1}},
		{"zero sum", 3, make([]int, 9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKernel(tt.size, tt.weights)
			assert.ErrorIs(t, err, ErrInvalidKernel)
		})
	}
}

func TestNewBoxKernel(t *testing.T) {
	k, err := NewBoxKernel(5)
	require.NoError(t, err)
	assert.Equal(t, 5, k.Size())
	assert.Equal(t, 2, k.Radius())
	assert.Equal(t, 25, k.Total())
	assert.True(t, k.Uniform())
	assert.Equal(t, 1, k.Weight(4, 0))
}

func TestNewKernel_CopiesWeights(t *testing.T) {
	w := []int{0, 1, 0, 1, 4, 1, 0, 1, 0}
	k, err := NewKernel(3, w)
	require.NoError(t, err)
	w[4] = 100
	assert.Equal(t, 4, k.Weight(1, 1))
	assert.False(t, k.Uniform())
	assert.Equal(t, 8, k.Total())
}

func TestParseNormalization(t *testing.T) {
	n, err := ParseNormalization("")
	require.NoError(t, err)
	assert.Equal(t, NormalizeInBounds, n)

	n, err = ParseNormalization("FIXED")
	require.NoError(t, err)
	assert.Equal(t, NormalizeFixed, n)
	assert.Equal(t, "fixed", n.String())

	_, err = ParseNormalization("gaussian")
	assert.Error(t, err)
}

func TestBoxBlur_UniformImageIsUnchanged(t *testing.T) {
	// 4x4 of (100,150,200,255) with a 3x3 kernel stays uniform.
	k, err := NewBoxKernel(3)
	require.NoError(t, err)
	src := imagebuf.NewFilled(4, 4, testColor)

	out, err := BoxBlur{Kernel: k}.Apply(src)
	require.NoError(t, err)
	assertUniform(t, out, testColor)
	assertUniform(t, src, testColor)
}

func TestBoxBlur_AlphaForcedOpaque(t *testing.T) {
	k, err := NewBoxKernel(3)
	require.NoError(t, err)
	src := imagebuf.NewFilled(3, 3, color.NRGBA{R: 50, G: 60, B: 70, A: 0})

	out, err := BoxBlur{Kernel: k}.Apply(src)
	require.NoError(t, err)
	assertUniform(t, out, color.NRGBA{R: 50, G: 60, B: 70, A: 255})
}

func TestBoxBlur_FixedNormalizationDarkensBorders(t *testing.T) {
	k, err := NewBoxKernel(3)
	require.NoError(t, err)
	src := imagebuf.NewFilled(3, 3, color.NRGBA{R: 90, G: 90, B: 90, A: 255})

	out, err := BoxBlur{Kernel: k, Normalization: NormalizeFixed}.Apply(src)
	require.NoError(t, err)

	assert.Equal(t, uint8(40), out.At(0, 0).R, "corner: 4 taps * 90 / 9")
	assert.Equal(t, uint8(60), out.At(1, 0).R, "edge: 6 taps * 90 / 9")
	assert.Equal(t, uint8(90), out.At(1, 1).R, "center: all taps in bounds")
}

func TestBoxBlur_KnownValues(t *testing.T) {
	// 3x1 row: 0, 90, 255 with a 3x3 box, in-bounds normalization.
	k, err := NewBoxKernel(3)
	require.NoError(t, err)
	src := imagebuf.New(3, 1)
	src.Set(0, 0, color.NRGBA{R: 0, A: 255})
	src.Set(1, 0, color.NRGBA{R: 90, A: 255})
	src.Set(2, 0, color.NRGBA{R: 255, A: 255})

	out, err := BoxBlur{Kernel: k}.Apply(src)
	require.NoError(t, err)
	assert.Equal(t, uint8(45), out.At(0, 0).R)  // (0+90)/2
	assert.Equal(t, uint8(115), out.At(1, 0).R) // 345/3
	assert.Equal(t, uint8(172), out.At(2, 0).R) // 345/2 truncated
}

func TestBoxBlur_NonUniformKernel(t *testing.T) {
	k, err := NewKernel(3, []int{0, 0, 0, 0, 1, 0, 0, 0, 0})
	require.NoError(t, err)
	src := noiseBuffer(6, 6, 7)

	// A center-only kernel is an identity regardless of normalization.
	for _, norm := range []Normalization{NormalizeInBounds, NormalizeFixed} {
		out, err := BoxBlur{Kernel: k, Normalization: norm, Workers: 2}.Apply(src)
		require.NoError(t, err)
		assert.True(t, src.Equal(out))
	}
}

func TestBoxBlur_NilKernel(t *testing.T) {
	_, err := BoxBlur{}.Apply(imagebuf.NewFilled(1, 1, testColor))
	assert.ErrorIs(t, err, ErrInvalidKernel)
}

func TestForRows_CoversEveryRowOnce(t *testing.T) {
	for _, workers := range []int{0, 1, 2, 3, 7, 50} {
		seen := make([]int, 23)
		forRows(len(seen), workers, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				seen[y]++
			}
		})
		for y, n := range seen {
			assert.Equal(t, 1, n, "row %d visited %d times with %d workers", y, n, workers)
		}
	}
}

func BenchmarkBoxBlur(b *testing.B) {
	k, _ := NewBoxKernel(9)
	src := noiseBuffer(512, 512, 8)
	blur := BoxBlur{Kernel: k, Workers: 4}

	b.Run("separable", func(b *testing.B) {
		for range b.N {
			dst := imagebuf.New(src.Width, src.Height)
			blur.applySeparable(src, dst)
			dst.Release()
		}
	})
	b.Run("direct", func(b *testing.B) {
		for range b.N {
			dst := imagebuf.New(src.Width, src.Height)
			blur.applyDirect(src, dst)
			dst.Release()
		}
	})
}
