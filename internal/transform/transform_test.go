package transform

import (
	"image/color"
	"testing"

	"github.com/MeKo-Tech/pixbatch/internal/imagebuf"
	"github.com/MeKo-Tech/pixbatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testColor = color.NRGBA{R: 100, G: 150, B: 200, A: 255}

// noiseBuffer returns a w×h opaque buffer of seeded noise.
func noiseBuffer(w, h int, seed int64) *imagebuf.Buffer {
	return imagebuf.FromNRGBA(testutil.NoiseImage(w, h, seed))
}

func assertUniform(t *testing.T, b *imagebuf.Buffer, want color.NRGBA) {
	t.Helper()
	for y := range b.Height {
		for x := range b.Width {
			if got := b.At(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestNegate_Uniform(t *testing.T) {
	b := imagebuf.NewFilled(4, 4, testColor)
	out, err := Negate{}.Apply(b)
	require.NoError(t, err)
	assert.Same(t, b, out)
	assertUniform(t, out, color.NRGBA{R: 155, G: 105, B: 55, A: 255})
}

func TestNegate_AlphaUntouched(t *testing.T) {
	b := imagebuf.NewFilled(2, 2, color.NRGBA{R: 0, G: 10, B: 255, A: 42})
	_, err := Negate{}.Apply(b)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, G: 245, B: 0, A: 42}, b.At(1, 1))
}

func TestGrayscale_Uniform(t *testing.T) {
	b := imagebuf.NewFilled(4, 4, testColor)
	_, err := Grayscale{}.Apply(b)
	require.NoError(t, err)
	assertUniform(t, b, color.NRGBA{R: 150, G: 150, B: 150, A: 255})
}

func TestGrayscale_Truncates(t *testing.T) {
	b := imagebuf.NewFilled(1, 1, color.NRGBA{R: 1, G: 1, B: 2, A: 9})
	_, err := Grayscale{}.Apply(b)
	require.NoError(t, err)
	// (1+1+2)/3 = 1.33 -> 1
	assert.Equal(t, color.NRGBA{R: 1, G: 1, B: 1, A: 9}, b.At(0, 0))
}

func TestBrightness_Uniform(t *testing.T) {
	b := imagebuf.NewFilled(4, 4, testColor)
	_, err := Brightness{Delta: 60}.Apply(b)
	require.NoError(t, err)
	assertUniform(t, b, color.NRGBA{R: 160, G: 210, B: 255, A: 255})
}

func TestBrightness_NegativeDeltaClampsAtZero(t *testing.T) {
	b := imagebuf.NewFilled(2, 2, color.NRGBA{R: 10, G: 100, B: 255, A: 7})
	_, err := Brightness{Delta: -50}.Apply(b)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0, G: 50, B: 205, A: 7}, b.At(0, 1))
}

func TestPointwise_EmptyBuffer(t *testing.T) {
	for _, tr := range []Transform{Negate{}, Grayscale{}, Brightness{Delta: 3}, BoxBlur{}} {
		_, err := tr.Apply(imagebuf.Sentinel())
		assert.ErrorIs(t, err, ErrEmptyBuffer, tr.Name())
	}
}

func TestDerive_LeavesSourceIntact(t *testing.T) {
	k, err := NewBoxKernel(3)
	require.NoError(t, err)
	src := noiseBuffer(9, 7, 4)
	orig := src.Clone()

	for _, tr := range []Transform{Negate{}, Grayscale{}, Brightness{Delta: 9}, BoxBlur{Kernel: k}} {
		out, err := Derive(src, tr)
		require.NoError(t, err)
		assert.NotSame(t, src, out)
		assert.True(t, orig.Equal(src), "%s modified its source", tr.Name())
		out.Release()
	}
}

func TestConsume(t *testing.T) {
	src := imagebuf.NewFilled(3, 3, testColor)
	out, err := Consume(src, Negate{})
	require.NoError(t, err)
	assert.Same(t, src, out)
	assertUniform(t, out, color.NRGBA{R: 155, G: 105, B: 55, A: 255})

	k, err := NewBoxKernel(3)
	require.NoError(t, err)
	src = imagebuf.NewFilled(3, 3, testColor)
	out, err = Consume(src, BoxBlur{Kernel: k})
	require.NoError(t, err)
	assert.True(t, src.Empty(), "blur source should be released")
	assertUniform(t, out, testColor)
}

func TestBuild(t *testing.T) {
	set, err := Build([]string{"brightness", "negate", " BLUR ", "negate"}, Options{
		KernelSize:      5,
		BrightnessDelta: 20,
		Workers:         2,
	})
	require.NoError(t, err)
	require.Len(t, set, 3)
	assert.Equal(t, NameNegate, set[0].Name())
	assert.Equal(t, NameBlur, set[1].Name())
	assert.Equal(t, NameBrightness, set[2].Name())

	blur, ok := set[1].(BoxBlur)
	require.True(t, ok)
	assert.Equal(t, 5, blur.Kernel.Size())
	assert.Equal(t, 20, set[2].(Brightness).Delta)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build([]string{"sharpen"}, Options{KernelSize: 3})
	require.ErrorIs(t, err, ErrUnknownTransform)

	_, err = Build(nil, Options{KernelSize: 3})
	require.Error(t, err)

	_, err = Build([]string{"blur"}, Options{KernelSize: 4})
	require.ErrorIs(t, err, ErrInvalidKernel)
}

func TestDirs(t *testing.T) {
	dirs := map[string]string{}
	for _, tr := range []Transform{Negate{}, BoxBlur{}, Grayscale{}, Brightness{}} {
		dirs[tr.Name()] = tr.Dir()
	}
	assert.Equal(t, map[string]string{
		NameNegate:     "negated",
		NameBlur:       "blurred",
		NameGrayscale:  "grayscale",
		NameBrightness: "brightened",
	}, dirs)
}
