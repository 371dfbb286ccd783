package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"path/filepath"
	"slices"
	"strconv"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	TinySize   = ImageSize{16, 16}
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
)

// Pattern selects the background of a synthetic image.
type Pattern int

const (
	PatternUniform Pattern = iota
	PatternGradient
	PatternNoise
)

// ImageConfig holds configuration for generating synthetic images.
type ImageConfig struct {
	Size       ImageSize
	Pattern    Pattern
	Background color.NRGBA
	Foreground color.NRGBA
	// Label is drawn centered in Foreground when non-empty.
	Label string
	// Seed drives PatternNoise.
	Seed int64
}

// DefaultImageConfig returns a default configuration for corpus images.
func DefaultImageConfig() ImageConfig {
	return ImageConfig{
		Size:       SmallSize,
		Pattern:    PatternGradient,
		Background: color.NRGBA{R: 100, G: 150, B: 200, A: 255},
		Foreground: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
	}
}

// GenerateImage renders a synthetic image from config.
func GenerateImage(config ImageConfig) *image.NRGBA {
	w, h := config.Size.Width, config.Size.Height
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	switch config.Pattern {
	case PatternGradient:
		bg := config.Background
		for y := range h {
			for x := range w {
				img.SetNRGBA(x, y, color.NRGBA{
					R: byte((int(bg.R) + x*255/max(1, w)) % 256),
					G: byte((int(bg.G) + y*255/max(1, h)) % 256),
					B: bg.B,
					A: bg.A,
				})
			}
		}
	case PatternNoise:
		rng := rand.New(rand.NewSource(config.Seed))
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i] = byte(rng.Intn(256))
			img.Pix[i+1] = byte(rng.Intn(256))
			img.Pix[i+2] = byte(rng.Intn(256))
			img.Pix[i+3] = 255
		}
	default:
		draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)
	}

	if config.Label != "" {
		face := basicfont.Face7x13
		drawer := &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{config.Foreground},
			Face: face,
		}
		textWidth := font.MeasureString(face, config.Label).Ceil()
		textHeight := face.Metrics().Height.Ceil()
		drawer.Dot = fixed.P((w-textWidth)/2, (h+textHeight)/2)
		drawer.DrawString(config.Label)
	}
	return img
}

// UniformImage returns a w×h image filled with c.
func UniformImage(w, h int, c color.NRGBA) *image.NRGBA {
	return GenerateImage(ImageConfig{Size: ImageSize{w, h}, Pattern: PatternUniform, Background: c})
}

// NoiseImage returns a w×h opaque image of deterministic random pixels.
func NoiseImage(w, h int, seed int64) *image.NRGBA {
	return GenerateImage(ImageConfig{Size: ImageSize{w, h}, Pattern: PatternNoise, Seed: seed})
}

// SaveImage writes img to path, creating parent directories. The format is
// taken from the file extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)), "Failed to create directory for %s", path)
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// LoadImage decodes the image at path into NRGBA.
func LoadImage(t *testing.T, path string) *image.NRGBA {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image %s", path)
	return imaging.Clone(img)
}

// CorpusConfig describes a numbered corpus on disk.
type CorpusConfig struct {
	Dir       string
	Count     int
	Size      ImageSize
	Extension string
	// Missing lists indices that are left out of the corpus.
	Missing []int
	// Labeled draws each image's index onto it.
	Labeled bool
}

// WriteCorpus writes images named 1.<ext> … Count.<ext> into Dir, skipping
// the Missing indices, and returns the paths written.
func WriteCorpus(config CorpusConfig) ([]string, error) {
	ext := config.Extension
	if ext == "" {
		ext = "png"
	}
	if err := EnsureDir(config.Dir); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory: %w", err)
	}

	var paths []string
	for i := 1; i <= config.Count; i++ {
		if slices.Contains(config.Missing, i) {
			continue
		}
		cfg := DefaultImageConfig()
		cfg.Size = config.Size
		cfg.Background = color.NRGBA{R: byte(i * 37), G: byte(i * 91), B: byte(i * 13), A: 255}
		if config.Labeled {
			cfg.Label = strconv.Itoa(i)
		}

		path := filepath.Join(config.Dir, fmt.Sprintf("%d.%s", i, ext))
		if err := imaging.Save(GenerateImage(cfg), path); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// CreateCorpus is WriteCorpus for tests.
func CreateCorpus(t *testing.T, config CorpusConfig) []string {
	t.Helper()

	paths, err := WriteCorpus(config)
	require.NoError(t, err)
	return paths
}
