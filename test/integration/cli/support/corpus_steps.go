package support

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/pixbatch/internal/codec"
	"github.com/MeKo-Tech/pixbatch/internal/testutil"
	"github.com/MeKo-Tech/pixbatch/internal/transform"
	"github.com/cucumber/godog"
)

// aCorpusOfImagesIn writes count small numbered images into dir.
func (testCtx *TestContext) aCorpusOfImagesIn(count int, dir string) error {
	return testCtx.aCorpusWithout(count, dir, "")
}

// aCorpusWithout writes a corpus leaving out the comma-separated indices.
func (testCtx *TestContext) aCorpusWithout(count int, dir, missing string) error {
	gaps, err := atoiList(missing)
	if err != nil {
		return err
	}
	path := testCtx.Path(dir)
	if _, err := testutil.WriteCorpus(testutil.CorpusConfig{
		Dir:     path,
		Count:   count,
		Size:    testutil.ImageSize{Width: 24, Height: 18},
		Missing: gaps,
		Labeled: true,
	}); err != nil {
		return fmt.Errorf("failed to create corpus: %w", err)
	}
	testCtx.TrackDirectory(path)
	return nil
}

// aCorruptImage writes bytes that no decoder accepts.
func (testCtx *TestContext) aCorruptImage(filename string) error {
	path := testCtx.Path(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("not an image"), 0o600); err != nil {
		return fmt.Errorf("failed to write corrupt image: %w", err)
	}
	testCtx.TrackFile(path)
	return nil
}

// theDirectoryShouldContainImages counts the numbered images in dir.
func (testCtx *TestContext) theDirectoryShouldContainImages(dir string, expected int) error {
	entries, err := os.ReadDir(testCtx.Path(dir))
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	count := 0
	for _, e := range entries {
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if _, err := strconv.Atoi(base); err == nil && !e.IsDir() {
			count++
		}
	}
	if count != expected {
		return fmt.Errorf("directory %s contains %d images, expected %d", dir, count, expected)
	}
	return nil
}

// theImageShouldBeTheTransformOf decodes both files and compares the output
// with the named transform applied to the source under default parameters.
func (testCtx *TestContext) theImageShouldBeTheTransformOf(output, name, source string) error {
	c := codec.NewFileCodec()
	src, err := c.Decode(testCtx.Path(source))
	if err != nil {
		return fmt.Errorf("failed to decode source: %w", err)
	}
	if src.Empty() {
		return fmt.Errorf("source %s is missing", source)
	}
	got, err := c.Decode(testCtx.Path(output))
	if err != nil {
		return fmt.Errorf("failed to decode output: %w", err)
	}

	ts, err := transform.Build([]string{name}, transform.Options{
		KernelSize:      3,
		Normalization:   transform.NormalizeInBounds,
		BrightnessDelta: 20,
		Workers:         1,
	})
	if err != nil {
		return err
	}
	want, err := transform.Derive(src, ts[0])
	if err != nil {
		return err
	}
	if !want.Equal(got) {
		return fmt.Errorf("%s is not the %s of %s: got %s, want %s", output, name, source, got, want)
	}
	return nil
}

// theImageShouldMeasure checks the decoded dimensions.
func (testCtx *TestContext) theImageShouldMeasure(filename string, width, height int) error {
	buf, err := codec.NewFileCodec().Decode(testCtx.Path(filename))
	if err != nil {
		return err
	}
	if buf.Width != width || buf.Height != height {
		return fmt.Errorf("%s is %dx%d, expected %dx%d", filename, buf.Width, buf.Height, width, height)
	}
	return nil
}

// RegisterCorpusSteps registers corpus setup and image verification steps.
func (testCtx *TestContext) RegisterCorpusSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a corpus of (\d+) images in "([^"]*)"$`, testCtx.aCorpusOfImagesIn)
	sc.Step(`^a corpus of (\d+) images in "([^"]*)" without "([^"]*)"$`, testCtx.aCorpusWithout)
	sc.Step(`^a corrupt image "([^"]*)"$`, testCtx.aCorruptImage)
	sc.Step(`^the directory "([^"]*)" should contain (\d+) images?$`, testCtx.theDirectoryShouldContainImages)
	sc.Step(`^the image "([^"]*)" should be the (negate|grayscale|brightness|blur) of "([^"]*)"$`,
		testCtx.theImageShouldBeTheTransformOf)
	sc.Step(`^the image "([^"]*)" should measure (\d+)x(\d+)$`, testCtx.theImageShouldMeasure)
}
