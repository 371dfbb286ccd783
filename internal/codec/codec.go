// Package codec adapts on-disk raster files to imagebuf.Buffer values.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/pixbatch/internal/imagebuf"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrUnsupportedFormat is returned for output formats the codec cannot write.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Codec decodes files into buffers and encodes buffers back to files.
type Codec interface {
	// Decode reads path into a new buffer owned by the caller. A missing file
	// yields the sentinel buffer and a nil error.
	Decode(path string) (*imagebuf.Buffer, error)
	// Encode writes buf to path. The parent directory must already exist.
	Encode(path string, buf *imagebuf.Buffer) error
}

// Error describes a failed decode or encode of a single file.
type Error struct {
	Op   string // "decode" or "encode"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Format is an output file format. Only lossless formats are offered.
type Format string

const (
	FormatPNG  Format = "png"
	FormatTIFF Format = "tiff"
	FormatBMP  Format = "bmp"
)

// SupportedFormats lists the output formats in preference order.
var SupportedFormats = []Format{FormatPNG, FormatTIFF, FormatBMP}

// ParseFormat resolves a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "png":
		return FormatPNG, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "bmp":
		return FormatBMP, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
	}
}

// Extension returns the file extension (without dot) for the format.
func (f Format) Extension() string {
	return string(f)
}

func (f Format) imagingFormat() (imaging.Format, error) {
	switch f {
	case FormatPNG, "":
		return imaging.PNG, nil
	case FormatTIFF:
		return imaging.TIFF, nil
	case FormatBMP:
		return imaging.BMP, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// FileCodec is the filesystem Codec backed by the imaging package.
type FileCodec struct {
	// Format selects the output encoding.
	Format Format
	// IgnoreDiagnostics drops non-fatal decode observations instead of
	// logging them. Diagnostics never abort a decode either way.
	IgnoreDiagnostics bool
	// Logger receives diagnostics; slog.Default() when nil.
	Logger *slog.Logger
}

// NewFileCodec returns a PNG codec that ignores decode diagnostics.
func NewFileCodec() *FileCodec {
	return &FileCodec{Format: FormatPNG, IgnoreDiagnostics: true}
}

// Decode implements Codec.
func (c *FileCodec) Decode(path string) (*imagebuf.Buffer, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: corpus paths are user-provided by design
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return imagebuf.Sentinel(), nil
		}
		return nil, &Error{Op: "decode", Path: path, Err: err}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Op: "decode", Path: path, Err: err}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &Error{Op: "decode", Path: path, Err: err}
	}

	c.report(path, diagnose(path, format, cfg.ColorModel))

	buf := imagebuf.FromImage(img)
	if buf.Empty() {
		return nil, &Error{Op: "decode", Path: path, Err: errors.New("image has no pixels")}
	}
	return buf, nil
}

// OutputFileMode is the permission set on encoded outputs.
const OutputFileMode os.FileMode = 0o644

// Encode implements Codec. The file is written under a temporary name and
// renamed into place, so a failed encode never leaves a truncated output.
func (c *FileCodec) Encode(path string, buf *imagebuf.Buffer) error {
	if buf.Empty() {
		return &Error{Op: "encode", Path: path, Err: errors.New("empty buffer")}
	}
	f, err := c.Format.imagingFormat()
	if err != nil {
		return &Error{Op: "encode", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &Error{Op: "encode", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if err := imaging.Encode(tmp, buf.NRGBA(), f); err != nil {
		cleanup()
		return &Error{Op: "encode", Path: path, Err: err}
	}
	// CreateTemp opens with 0600; outputs get the usual file mode.
	if err := tmp.Chmod(OutputFileMode); err != nil {
		cleanup()
		return &Error{Op: "encode", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &Error{Op: "encode", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &Error{Op: "encode", Path: path, Err: err}
	}
	return nil
}

func (c *FileCodec) report(path string, diags []string) {
	if c.IgnoreDiagnostics || len(diags) == 0 {
		return
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, d := range diags {
		logger.Warn("decode diagnostic", "path", path, "detail", d)
	}
}

// diagnose lists the non-fatal conversions a decode performed.
func diagnose(path, format string, model color.Model) []string {
	var out []string

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "jpg" {
		ext = "jpeg"
	}
	if ext == "tif" {
		ext = "tiff"
	}
	if ext != "" && ext != format {
		out = append(out, fmt.Sprintf("extension %q holds %s data", ext, format))
	}

	switch model {
	case color.RGBA64Model, color.NRGBA64Model:
		out = append(out, "16-bit channels reduced to 8 bits")
	case color.Gray16Model:
		out = append(out, "16-bit channels reduced to 8 bits", "gray expanded to RGB", "opaque alpha synthesized")
	case color.GrayModel:
		out = append(out, "gray expanded to RGB", "opaque alpha synthesized")
	case color.YCbCrModel, color.CMYKModel:
		out = append(out, "opaque alpha synthesized")
	default:
		if _, ok := model.(color.Palette); ok {
			out = append(out, "palette expanded to RGBA")
		}
	}
	return out
}
