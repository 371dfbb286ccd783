// Package imagebuf provides the owned 8-bit RGBA raster that flows through
// the batch pipeline.
package imagebuf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/pixbatch/internal/mempool"
	"github.com/disintegration/imaging"
)

// Channels is the fixed number of interleaved channels (R, G, B, A).
const Channels = 4

// Buffer is a row-major, non-premultiplied RGBA raster held in a single
// contiguous allocation. A Buffer has exactly one owner at a time.
//
// A Buffer with Width == 0 is the sentinel for an absent source image and
// carries no pixel data.
type Buffer struct {
	Width  int
	Height int
	Pix    []byte
}

// Sentinel returns the buffer that denotes a missing or unreadable source.
func Sentinel() *Buffer {
	return &Buffer{}
}

// New allocates a pooled buffer of the given size. The pixel contents are
// undefined; callers are expected to overwrite every pixel.
func New(width, height int) *Buffer {
	if width <= 0 || height <= 0 {
		return Sentinel()
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    mempool.GetBytes(width * height * Channels),
	}
}

// NewFilled allocates a buffer with every pixel set to c.
func NewFilled(width, height int, c color.NRGBA) *Buffer {
	b := New(width, height)
	b.Fill(c)
	return b
}

// FromImage canonicalizes any decoded image into an 8-bit RGBA buffer.
// Palette, grayscale, 16-bit and alpha-less sources are all expanded; sources
// without alpha come out fully opaque.
func FromImage(img image.Image) *Buffer {
	if img == nil {
		return Sentinel()
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Sentinel()
	}
	nrgba := imaging.Clone(img)
	return FromNRGBA(nrgba)
}

// FromNRGBA adopts the pixels of an NRGBA image. When the image is tightly
// packed its pixel slice is taken over without copying.
func FromNRGBA(img *image.NRGBA) *Buffer {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= 0 || h <= 0 {
		return Sentinel()
	}
	stride := w * Channels
	if img.Stride == stride && img.Rect.Min == (image.Point{}) && len(img.Pix) == stride*h {
		return &Buffer{Width: w, Height: h, Pix: img.Pix}
	}

	out := New(w, h)
	for y := range h {
		src := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):]
		copy(out.Row(y), src[:stride])
	}
	return out
}

// Empty reports whether b is the sentinel (or has been released).
func (b *Buffer) Empty() bool {
	return b == nil || b.Width == 0 || b.Pix == nil
}

// Stride returns the number of bytes per row.
func (b *Buffer) Stride() int {
	return b.Width * Channels
}

// Len returns the expected pixel byte count.
func (b *Buffer) Len() int {
	return b.Width * b.Height * Channels
}

// Offset returns the index of the first channel of pixel (x, y).
func (b *Buffer) Offset(x, y int) int {
	return y*b.Stride() + x*Channels
}

// Row returns the bytes of row y.
func (b *Buffer) Row(y int) []byte {
	start := y * b.Stride()
	return b.Pix[start : start+b.Stride()]
}

// At returns the pixel at (x, y).
func (b *Buffer) At(x, y int) color.NRGBA {
	i := b.Offset(x, y)
	p := b.Pix[i : i+Channels : i+Channels]
	return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

// Set writes the pixel at (x, y).
func (b *Buffer) Set(x, y int, c color.NRGBA) {
	i := b.Offset(x, y)
	p := b.Pix[i : i+Channels : i+Channels]
	p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
}

// Fill sets every pixel to c.
func (b *Buffer) Fill(c color.NRGBA) {
	if b.Empty() {
		return
	}
	row := b.Row(0)
	for x := 0; x < len(row); x += Channels {
		row[x], row[x+1], row[x+2], row[x+3] = c.R, c.G, c.B, c.A
	}
	for y := 1; y < b.Height; y++ {
		copy(b.Row(y), row)
	}
}

// Clone returns an independently owned copy of b. Cloning the sentinel
// yields another sentinel.
func (b *Buffer) Clone() *Buffer {
	if b.Empty() {
		return Sentinel()
	}
	out := New(b.Width, b.Height)
	copy(out.Pix, b.Pix[:b.Len()])
	return out
}

// Release hands the pixel memory back to the pool. The buffer becomes the
// sentinel; releasing twice is a no-op.
func (b *Buffer) Release() {
	if b == nil || b.Pix == nil {
		return
	}
	mempool.PutBytes(b.Pix)
	b.Pix = nil
	b.Width = 0
	b.Height = 0
}

// NRGBA returns a zero-copy image view over the buffer for encoding.
func (b *Buffer) NRGBA() *image.NRGBA {
	if b.Empty() {
		return image.NewNRGBA(image.Rectangle{})
	}
	return &image.NRGBA{
		Pix:    b.Pix[:b.Len()],
		Stride: b.Stride(),
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Equal reports whether both buffers have the same size and pixels.
func (b *Buffer) Equal(other *Buffer) bool {
	if b.Empty() || other.Empty() {
		return b.Empty() && other.Empty()
	}
	if b.Width != other.Width || b.Height != other.Height {
		return false
	}
	return bytes.Equal(b.Pix[:b.Len()], other.Pix[:other.Len()])
}

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	if b.Empty() {
		return "Buffer(empty)"
	}
	return fmt.Sprintf("Buffer(%dx%d)", b.Width, b.Height)
}
