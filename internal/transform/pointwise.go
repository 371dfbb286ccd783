package transform

import (
	"github.com/MeKo-Tech/pixbatch/internal/imagebuf"
)

// Negate maps every color channel v to 255-v. Alpha is untouched.
type Negate struct {
	Workers int
}

func (Negate) Name() string  { return NameNegate }
func (Negate) Dir() string   { return "negated" }
func (Negate) InPlace() bool { return true }

// Apply mutates buf and returns it.
func (n Negate) Apply(buf *imagebuf.Buffer) (*imagebuf.Buffer, error) {
	if buf.Empty() {
		return nil, ErrEmptyBuffer
	}
	forRows(buf.Height, n.Workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := buf.Row(y)
			for i := 0; i < len(row); i += imagebuf.Channels {
				px := row[i : i+3 : i+3]
				px[0] = 255 - px[0]
				px[1] = 255 - px[1]
				px[2] = 255 - px[2]
			}
		}
	})
	return buf, nil
}

// Grayscale sets R, G and B to the truncated mean of the three.
type Grayscale struct {
	Workers int
}

func (Grayscale) Name() string  { return NameGrayscale }
func (Grayscale) Dir() string   { return "grayscale" }
func (Grayscale) InPlace() bool { return true }

// Apply mutates buf and returns it.
func (g Grayscale) Apply(buf *imagebuf.Buffer) (*imagebuf.Buffer, error) {
	if buf.Empty() {
		return nil, ErrEmptyBuffer
	}
	forRows(buf.Height, g.Workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := buf.Row(y)
			for i := 0; i < len(row); i += imagebuf.Channels {
				px := row[i : i+3 : i+3]
				v := byte((int(px[0]) + int(px[1]) + int(px[2])) / 3)
				px[0], px[1], px[2] = v, v, v
			}
		}
	})
	return buf, nil
}

// Brightness adds Delta to every color channel, clamped to [0, 255].
type Brightness struct {
	Delta   int
	Workers int
}

func (Brightness) Name() string  { return NameBrightness }
func (Brightness) Dir() string   { return "brightened" }
func (Brightness) InPlace() bool { return true }

// Apply mutates buf and returns it.
func (b Brightness) Apply(buf *imagebuf.Buffer) (*imagebuf.Buffer, error) {
	if buf.Empty() {
		return nil, ErrEmptyBuffer
	}

	var lut [256]byte
	for v := range lut {
		lut[v] = clampByte(v + b.Delta)
	}

	forRows(buf.Height, b.Workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := buf.Row(y)
			for i := 0; i < len(row); i += imagebuf.Channels {
				px := row[i : i+3 : i+3]
				px[0] = lut[px[0]]
				px[1] = lut[px[1]]
				px[2] = lut[px[2]]
			}
		}
	})
	return buf, nil
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
