package transform

import (
	"github.com/MeKo-Tech/pixbatch/internal/imagebuf"
)

// BoxBlur convolves the color channels with Kernel. The result is written to
// a new buffer; the source is only read, so it may be shared with other
// concurrent readers. Output alpha is always 255.
type BoxBlur struct {
	Kernel        *Kernel
	Normalization Normalization
	Workers       int
}

func (BoxBlur) Name() string  { return NameBlur }
func (BoxBlur) Dir() string   { return "blurred" }
func (BoxBlur) InPlace() bool { return false }

// Apply returns a newly allocated blurred copy of src.
func (b BoxBlur) Apply(src *imagebuf.Buffer) (*imagebuf.Buffer, error) {
	if src.Empty() {
		return nil, ErrEmptyBuffer
	}
	if b.Kernel == nil {
		return nil, ErrInvalidKernel
	}
	dst := imagebuf.New(src.Width, src.Height)
	if b.Kernel.Uniform() {
		b.applySeparable(src, dst)
	} else {
		b.applyDirect(src, dst)
	}
	return dst, nil
}

// applyDirect is the reference O(w·h·size²) convolution.
func (b BoxBlur) applyDirect(src, dst *imagebuf.Buffer) {
	k := b.Kernel
	r := k.Radius()
	w, h := src.Width, src.Height

	forRows(h, b.Workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			out := dst.Row(y)
			for x := range w {
				var sumR, sumG, sumB, wsum int
				for ky := range k.size {
					sy := y + ky - r
					if sy < 0 || sy >= h {
						continue
					}
					row := src.Row(sy)
					for kx := range k.size {
						sx := x + kx - r
						if sx < 0 || sx >= w {
							continue
						}
						wt := k.weights[ky*k.size+kx]
						px := row[sx*imagebuf.Channels:]
						sumR += int(px[0]) * wt
						sumG += int(px[1]) * wt
						sumB += int(px[2]) * wt
						wsum += wt
					}
				}

				o := out[x*imagebuf.Channels : x*imagebuf.Channels+4 : x*imagebuf.Channels+4]
				den := wsum
				if b.Normalization == NormalizeFixed {
					den = k.total
				}
				if den == 0 {
					// Only zero-weight taps landed in bounds.
					s := src.Row(y)[x*imagebuf.Channels:]
					o[0], o[1], o[2] = s[0], s[1], s[2]
				} else {
					o[0] = byte(sumR / den)
					o[1] = byte(sumG / den)
					o[2] = byte(sumB / den)
				}
				o[3] = 255
			}
		}
	})
}

// applySeparable handles uniform kernels with running sums: a vertical
// window of column sums slides down each band and a horizontal window slides
// across it. Integer results match applyDirect exactly.
func (b BoxBlur) applySeparable(src, dst *imagebuf.Buffer) {
	r := b.Kernel.Radius()
	w, h := src.Width, src.Height
	area := b.Kernel.size * b.Kernel.size

	forRows(h, b.Workers, func(y0, y1 int) {
		cols := make([]int, w*3)

		addRow := func(sy, sign int) {
			row := src.Row(sy)
			for x := range w {
				px := row[x*imagebuf.Channels:]
				c := cols[x*3 : x*3+3 : x*3+3]
				c[0] += sign * int(px[0])
				c[1] += sign * int(px[1])
				c[2] += sign * int(px[2])
			}
		}

		for sy := max(0, y0-r); sy <= min(h-1, y0+r); sy++ {
			addRow(sy, 1)
		}

		for y := y0; y < y1; y++ {
			vcount := min(h-1, y+r) - max(0, y-r) + 1
			out := dst.Row(y)

			var sumR, sumG, sumB int
			for x := 0; x <= min(w-1, r); x++ {
				sumR += cols[x*3]
				sumG += cols[x*3+1]
				sumB += cols[x*3+2]
			}

			for x := range w {
				den := area
				if b.Normalization == NormalizeInBounds {
					hcount := min(w-1, x+r) - max(0, x-r) + 1
					den = hcount * vcount
				}
				o := out[x*imagebuf.Channels : x*imagebuf.Channels+4 : x*imagebuf.Channels+4]
				o[0] = byte(sumR / den)
				o[1] = byte(sumG / den)
				o[2] = byte(sumB / den)
				o[3] = 255

				if drop := x - r; drop >= 0 {
					sumR -= cols[drop*3]
					sumG -= cols[drop*3+1]
					sumB -= cols[drop*3+2]
				}
				if add := x + r + 1; add < w {
					sumR += cols[add*3]
					sumG += cols[add*3+1]
					sumB += cols[add*3+2]
				}
			}

			if y+1 < y1 {
				if drop := y - r; drop >= 0 {
					addRow(drop, -1)
				}
				if add := y + r + 1; add < h {
					addRow(add, 1)
				}
			}
		}
	})
}
