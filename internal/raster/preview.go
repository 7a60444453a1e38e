package raster

import (
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"
)

// Normalize stretches each band of img to the full 8-bit range using the band's min and max.
// Single band images come back as grey, everything else as opaque RGBA.
func Normalize(img image.Image) image.Image {
	b := img.Bounds()
	gray := isGray(img.ColorModel())

	var lo, hi [3]uint32
	for i := range lo {
		lo[i], hi[i] = 0xffff, 0
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := bandsAt(img, x, y)
			for i, v := range c {
				if v < lo[i] {
					lo[i] = v
				}
				if v > hi[i] {
					hi[i] = v
				}
			}
		}
	}

	stretch := func(v uint32, band int) uint8 {
		if hi[band] <= lo[band] {
			return 0
		}
		return uint8((v - lo[band]) * 255 / (hi[band] - lo[band]))
	}

	if gray {
		out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := bandsAt(img, x, y)
				out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: stretch(c[0], 0)})
			}
		}
		return out
	}

	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := bandsAt(img, x, y)
			out.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{
				R: stretch(c[0], 0),
				G: stretch(c[1], 1),
				B: stretch(c[2], 2),
				A: 0xff,
			})
		}
	}

	return out
}

func isGray(m color.Model) bool {
	return m == color.GrayModel || m == color.Gray16Model
}

// bandsAt returns the 16-bit band values of a pixel, ignoring alpha.
func bandsAt(img image.Image, x, y int) [3]uint32 {
	c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
	return [3]uint32{uint32(c.R), uint32(c.G), uint32(c.B)}
}

// Preview normalises img and scales it down to fit maxSize on its longer side.
// maxSize <= 0 keeps the original size.
func Preview(img image.Image, maxSize int) image.Image {
	norm := Normalize(img)

	b := norm.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return norm
	}

	if w >= h {
		h = max(1, h*maxSize/w)
		w = maxSize
	} else {
		w = max(1, w*maxSize/h)
		h = maxSize
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), norm, b, draw.Src, nil)

	log.Debug().
		Int("src_width", b.Dx()).
		Int("src_height", b.Dy()).
		Int("width", w).
		Int("height", h).
		Msg("Preview scaled")

	return dst
}

// EncodePreview writes img as lossy WebP.
func EncodePreview(w io.Writer, img image.Image, quality float32) error {
	return webp.Encode(w, img, &webp.Options{Lossless: false, Quality: quality})
}
