package render

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/filter"
)

// maxBlurSigma is the gaussian sigma of a blur entry at value 1.
const maxBlurSigma = 10.0

// ApplyFilters runs the whole stack, in order, over a copy of src. The
// source is never modified, so applying the same stack to the same source
// always yields the same pixels.
func ApplyFilters(src image.Image, stack filter.Stack) *image.NRGBA {
	img := imaging.Clone(src)
	for _, e := range stack {
		img = applyEntry(img, e)
	}
	return img
}

func applyEntry(img *image.NRGBA, e filter.Entry) *image.NRGBA {
	switch e.Kind {
	case filter.Brightness:
		return imaging.AdjustBrightness(img, e.Value*100)
	case filter.Contrast:
		return imaging.AdjustContrast(img, e.Value*100)
	case filter.Saturation:
		return imaging.AdjustSaturation(img, e.Value*100)
	case filter.HueRotation:
		if e.Value == 0 {
			return img
		}
		return imaging.AdjustFunc(img, hueRotate(e.Value))
	case filter.Blur:
		if e.Value <= 0 {
			return img
		}
		return imaging.Blur(img, e.Value*maxBlurSigma)
	case filter.Grayscale:
		return imaging.Grayscale(img)
	case filter.Sepia:
		return imaging.AdjustFunc(img, sepia)
	case filter.Invert:
		return imaging.Invert(img)
	}
	return img
}

func sepia(c color.NRGBA) color.NRGBA {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	return color.NRGBA{
		R: clampByte(0.393*r + 0.769*g + 0.189*b),
		G: clampByte(0.349*r + 0.686*g + 0.168*b),
		B: clampByte(0.272*r + 0.534*g + 0.131*b),
		A: c.A,
	}
}

// hueRotate shifts every pixel's hue by rad radians, keeping its saturation
// and lightness.
func hueRotate(rad float64) func(color.NRGBA) color.NRGBA {
	shift := rad * 180 / math.Pi
	return func(c color.NRGBA) color.NRGBA {
		h, s, l := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Hsl()
		r, g, b := colorful.Hsl(math.Mod(math.Mod(h+shift, 360)+360, 360), s, l).Clamped().RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: c.A}
	}
}

func clampByte(v float64) uint8 {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v + 0.5)
}
