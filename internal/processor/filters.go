package processor

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/aliskhannn/thumbnail-proxy/internal/model"
)

type filterFunc func(img image.Image) image.Image

// tintStrength is the blend factor towards the tint color in Lab space.
const tintStrength = 0.3

var filters = map[model.ColorFilterName]filterFunc{
	model.Grayscale: func(img image.Image) image.Image { return effect.Grayscale(img) },
	model.Sepia:     func(img image.Image) image.Image { return effect.Sepia(img) },
	model.Invert:    func(img image.Image) image.Image { return effect.Invert(img) },
	model.Oceanic:   tint(colorful.Color{R: 0, G: 89.0 / 255, B: 173.0 / 255}),
	model.Islands:   tint(colorful.Color{R: 0, G: 177.0 / 255, B: 156.0 / 255}),
	model.Marine:    tint(colorful.Color{R: 0, G: 105.0 / 255, B: 148.0 / 255}),
}

// applyFilter runs the named filter. Names are validated when the spec token
// is decoded, so an unknown name here is a programming error.
func applyFilter(img *image.NRGBA, name model.ColorFilterName) (*image.NRGBA, error) {
	f, ok := filters[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown color filter %q", ErrInvalidOperation, name)
	}
	return imaging.Clone(f(img)), nil
}

// tint blends every pixel towards c in Lab space, preserving alpha.
func tint(c colorful.Color) filterFunc {
	return func(img image.Image) image.Image {
		return adjust.Apply(img, func(px color.RGBA) color.RGBA {
			if px.A == 0 {
				return px
			}
			src := colorful.Color{
				R: float64(px.R) / float64(px.A),
				G: float64(px.G) / float64(px.A),
				B: float64(px.B) / float64(px.A),
			}
			r, g, b := src.BlendLab(c, tintStrength).Clamped().RGB255()
			a := uint32(px.A)
			return color.RGBA{
				R: uint8(uint32(r) * a / 255),
				G: uint8(uint32(g) * a / 255),
				B: uint8(uint32(b) * a / 255),
				A: px.A,
			}
		})
	}
}
