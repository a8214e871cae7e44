// Package watermark provides the fixed overlay image used by Watermark operations.
package watermark

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

const (
	defaultText   = "thumbnail-proxy"
	badgePadding  = 6.0
	badgeRadius   = 4.0
	badgeMinWidth = 32
)

// Load reads the watermark from an image file. An empty path yields the default badge.
func Load(path string) (image.Image, error) {
	if path == "" {
		return Default(), nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open watermark %s: %w", path, err)
	}

	return img, nil
}

// Default renders a small semi-transparent badge with the service name.
func Default() image.Image {
	return Badge(defaultText)
}

// Badge renders text in white on a rounded, semi-transparent dark background.
func Badge(text string) image.Image {
	// Measure with a scratch context; gg falls back to a built-in bitmap font.
	measure := gg.NewContext(1, 1)
	tw, th := measure.MeasureString(text)

	w := int(tw + 2*badgePadding)
	if w < badgeMinWidth {
		w = badgeMinWidth
	}
	h := int(th + 2*badgePadding)

	dc := gg.NewContext(w, h)
	dc.SetRGBA(0, 0, 0, 0.5)
	dc.DrawRoundedRectangle(0, 0, float64(w), float64(h), badgeRadius)
	dc.Fill()

	dc.SetColor(color.White)
	dc.DrawStringAnchored(text, float64(w)/2, float64(h)/2, 0.5, 0.5)

	return dc.Image()
}
