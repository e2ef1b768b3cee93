package transform

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand"
)

// ColorSource yields one background channel value per call, uniformly
// distributed over {32, 56, 80, ..., 224}. Injected so tests can pin the
// draw.
type ColorSource interface {
	ChannelValue() uint8
}

type randomColorSource struct{}

func (randomColorSource) ChannelValue() uint8 {
	return uint8(32 + 24*rand.Intn(9))
}

// colorize composites img over a full-canvas fill of a random solid color,
// using the image's own transparency as the mask. The result is opaque.
func colorize(img image.Image, colors ColorSource) *image.NRGBA {
	background := color.NRGBA{
		R: colors.ChannelValue(),
		G: colors.ChannelValue(),
		B: colors.ChannelValue(),
		A: 0xff,
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
