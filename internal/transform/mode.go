package transform

import (
	"image"
	"image/color"
	"image/draw"
)

// Mode describes the channel layout of a decoded raster, mirroring the
// fixed set of layouts the pipeline distinguishes.
type Mode int

const (
	ModeOther Mode = iota
	ModeBilevel
	ModeGray
	ModeGrayAlpha
	ModePaletted
	ModeRGB
	ModeRGBA
)

func imageMode(img image.Image) Mode {
	switch img.(type) {
	case *image.Gray:
		return ModeGray
	case *image.Paletted:
		return ModePaletted
	case *image.YCbCr:
		return ModeRGB
	case *image.RGBA, *image.NRGBA:
		return ModeRGBA
	case *image.NYCbCrA:
		return ModeGrayAlpha
	default:
		return ModeOther
	}
}

// encodable reports whether the mode can be handed to the encoder as-is.
func (m Mode) encodable() bool {
	switch m {
	case ModeBilevel, ModeGray, ModePaletted, ModeRGB, ModeRGBA:
		return true
	default:
		return false
	}
}

// hasAlpha reports whether img carries actual transparency. Resampling
// always hands back an alpha-capable raster even for opaque sources, so the
// decision is made on pixel opacity, not on the channel layout.
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

// toOpaqueRGB flattens img into an NRGBA with every alpha sample forced to
// full opacity, the closest stdlib analogue of a plain RGB raster.
func toOpaqueRGB(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// extractAlpha copies the alpha plane of img.
func extractAlpha(img image.Image) *image.Alpha {
	b := img.Bounds()
	alpha := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			alpha.SetAlpha(x-b.Min.X, y-b.Min.Y, color.Alpha{A: uint8(a >> 8)})
		}
	}
	return alpha
}

// applyAlpha recombines a color raster with a previously extracted alpha
// plane, producing an NRGBA of the same dimensions.
func applyAlpha(img image.Image, alpha *image.Alpha) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			dst.SetNRGBA(x, y, color.NRGBA{
				R: uint8(r >> 8),
				G: uint8(g >> 8),
				B: uint8(bb >> 8),
				A: alpha.AlphaAt(x, y).A,
			})
		}
	}
	return dst
}
