package transform

import "strings"

// Named variant sizes used across record storage.
var (
	SizeBig    = Size{Width: 1024, Height: 1024}
	SizeLarge  = Size{Width: 256, Height: 256}
	SizeMedium = Size{Width: 128, Height: 128}
	SizeSmall  = Size{Width: 64, Height: 64}
)

// SizeFromFieldName guesses the variant size from a record field name by
// looking at the suffix after the last underscore. The bare name "image" is
// the big variant. Unrecognized names return the zero Size, which disables
// resizing.
func SizeFromFieldName(fieldName string) Size {
	suffix := fieldName[strings.LastIndex(fieldName, "_")+1:]
	if fieldName == "image" {
		suffix = "big"
	}
	switch suffix {
	case "big":
		return SizeBig
	case "large":
		return SizeLarge
	case "medium":
		return SizeMedium
	case "small":
		return SizeSmall
	default:
		return Size{}
	}
}

// Resize bounds the source to size, converting to format when given.
func (t *Transformer) Resize(source []byte, size Size, format string) ([]byte, error) {
	return t.Process(source, Options{Size: size, Format: format})
}

func (t *Transformer) ResizeBig(source []byte, format string) ([]byte, error) {
	return t.Resize(source, SizeBig, format)
}

func (t *Transformer) ResizeLarge(source []byte, format string) ([]byte, error) {
	return t.Resize(source, SizeLarge, format)
}

func (t *Transformer) ResizeMedium(source []byte, format string) ([]byte, error) {
	return t.Resize(source, SizeMedium, format)
}

func (t *Transformer) ResizeSmall(source []byte, format string) ([]byte, error) {
	return t.Resize(source, SizeSmall, format)
}

// OptimizeForWeb bounds the width, verifies the resolution guard and applies
// the given JPEG quality.
func (t *Transformer) OptimizeForWeb(source []byte, maxWidth, quality int) ([]byte, error) {
	return t.Process(source, Options{
		Size:             Size{Width: maxWidth},
		VerifyResolution: true,
		Quality:          quality,
	})
}

// CropToSize forces the output to the aspect ratio of size, anchored at
// anchor (center when empty).
func (t *Transformer) CropToSize(source []byte, size Size, anchor Crop, format string) ([]byte, error) {
	if anchor == CropNone {
		anchor = CropCenter
	}
	return t.Process(source, Options{Size: size, Crop: anchor, Format: format})
}

// Colorize replaces transparent background with a random solid color.
func (t *Transformer) Colorize(source []byte) ([]byte, error) {
	return t.Process(source, Options{Colorize: true})
}

// LimitedResize bounds the source to (width, height), cropping to the exact
// ratio when crop is set.
func (t *Transformer) LimitedResize(source []byte, width, height int, crop bool) ([]byte, error) {
	opts := Options{Size: Size{Width: width, Height: height}}
	if crop {
		opts.Crop = CropCenter
	}
	return t.Process(source, opts)
}

// IsSizeAbove reports whether the source exceeds size in either dimension.
// Empty and SVG sources are never above.
func (t *Transformer) IsSizeAbove(source []byte, size Size) (bool, error) {
	w, h, err := t.Dimensions(source)
	if err != nil {
		return false, err
	}
	return w > size.Width || h > size.Height, nil
}
