package transform

import "strings"

// MaxResolution is the largest pixel count accepted when resolution
// verification is requested. It fits most camera and display resolutions,
// including 8K frames with ratios up to 16:10.
const MaxResolution = 45_000_000

// DefaultQuality is applied to JPEG output when Options.Quality is unset.
const DefaultQuality = 80

type Size struct {
	Width  int
	Height int
}

// IsZero reports whether both dimensions are unconstrained.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// Crop selects the vertical anchor of the crop window. The horizontal
// anchor is always centered.
type Crop string

const (
	CropNone   Crop = ""
	CropCenter Crop = "center"
	CropTop    Crop = "top"
	CropBottom Crop = "bottom"
)

// Output formats accepted by Process. Anything else is remapped, see
// resolveFormat.
const (
	FormatPNG  = "PNG"
	FormatJPEG = "JPEG"
	FormatGIF  = "GIF"
	FormatBMP  = "BMP"
)

// Options drives a single Process call.
//
// A zero Size component means "derive from the other dimension and the
// original aspect ratio"; a fully zero Size disables resizing. Crop is only
// honored together with a Size. Quality applies to JPEG output only and is
// clamped to [1, 95].
type Options struct {
	Size             Size
	VerifyResolution bool
	Quality          int
	Crop             Crop
	Colorize         bool
	Format           string
}

func resolveFormat(requested, intrinsic string) string {
	format := requested
	if format == "" {
		format = intrinsic
	}
	format = strings.ToUpper(format)
	switch format {
	case FormatBMP:
		return FormatPNG
	case FormatPNG, FormatJPEG, FormatGIF:
		return format
	default:
		return FormatJPEG
	}
}

func clampQuality(quality int) int {
	if quality < 1 || quality > 95 {
		return DefaultQuality
	}
	return quality
}
