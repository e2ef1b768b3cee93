package transform

import "image"

// Decoded is a raster image together with the format it was detected as at
// decode time ("png", "jpeg", "gif", "bmp", "webp", ...).
type Decoded struct {
	Image  image.Image
	Format string
}

// EncodeOptions carries the format-specific knobs Process resolves for the
// output format. Palette requests a web-safe 256-color palette conversion
// with error-diffusion dithering (PNG only); alpha present on the input must
// survive the conversion.
type EncodeOptions struct {
	Optimize bool
	Quality  int
	Palette  bool
}

// Codec decodes and encodes raster images. Implementations must be safe for
// concurrent independent use; Process never shares a Decoded between calls.
// DecodeConfig reports the pixel dimensions from the image header without
// decoding the raster.
//
// The active codec is selected at build time: the stdlib codec by default,
// libvips when built with the govips tag (see runtime_govips.go).
type Codec interface {
	Decode(data []byte) (Decoded, error)
	DecodeConfig(data []byte) (width, height int, err error)
	Encode(img image.Image, format string, opts EncodeOptions) ([]byte, error)
}
