// Package transform derives resized, cropped, recolored and re-encoded
// variants of base64-encoded raster images. Each call is stateless and owns
// its decoded image exclusively, so independent calls may run concurrently.
package transform

import (
	"github.com/disintegration/imaging"
)

// NoImage is the sentinel returned for an empty source. It is deliberately
// nil so callers can store it directly in record fields.
var NoImage []byte

// Transformer chains decode, resolution guard, resize/crop, recolor and
// re-encode over base64 image payloads.
type Transformer struct {
	codec  Codec
	colors ColorSource
}

// New returns a Transformer on the build-selected codec and an unseeded
// random color source. Pass nil for either argument to keep the default.
func New(codec Codec, colors ColorSource) *Transformer {
	if codec == nil {
		codec = newCodec()
	}
	if colors == nil {
		colors = randomColorSource{}
	}
	return &Transformer{codec: codec, colors: colors}
}

// Process applies opts to the base64-encoded source and returns the result,
// base64-encoded again.
//
// An empty source returns the NoImage sentinel without error. An SVG source
// (first base64 byte 'P') is returned unchanged; vector content is never
// rasterized. Malformed base64 or undecodable pixel data yields a
// DecodeError; an oversized image with VerifyResolution set yields a
// ResolutionError.
func (t *Transformer) Process(source []byte, opts Options) ([]byte, error) {
	if len(source) == 0 {
		return NoImage, nil
	}
	if source[0] == 'P' {
		return source, nil
	}

	raw, err := decodeBase64(source)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64 payload", Err: err}
	}

	decoded, err := t.codec.Decode(raw)
	if err != nil {
		return nil, &DecodeError{Reason: "unrecognized image data", Err: err}
	}

	img := decoded.Image
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if opts.VerifyResolution && w*h > MaxResolution {
		return nil, &ResolutionError{Width: w, Height: h}
	}

	// Resolved before any resize so the intrinsic format survives.
	format := resolveFormat(opts.Format, decoded.Format)

	if !opts.Size.IsZero() {
		askedW, askedH := deriveTarget(w, h, opts.Size)

		if opts.Crop != CropNone {
			window := cropWindow(w, h, askedW, askedH, opts.Crop)
			img = imaging.Crop(img, window)
		}

		cw, ch := img.Bounds().Dx(), img.Bounds().Dy()
		if fitW, fitH := fitWithin(cw, ch, askedW, askedH); fitW != cw || fitH != ch {
			img = imaging.Resize(img, fitW, fitH, imaging.Lanczos)
		}
	}

	if opts.Colorize {
		img = colorize(img, t.colors)
	}

	var enc EncodeOptions
	switch format {
	case FormatPNG:
		enc = EncodeOptions{Optimize: true, Palette: true}
	case FormatJPEG:
		enc = EncodeOptions{Optimize: true, Quality: clampQuality(opts.Quality)}
	case FormatGIF:
		enc = EncodeOptions{Optimize: true}
	}

	if mode := imageMode(img); !mode.encodable() || (format == FormatJPEG && hasAlpha(img)) {
		img = toOpaqueRGB(img)
	}

	data, err := t.codec.Encode(img, format, enc)
	if err != nil {
		return nil, err
	}
	return encodeBase64(data), nil
}

// Dimensions reads the source header to report its pixel size without
// decoding the raster. Empty and SVG sources report (0, 0) without error.
func (t *Transformer) Dimensions(source []byte) (int, int, error) {
	if len(source) == 0 || source[0] == 'P' {
		return 0, 0, nil
	}

	raw, err := decodeBase64(source)
	if err != nil {
		return 0, 0, &DecodeError{Reason: "invalid base64 payload", Err: err}
	}
	w, h, err := t.codec.DecodeConfig(raw)
	if err != nil {
		return 0, 0, &DecodeError{Reason: "unrecognized image data", Err: err}
	}
	return w, h, nil
}
