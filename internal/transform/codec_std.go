package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// stdCodec is the pure-Go codec. PNG, JPEG and GIF come from the standard
// library; BMP and WEBP decoding is registered from golang.org/x/image.
type stdCodec struct{}

func (stdCodec) Decode(data []byte) (Decoded, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, err
	}
	return Decoded{Image: img, Format: format}, nil
}

func (stdCodec) DecodeConfig(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

func (stdCodec) Encode(img image.Image, format string, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case FormatPNG:
		if opts.Palette {
			img = toWebPalette(img)
		}
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if opts.Optimize {
			encoder.CompressionLevel = png.BestCompression
		}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case FormatJPEG:
		quality := opts.Quality
		if quality == 0 {
			quality = DefaultQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case FormatGIF:
		if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256}); err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	return buf.Bytes(), nil
}

// toWebPalette converts img to the web-safe color cube using Floyd-Steinberg
// error diffusion. When the source carries transparency, its alpha plane is
// extracted first and reapplied over the quantized colors; the stdlib
// paletted raster cannot carry a distinct alpha sample per pixel, so that
// path hands the encoder an NRGBA of web-safe colors plus the original
// alpha instead of an indexed raster.
func toWebPalette(img image.Image) image.Image {
	var alpha *image.Alpha
	if hasAlpha(img) {
		alpha = extractAlpha(img)
	}

	if _, ok := img.(*image.Paletted); !ok {
		b := img.Bounds()
		quantized := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette.WebSafe)
		draw.FloydSteinberg.Draw(quantized, quantized.Bounds(), img, b.Min)
		img = quantized
	}

	if alpha != nil {
		return applyAlpha(img, alpha)
	}
	return img
}
