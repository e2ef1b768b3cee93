//go:build govips && cgo

package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

// govipsCodec delegates decoding and encoding to libvips. Pixel data is
// bridged through stdlib rasters so the pipeline stays backend-agnostic.
type govipsCodec struct{}

func (govipsCodec) Decode(data []byte) (Decoded, error) {
	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return Decoded{}, err
	}
	defer ref.Close()

	format := vipsFormatName(vips.DetermineImageType(data))

	// Lossless bridge into a stdlib raster.
	raw, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return Decoded{}, fmt.Errorf("bridge vips image: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return Decoded{}, fmt.Errorf("bridge vips image: %w", err)
	}

	return Decoded{Image: img, Format: format}, nil
}

func (govipsCodec) DecodeConfig(data []byte) (int, int, error) {
	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return 0, 0, err
	}
	defer ref.Close()
	return ref.Width(), ref.Height(), nil
}

func (govipsCodec) Encode(img image.Image, format string, opts EncodeOptions) ([]byte, error) {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	ref, err := vips.NewImageFromMemory(nrgba.Pix, b.Dx(), b.Dy(), 4)
	if err != nil {
		return nil, fmt.Errorf("load vips image: %w", err)
	}
	defer ref.Close()

	switch format {
	case FormatPNG:
		params := vips.NewPngExportParams()
		if opts.Optimize {
			params.Compression = 9
		}
		if opts.Palette {
			params.Palette = true
			params.Dither = 1.0
		}
		data, _, err := ref.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case FormatJPEG:
		params := vips.NewJpegExportParams()
		params.OptimizeCoding = opts.Optimize
		if opts.Quality > 0 {
			params.Quality = opts.Quality
		}
		data, _, err := ref.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case FormatGIF:
		data, _, err := ref.ExportGIF(vips.NewGifExportParams())
		if err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func vipsFormatName(t vips.ImageType) string {
	switch t {
	case vips.ImageTypeJPEG:
		return "jpeg"
	case vips.ImageTypeGIF:
		return "gif"
	case vips.ImageTypeBMP:
		return "bmp"
	case vips.ImageTypeWEBP:
		return "webp"
	default:
		return "png"
	}
}
