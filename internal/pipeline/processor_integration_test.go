package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rastermill/rastermill/internal/domain"
)

func TestLocalProcessor_FileInVariantsOut(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "input.png")
	outputDir := filepath.Join(tmp, "out")

	srcBytes := buildTestPNG(t, 240, 120)
	if err := os.WriteFile(inputPath, srcBytes, 0o644); err != nil {
		t.Fatalf("write input image: %v", err)
	}

	processor, err := NewLocalProcessor(outputDir)
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	req := Request{
		JobID:      "job-local-1",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  inputPath,
		Variants: []domain.VariantSpec{
			{
				Field:   "thumb_small",
				Width:   80,
				Format:  "jpeg",
				Quality: 75,
			},
			{
				Field: "image_medium",
			},
		},
	}

	result, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process request: %v", err)
	}

	if result.SourceBytes != len(srcBytes) {
		t.Fatalf("expected source_bytes=%d, got %d", len(srcBytes), result.SourceBytes)
	}
	if len(result.Outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(result.Outputs))
	}

	thumb := result.Outputs[0]
	if thumb.Format != "jpeg" {
		t.Fatalf("expected jpeg output format, got %s", thumb.Format)
	}
	if thumb.Width != 80 || thumb.Height != 40 {
		t.Fatalf("expected 80x40 thumb, got %dx%d", thumb.Width, thumb.Height)
	}
	verifyImageWidth(t, thumb.Path, 80)

	medium := result.Outputs[1]
	if medium.Format != "png" {
		t.Fatalf("expected png output format, got %s", medium.Format)
	}
	if medium.Width != 128 || medium.Height != 64 {
		t.Fatalf("expected 128x64 medium variant, got %dx%d", medium.Width, medium.Height)
	}
	verifyImageWidth(t, medium.Path, 128)
}

func TestLocalProcessor_UnsupportedSourceType(t *testing.T) {
	processor, err := NewLocalProcessor(t.TempDir())
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	_, err = processor.Process(context.Background(), Request{
		JobID:      "job-unsupported",
		SourceType: "s3_presigned",
		ObjectKey:  "uploads/job/source",
		Variants: []domain.VariantSpec{
			{Field: "thumb_small", Width: 120},
		},
	})
	if err == nil {
		t.Fatal("expected unsupported source_type error")
	}
}

func TestLocalProcessor_RequiresVariants(t *testing.T) {
	processor, err := NewLocalProcessor(t.TempDir())
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	_, err = processor.Process(context.Background(), Request{
		JobID:      "job-no-variants",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  "ignored.png",
	})
	if err == nil {
		t.Fatal("expected error for a job without variants")
	}
}

func buildTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func verifyImageWidth(t *testing.T, path string, want int) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open image %s: %v", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode image %s: %v", path, err)
	}

	if got := img.Bounds().Dx(); got != want {
		t.Fatalf("expected width %d, got %d", want, got)
	}
}
