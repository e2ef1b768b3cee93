// Package pipeline runs variant-derivation jobs: fetch an uploaded source,
// push it through the transform core once per requested variant, and emit
// the results.
package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rastermill/rastermill/internal/domain"
	"github.com/rastermill/rastermill/internal/transform"
)

const SourceTypeLocalFile = domain.SourceTypeLocalFile

var ErrUnsupportedSourceType = errors.New("unsupported source_type")

type Request struct {
	JobID      string
	SourceType string
	ObjectKey  string
	Variants   []domain.VariantSpec
}

type Output struct {
	Field   string
	Format  string
	Path    string
	Bytes   int
	Width   int
	Height  int
	Success bool
}

type Result struct {
	SourceBytes int
	Outputs     []Output
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, spec domain.VariantSpec, data []byte, format string, width, height int) (Output, error)
}

type Processor struct {
	fetcher     Fetcher
	transformer *transform.Transformer
	emitter     Emitter
}

func NewLocalProcessor(outputDir string) (*Processor, error) {
	return &Processor{
		fetcher:     LocalFileFetcher{},
		transformer: transform.New(nil, nil),
		emitter:     LocalFileEmitter{OutputDir: outputDir},
	}, nil
}

func NewProcessor(fetcher Fetcher, emitter Emitter) (*Processor, error) {
	if fetcher == nil || emitter == nil {
		return nil, errors.New("fetcher and emitter are required")
	}
	return &Processor{
		fetcher:     fetcher,
		transformer: transform.New(nil, nil),
		emitter:     emitter,
	}, nil
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return Result{}, errors.New("job_id is required")
	}
	if len(req.Variants) == 0 {
		return Result{}, errors.New("job must request at least one variant")
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	source := make([]byte, base64.StdEncoding.EncodedLen(len(sourceBytes)))
	base64.StdEncoding.Encode(source, sourceBytes)

	out := Result{
		SourceBytes: len(sourceBytes),
		Outputs:     make([]Output, 0, len(req.Variants)),
	}
	for _, spec := range req.Variants {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		encoded, err := p.transformer.Process(source, optionsForSpec(spec))
		if err != nil {
			return Result{}, fmt.Errorf("transform stage field=%s: %w", spec.Field, err)
		}
		if len(encoded) == 0 {
			// Empty source; nothing to emit for this variant.
			continue
		}

		data, err := base64.StdEncoding.DecodeString(string(encoded))
		if err != nil {
			return Result{}, fmt.Errorf("transform stage field=%s: decode result: %w", spec.Field, err)
		}

		width, height, err := p.transformer.Dimensions(encoded)
		if err != nil {
			return Result{}, fmt.Errorf("transform stage field=%s: measure result: %w", spec.Field, err)
		}

		written, err := p.emitter.Emit(ctx, req, spec, data, formatLabel(encoded), width, height)
		if err != nil {
			return Result{}, fmt.Errorf("emit stage field=%s: %w", spec.Field, err)
		}
		out.Outputs = append(out.Outputs, written)
	}

	return out, nil
}

// optionsForSpec maps a variant spec onto transform options. A spec without
// explicit dimensions falls back to the size implied by its field name.
func optionsForSpec(spec domain.VariantSpec) transform.Options {
	size := transform.Size{Width: spec.Width, Height: spec.Height}
	if size.IsZero() {
		size = transform.SizeFromFieldName(spec.Field)
	}
	return transform.Options{
		Size:             size,
		VerifyResolution: true,
		Quality:          spec.Quality,
		Crop:             transform.Crop(spec.Crop),
		Colorize:         spec.Colorize,
		Format:           spec.Format,
	}
}

// formatLabel names the on-disk format of an encoded result from its
// base64 magic byte.
func formatLabel(encoded []byte) string {
	switch transform.MIMESubtype(encoded) {
	case "jpg":
		return "jpeg"
	case "gif":
		return "gif"
	case "svg+xml":
		return "svg"
	default:
		return "png"
	}
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(req.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.ObjectKey, err)
	}
	return data, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, spec domain.VariantSpec, data []byte, format string, width, height int) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}
	if strings.TrimSpace(spec.Field) == "" {
		return Output{}, errors.New("variant field is required")
	}

	jobDir := filepath.Join(e.OutputDir, sanitizePathToken(req.JobID))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("%s.%s", sanitizePathToken(spec.Field), format)
	fullPath := filepath.Join(jobDir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return Output{
		Field:   spec.Field,
		Format:  format,
		Path:    fullPath,
		Bytes:   len(data),
		Width:   width,
		Height:  height,
		Success: true,
	}, nil
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
