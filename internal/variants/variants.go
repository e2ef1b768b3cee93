// Package variants derives the standard big/large/medium/small image
// variants that record storage keeps alongside an uploaded image.
package variants

import (
	"fmt"

	"github.com/rastermill/rastermill/internal/transform"
)

// Fields names the record fields holding each variant. An empty name
// excludes that variant.
type Fields struct {
	Big    string
	Medium string
	Large  string
	Small  string
}

// DefaultFields matches the conventional record layout, where the bare
// "image" field holds the big variant.
func DefaultFields() Fields {
	return Fields{
		Big:    "image",
		Large:  "image_large",
		Medium: "image_medium",
		Small:  "image_small",
	}
}

// Want selects which variants a Fill call should produce.
type Want struct {
	Big    bool
	Large  bool
	Medium bool
	Small  bool
}

// DefaultWant mirrors the usual storage policy: everything but the large
// variant, which most records do not keep.
func DefaultWant() Want {
	return Want{Big: true, Medium: true, Small: true}
}

// Derive returns the requested variants of source keyed by field name.
func Derive(t *transform.Transformer, source []byte, fields Fields, want Want) (map[string][]byte, error) {
	out := make(map[string][]byte)

	type job struct {
		name string
		size transform.Size
	}
	jobs := []job{
		{name: fields.Big, size: transform.SizeBig},
		{name: fields.Large, size: transform.SizeLarge},
		{name: fields.Medium, size: transform.SizeMedium},
		{name: fields.Small, size: transform.SizeSmall},
	}
	wanted := []bool{want.Big, want.Large, want.Medium, want.Small}

	for i, j := range jobs {
		if !wanted[i] || j.name == "" {
			continue
		}
		resized, err := t.Resize(source, j.size, "")
		if err != nil {
			return nil, fmt.Errorf("derive %s variant: %w", j.name, err)
		}
		out[j.name] = resized
	}
	return out, nil
}

// Fill updates vals in place with the requested variants, derived from the
// biggest variant present. When none of the variant fields appear in vals
// the map is left untouched; when they appear but are all empty, the
// requested fields are set to the no-image sentinel explicitly.
func Fill(t *transform.Transformer, vals map[string][]byte, fields Fields, want Want) error {
	names := []string{fields.Big, fields.Large, fields.Medium, fields.Small}

	var source []byte
	present := false
	for _, name := range names {
		if name == "" {
			continue
		}
		v, ok := vals[name]
		if !ok {
			continue
		}
		present = true
		if len(v) > 0 && len(source) == 0 {
			source = v
		}
	}

	if len(source) > 0 {
		derived, err := Derive(t, source, fields, want)
		if err != nil {
			return err
		}
		for name, data := range derived {
			vals[name] = data
		}
		return nil
	}

	if !present {
		return nil
	}

	wanted := []bool{want.Big, want.Large, want.Medium, want.Small}
	for i, name := range names {
		if wanted[i] && name != "" {
			vals[name] = transform.NoImage
		}
	}
	return nil
}
