package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"
)

// CreateJobRequest asks for a set of image variants to be derived from one
// uploaded source.
type CreateJobRequest struct {
	SourceType string        `json:"source_type"`
	WebhookURL string        `json:"webhook_url,omitempty"`
	ObjectKey  string        `json:"object_key,omitempty"`
	Variants   []VariantSpec `json:"variants"`
}

// VariantSpec describes one derived output. Field names the record field
// the variant belongs to; when Width and Height are both zero the target
// size is inferred from the field name suffix (big/large/medium/small), so
// a spec with an unrecognized field and no size only converts the format.
type VariantSpec struct {
	Field    string `json:"field"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Crop     string `json:"crop,omitempty"`
	Quality  int    `json:"quality,omitempty"`
	Format   string `json:"format,omitempty"`
	Colorize bool   `json:"colorize,omitempty"`
}

type Job struct {
	ID         string
	UserID     string
	Status     string
	SourceType string
	WebhookURL string
	Variants   []VariantSpec
	ObjectKey  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r CreateJobRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile && strings.TrimSpace(r.ObjectKey) == "" {
		return errors.New("object_key is required for source_type=local_file")
	}
	if len(r.Variants) == 0 {
		return errors.New("variants must contain at least one entry")
	}
	for i, v := range r.Variants {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("variants[%d]: %w", i, err)
		}
	}
	return nil
}

func (v VariantSpec) Validate() error {
	if strings.TrimSpace(v.Field) == "" {
		return errors.New("field is required")
	}
	if v.Width < 0 || v.Height < 0 {
		return errors.New("width and height must not be negative")
	}
	switch v.Crop {
	case "", "center", "top", "bottom":
	default:
		return fmt.Errorf("unsupported crop anchor: %s", v.Crop)
	}
	if v.Quality != 0 && (v.Quality < 1 || v.Quality > 95) {
		return fmt.Errorf("quality must be within [1, 95], got %d", v.Quality)
	}
	return nil
}
