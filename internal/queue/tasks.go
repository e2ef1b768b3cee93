package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rastermill/rastermill/internal/domain"
)

const TypeDeriveVariants = "image:variants"

// DeriveVariantsPayload is the queue message asking the worker to derive
// the requested variants of one uploaded source image.
type DeriveVariantsPayload struct {
	JobID       string               `json:"job_id"`
	SourceType  string               `json:"source_type"`
	WebhookURL  string               `json:"webhook_url,omitempty"`
	ObjectKey   string               `json:"object_key"`
	Variants    []domain.VariantSpec `json:"variants"`
	RequestedAt time.Time            `json:"requested_at"`
}

func NewDeriveVariantsTask(payload DeriveVariantsPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal variants payload: %w", err)
	}
	return asynq.NewTask(TypeDeriveVariants, body), nil
}

func ParseDeriveVariantsPayload(task *asynq.Task) (DeriveVariantsPayload, error) {
	var payload DeriveVariantsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DeriveVariantsPayload{}, fmt.Errorf("unmarshal variants payload: %w", err)
	}
	return payload, nil
}
