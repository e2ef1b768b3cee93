package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rastermill/rastermill/internal/domain"
)

func TestMemoryJobStoreLifecycle(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	job := domain.Job{
		ID:         "job-1",
		UserID:     "user-1",
		Status:     domain.JobStatusCreated,
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  "input.png",
		Variants:   []domain.VariantSpec{{Field: "image_small"}},
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, ok, err := s.Get(ctx, "job-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.UserID != "user-1" || len(got.Variants) != 1 {
		t.Fatalf("unexpected job: %+v", got)
	}

	updated, err := s.UpdateStatus(ctx, "job-1", domain.JobStatusQueued)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.JobStatusQueued {
		t.Fatalf("expected status queued, got %s", updated.Status)
	}

	if _, err := s.UpdateStatus(ctx, "missing", domain.JobStatusQueued); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing job, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryJobStoreUsageLogs(t *testing.T) {
	s := NewMemoryJobStore()
	ctx := context.Background()

	if err := s.CreateUsageLog(ctx, domain.UsageLog{JobID: "job-1", PixelsProcessed: 100}); err != nil {
		t.Fatalf("create usage log: %v", err)
	}
	if err := s.CreateUsageLog(ctx, domain.UsageLog{JobID: "job-2", PixelsProcessed: 200}); err != nil {
		t.Fatalf("create usage log: %v", err)
	}

	logs := s.UsageLogs()
	if len(logs) != 2 {
		t.Fatalf("expected 2 usage logs, got %d", len(logs))
	}
	if logs[1].PixelsProcessed != 200 {
		t.Fatalf("expected second log with 200 pixels, got %d", logs[1].PixelsProcessed)
	}
}
