package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/rastermill/rastermill/internal/queue"
	"github.com/rastermill/rastermill/internal/store"
)

func TestExtractJobIDFromStartPath(t *testing.T) {
	jobID, err := extractJobIDFromStartPath("/v1/jobs/abc123/start")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if jobID != "abc123" {
		t.Fatalf("expected abc123, got %s", jobID)
	}

	if _, err := extractJobIDFromStartPath("/v1/jobs/abc123"); err == nil {
		t.Fatal("expected error for invalid path")
	}
}

type captureEnqueuer struct {
	payload queue.DeriveVariantsPayload
	called  bool
}

func (c *captureEnqueuer) EnqueueDeriveVariants(_ context.Context, payload queue.DeriveVariantsPayload) (*asynq.TaskInfo, error) {
	c.called = true
	c.payload = payload
	return &asynq.TaskInfo{ID: "task-1", Queue: "default", State: asynq.TaskStatePending}, nil
}

func newTestServer(t *testing.T, enqueuer *captureEnqueuer) (*Server, *store.MemoryJobStore) {
	t.Helper()
	jobStore := store.NewMemoryJobStore()
	s := NewServer(log.New(io.Discard, "", 0), enqueuer, jobStore, nil, Options{})
	return s, jobStore
}

func TestHandleCreateJobRejectsInvalidBody(t *testing.T) {
	s, _ := newTestServer(t, &captureEnqueuer{})

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(`{"source_type":"bogus"}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateAndStartLocalJob(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.png")
	if err := os.WriteFile(sourcePath, testPNGBytes(t, 4, 4), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	enqueuer := &captureEnqueuer{}
	s, _ := newTestServer(t, enqueuer)

	body := map[string]any{
		"source_type": "local_file",
		"object_key":  sourcePath,
		"variants":    []map[string]any{{"field": "image_medium"}},
	}
	raw, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("create: expected 202, got %d body=%s", rec.Code, rec.Body.String())
	}

	var created struct {
		JobID    string `json:"job_id"`
		StartURL string `json:"start_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.JobID == "" {
		t.Fatal("expected a job id")
	}

	startReq := httptest.NewRequest(http.MethodPost, created.StartURL, nil)
	startRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(startRec, startReq)

	if startRec.Code != http.StatusAccepted {
		t.Fatalf("start: expected 202, got %d body=%s", startRec.Code, startRec.Body.String())
	}
	if !enqueuer.called {
		t.Fatal("expected the job to be enqueued")
	}
	if enqueuer.payload.JobID != created.JobID {
		t.Fatalf("expected enqueued job id %s, got %s", created.JobID, enqueuer.payload.JobID)
	}
	if len(enqueuer.payload.Variants) != 1 || enqueuer.payload.Variants[0].Field != "image_medium" {
		t.Fatalf("unexpected enqueued variants: %+v", enqueuer.payload.Variants)
	}
}

func TestStartUnknownJobReturnsNotFound(t *testing.T) {
	s, _ := newTestServer(t, &captureEnqueuer{})

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/nope/start", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandlePreviewReturnsDataURI(t *testing.T) {
	s, _ := newTestServer(t, &captureEnqueuer{})

	source := base64.StdEncoding.EncodeToString(testPNGBytes(t, 8, 4))
	body, _ := json.Marshal(map[string]any{
		"image_base64": source,
		"width":        4,
		"height":       0,
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/preview", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp struct {
		DataURI string `json:"data_uri"`
		Width   int    `json:"width"`
		Height  int    `json:"height"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.DataURI, "data:image/png;base64,") {
		t.Fatalf("unexpected data uri prefix: %.40s", resp.DataURI)
	}
	if resp.Width != 4 || resp.Height != 2 {
		t.Fatalf("expected 4x2 preview, got %dx%d", resp.Width, resp.Height)
	}
}

func TestHandlePreviewRejectsGarbage(t *testing.T) {
	s, _ := newTestServer(t, &captureEnqueuer{})

	body, _ := json.Marshal(map[string]any{"image_base64": "not base64 at all!!!"})
	req := httptest.NewRequest(http.MethodPost, "/v1/preview", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func testPNGBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 31), G: uint8(y * 31), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
