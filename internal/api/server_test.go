package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pagepress/pagepress/internal/domain"
	"github.com/pagepress/pagepress/internal/imaging"
	"github.com/pagepress/pagepress/internal/queue"
	"github.com/pagepress/pagepress/internal/store"
)

type fakeEnqueuer struct {
	payload queue.ProcessDocumentPayload
	called  bool
}

func (f *fakeEnqueuer) EnqueueProcessDocument(_ context.Context, payload queue.ProcessDocumentPayload) (*asynq.TaskInfo, error) {
	f.called = true
	f.payload = payload
	return &asynq.TaskInfo{
		ID:            "task-1",
		Queue:         "default",
		State:         asynq.TaskStatePending,
		NextProcessAt: time.Now().UTC(),
	}, nil
}

func newTestServer(t *testing.T, enqueuer *fakeEnqueuer, jobStore store.JobStore) *Server {
	t.Helper()
	return NewServer(log.New(io.Discard, "", 0), enqueuer, jobStore, nil, time.Minute)
}

func TestCreateJobLocalFile(t *testing.T) {
	jobStore := store.NewMemoryJobStore()
	s := newTestServer(t, &fakeEnqueuer{}, jobStore)

	body, _ := json.Marshal(domain.CreateJobRequest{
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  "input.png",
		Pipeline: []domain.PipelineStep{
			{ID: "tone", Action: domain.ActionAdjust, Adjust: &imaging.Adjustments{Brightness: 20}},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != domain.JobStatusCreated {
		t.Fatalf("status = %q, want %q", resp.Status, domain.JobStatusCreated)
	}

	job, ok, err := jobStore.Get(context.Background(), resp.JobID)
	if err != nil || !ok {
		t.Fatalf("job not persisted: ok=%v err=%v", ok, err)
	}
	if len(job.Pipeline) != 1 || job.Pipeline[0].Action != domain.ActionAdjust {
		t.Fatalf("unexpected pipeline: %+v", job.Pipeline)
	}
}

func TestCreateJobRejectsInvalidPipeline(t *testing.T) {
	s := newTestServer(t, &fakeEnqueuer{}, store.NewMemoryJobStore())

	body := []byte(`{"source_type":"local_file","object_key":"x.png","pipeline":[{"id":"r","action":"pdf_rotate","rotation":45}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetJob(t *testing.T) {
	jobStore := store.NewMemoryJobStore()
	now := time.Now().UTC()
	seed := domain.Job{
		ID:         "job-42",
		Status:     domain.JobStatusCreated,
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  "doc.pdf",
		Pipeline:   []domain.PipelineStep{{ID: "trim", Action: domain.ActionPDFExtract, Pages: "1-3"}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := jobStore.Create(context.Background(), seed); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	s := newTestServer(t, &fakeEnqueuer{}, jobStore)
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/job-42", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID != "job-42" || resp.Status != domain.JobStatusCreated {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestServer(t, &fakeEnqueuer{}, store.NewMemoryJobStore())
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/missing", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStartJobEnqueues(t *testing.T) {
	source := filepath.Join(t.TempDir(), "input.png")
	if err := os.WriteFile(source, []byte("not-really-a-png"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	jobStore := store.NewMemoryJobStore()
	now := time.Now().UTC()
	if err := jobStore.Create(context.Background(), domain.Job{
		ID:         "job-7",
		Status:     domain.JobStatusCreated,
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  source,
		Pipeline:   []domain.PipelineStep{{ID: "thumb", Action: domain.ActionResize, Width: 100}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	enqueuer := &fakeEnqueuer{}
	s := newTestServer(t, enqueuer, jobStore)
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/job-7/start", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !enqueuer.called {
		t.Fatal("expected job to be enqueued")
	}
	if enqueuer.payload.JobID != "job-7" {
		t.Fatalf("enqueued job_id = %q", enqueuer.payload.JobID)
	}

	job, _, err := jobStore.Get(context.Background(), "job-7")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != domain.JobStatusQueued {
		t.Fatalf("status = %q, want %q", job.Status, domain.JobStatusQueued)
	}
}

func TestStartJobMissingSource(t *testing.T) {
	jobStore := store.NewMemoryJobStore()
	now := time.Now().UTC()
	if err := jobStore.Create(context.Background(), domain.Job{
		ID:         "job-8",
		Status:     domain.JobStatusCreated,
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  filepath.Join(t.TempDir(), "gone.png"),
		Pipeline:   []domain.PipelineStep{{ID: "thumb", Action: domain.ActionResize, Width: 100}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	enqueuer := &fakeEnqueuer{}
	s := newTestServer(t, enqueuer, jobStore)
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/job-8/start", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if enqueuer.called {
		t.Fatal("missing source must not enqueue")
	}
}

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/v1/jobs":             "/v1/jobs",
		"/v1/jobs/abc/start":   "/v1/jobs/{id}/start",
		"/v1/jobs/abc":         "/v1/jobs/{id}",
		"/healthz":             "/healthz",
		"/metrics":             "/metrics",
		"/something/unrelated": "/something/unrelated",
	}
	for path, want := range cases {
		if got := routeLabel(path); got != want {
			t.Fatalf("routeLabel(%q) = %q, want %q", path, got, want)
		}
	}
}
