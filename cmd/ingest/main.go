package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pagepress/pagepress/internal/config"
	"github.com/pagepress/pagepress/internal/domain"
	"github.com/pagepress/pagepress/internal/id"
	"github.com/pagepress/pagepress/internal/queue"
	"github.com/pagepress/pagepress/internal/store"
	"github.com/pagepress/pagepress/internal/watch"
)

// jobSubmitter turns a settled file into a queued processing job.
type jobSubmitter struct {
	logger      *log.Logger
	queueClient *queue.Client
	jobStore    store.JobStore
	pipeline    []domain.PipelineStep
}

func (s *jobSubmitter) Submit(ctx context.Context, path string) error {
	now := time.Now().UTC()
	job := domain.Job{
		ID:         id.New(),
		Status:     domain.JobStatusCreated,
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  path,
		Pipeline:   s.pipeline,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.jobStore.Create(ctx, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	taskInfo, err := s.queueClient.EnqueueProcessDocument(ctx, queue.ProcessDocumentPayload{
		JobID:       job.ID,
		SourceType:  job.SourceType,
		ObjectKey:   job.ObjectKey,
		Pipeline:    job.Pipeline,
		RequestedAt: now,
	})
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	if _, err := s.jobStore.UpdateStatus(ctx, job.ID, domain.JobStatusQueued); err != nil {
		s.logger.Printf("update status failed job_id=%s err=%v", job.ID, err)
	}

	s.logger.Printf("enqueued job_id=%s task_id=%s path=%s", job.ID, taskInfo.ID, path)
	return nil
}

func loadPipeline(path string) ([]domain.PipelineStep, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	var steps []domain.PipelineStep
	if err := json.Unmarshal(body, &steps); err != nil {
		return nil, fmt.Errorf("parse pipeline file: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("pipeline file %s contains no steps", path)
	}
	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("pipeline file %s step %d: %w", path, i, err)
		}
	}
	return steps, nil
}

func main() {
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lmsgprefix)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if cfg.Ingest.PipelineFile == "" {
		logger.Fatal("INGEST_PIPELINE_FILE (or ingest.pipeline_file) is required")
	}

	pipeline, err := loadPipeline(cfg.Ingest.PipelineFile)
	if err != nil {
		logger.Fatalf("load pipeline: %v", err)
	}

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var jobStore store.JobStore
	if cfg.Database.DSN != "" {
		pgStore, err := store.NewPostgresJobStore(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatalf("connect job store: %v", err)
		}
		defer pgStore.Close()
		jobStore = pgStore
	} else {
		jobStore = store.NewMemoryJobStore()
	}

	if err := os.MkdirAll(cfg.Ingest.InputDir, 0o755); err != nil {
		logger.Fatalf("create input dir: %v", err)
	}

	watcher, err := watch.New(logger, cfg.Ingest.InputDir, cfg.Ingest.Debounce, &jobSubmitter{
		logger:      logger,
		queueClient: queueClient,
		jobStore:    jobStore,
		pipeline:    pipeline,
	})
	if err != nil {
		logger.Fatalf("initialize watcher: %v", err)
	}

	logger.Printf("ingesting from %s with %d pipeline steps", cfg.Ingest.InputDir, len(pipeline))
	if err := watcher.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("watcher failed: %v", err)
	}
	logger.Println("shutdown complete")
}
