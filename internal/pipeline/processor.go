package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pagepress/pagepress/internal/domain"
)

const SourceTypeLocalFile = domain.SourceTypeLocalFile

var (
	ErrUnsupportedSourceType = errors.New("unsupported source_type")
	ErrInvalidStepAction     = errors.New("invalid pipeline action")
)

type Request struct {
	JobID      string
	SourceType string
	ObjectKey  string
	Pipeline   []domain.PipelineStep
}

type Output struct {
	StepID  string
	Action  string
	Format  string
	Path    string
	Bytes   int
	Width   int
	Height  int
	Pages   int
	Success bool
	Error   string
}

type Result struct {
	SourceBytes int
	Outputs     []Output
}

// Failed reports whether every step of the run failed. Partial failures
// still count as a completed run; per-step errors live on the outputs.
func (r Result) Failed() bool {
	if len(r.Outputs) == 0 {
		return true
	}
	for _, out := range r.Outputs {
		if out.Success {
			return false
		}
	}
	return true
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, step domain.PipelineStep, data []byte, meta Meta) (Output, error)
}

type Processor struct {
	fetcher  Fetcher
	imageTfm Transformer
	pdfTfm   Transformer
	emitter  Emitter
}

func NewLocalProcessor(outputDir string) *Processor {
	return &Processor{
		fetcher:  LocalFileFetcher{},
		imageTfm: imageTransformer{},
		pdfTfm:   pdfTransformer{},
		emitter:  LocalFileEmitter{OutputDir: outputDir},
	}
}

func NewObjectStoreProcessor(fetcher Fetcher, emitter Emitter) *Processor {
	return &Processor{
		fetcher:  fetcher,
		imageTfm: imageTransformer{},
		pdfTfm:   pdfTransformer{},
		emitter:  emitter,
	}
}

// Process fetches the source once and runs every pipeline step against it.
// A failing step records a failed Output and the remaining steps still run;
// one broken conversion must not abort the rest of the batch. Process itself
// returns an error only for request-level problems: a missing source, an
// empty pipeline, or a cancelled context.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return Result{}, errors.New("job_id is required")
	}
	if len(req.Pipeline) == 0 {
		return Result{}, errors.New("pipeline must contain at least one step")
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	result := Result{
		SourceBytes: len(sourceBytes),
		Outputs:     make([]Output, 0, len(req.Pipeline)),
	}
	for _, step := range req.Pipeline {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		output, err := p.runStep(ctx, req, step, sourceBytes)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			result.Outputs = append(result.Outputs, Output{
				StepID: step.ID,
				Action: step.Action,
				Error:  err.Error(),
			})
			continue
		}
		result.Outputs = append(result.Outputs, output)
	}

	return result, nil
}

func (p *Processor) runStep(ctx context.Context, req Request, step domain.PipelineStep, source []byte) (Output, error) {
	transformer := p.imageTfm
	if step.IsPDFAction() {
		transformer = p.pdfTfm
	}

	transformed, meta, err := transformer.Transform(ctx, source, step)
	if err != nil {
		return Output{}, fmt.Errorf("transform stage step=%s action=%s: %w", step.ID, step.Action, err)
	}

	output, err := p.emitter.Emit(ctx, req, step, transformed, meta)
	if err != nil {
		return Output{}, fmt.Errorf("emit stage step=%s action=%s: %w", step.ID, step.Action, err)
	}
	return output, nil
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

func (e LocalFileEmitter) Emit(_ context.Context, req Request, step domain.PipelineStep, data []byte, meta Meta) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}
	if strings.TrimSpace(step.ID) == "" {
		return Output{}, errors.New("pipeline step id is required")
	}

	jobDir := filepath.Join(e.OutputDir, sanitizePathToken(req.JobID))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("%s.%s", sanitizePathToken(step.ID), normalizeOutputFormat(meta.Format))
	fullPath := filepath.Join(jobDir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return Output{
		StepID:  step.ID,
		Action:  step.Action,
		Format:  normalizeOutputFormat(meta.Format),
		Path:    fullPath,
		Bytes:   len(data),
		Width:   meta.Width,
		Height:  meta.Height,
		Pages:   meta.Pages,
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
