package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/pagepress/pagepress/internal/domain"
	"github.com/pagepress/pagepress/internal/imaging"
)

func BenchmarkProcessorAdjust(b *testing.B) {
	source := buildTestPNG(b, 1920, 1080)
	processor := NewLocalProcessor(b.TempDir())
	processor.fetcher = staticFetcher{data: source}
	processor.emitter = discardEmitter{}

	req := Request{
		JobID:      "bench",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  "ignored.png",
		Pipeline: []domain.PipelineStep{
			{
				ID:     "graded",
				Action: domain.ActionAdjust,
				Format: "jpeg",
				Adjust: &imaging.Adjustments{
					Brightness: 12,
					Contrast:   25,
					Saturation: 30,
				},
			},
		},
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req.JobID = fmt.Sprintf("bench-adjust-%d", i)
		if _, err := processor.Process(context.Background(), req); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
}

func BenchmarkProcessorPDFExtract(b *testing.B) {
	source := buildTestPDFDoc(b, 30)
	processor := NewLocalProcessor(b.TempDir())
	processor.fetcher = staticFetcher{data: source}
	processor.emitter = discardEmitter{}

	req := Request{
		JobID:      "bench",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  "ignored.pdf",
		Pipeline: []domain.PipelineStep{
			{
				ID:     "front_half",
				Action: domain.ActionPDFExtract,
				Pages:  "1-15",
			},
		},
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req.JobID = fmt.Sprintf("bench-extract-%d", i)
		if _, err := processor.Process(context.Background(), req); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
}

type staticFetcher struct {
	data []byte
}

func (f staticFetcher) Fetch(_ context.Context, _ Request) ([]byte, error) {
	return f.data, nil
}

type discardEmitter struct{}

func (discardEmitter) Emit(_ context.Context, _ Request, step domain.PipelineStep, data []byte, meta Meta) (Output, error) {
	return Output{
		StepID:  step.ID,
		Action:  step.Action,
		Format:  normalizeOutputFormat(meta.Format),
		Bytes:   len(data),
		Width:   meta.Width,
		Height:  meta.Height,
		Pages:   meta.Pages,
		Success: true,
	}, nil
}
