package pipeline

import (
	"context"

	"github.com/pagepress/pagepress/internal/domain"
)

// Meta describes a transformed output: pixel dimensions for raster outputs,
// page count for PDF outputs.
type Meta struct {
	Format string
	Width  int
	Height int
	Pages  int
}

type Transformer interface {
	Transform(ctx context.Context, input []byte, step domain.PipelineStep) ([]byte, Meta, error)
}

func normalizeOutputFormat(format string) string {
	switch format {
	case "jpg":
		return "jpeg"
	case "jpeg", "png", "webp", "pdf":
		return format
	default:
		return "png"
	}
}
