package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/pagepress/pagepress/internal/domain"
	"github.com/pagepress/pagepress/internal/pdfops"
)

// pdfTransformer handles the page-level PDF actions.
type pdfTransformer struct{}

func (t pdfTransformer) Transform(ctx context.Context, input []byte, step domain.PipelineStep) ([]byte, Meta, error) {
	select {
	case <-ctx.Done():
		return nil, Meta{}, ctx.Err()
	default:
	}

	var (
		out []byte
		err error
	)
	switch strings.ToLower(strings.TrimSpace(step.Action)) {
	case domain.ActionPDFDelete:
		out, err = pdfops.DeletePages(input, step.Pages)
	case domain.ActionPDFExtract:
		out, err = pdfops.ExtractPages(input, step.Pages, step.EmptyMeansAll)
	case domain.ActionPDFRotate:
		out, err = pdfops.RotatePages(input, step.Pages, step.Rotation)
	default:
		err = fmt.Errorf("%w: %q", ErrInvalidStepAction, step.Action)
	}
	if err != nil {
		return nil, Meta{}, err
	}

	pages, err := pdfops.PageCount(out)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("count result pages: %w", err)
	}

	return out, Meta{Format: "pdf", Pages: pages}, nil
}
