package queue

import (
	"testing"
	"time"

	"github.com/pagepress/pagepress/internal/domain"
	"github.com/pagepress/pagepress/internal/imaging"
)

func TestProcessDocumentTaskRoundTrip(t *testing.T) {
	payload := ProcessDocumentPayload{
		JobID:      "job-123",
		SourceType: domain.SourceTypeS3Presigned,
		ObjectKey:  "uploads/job-123/source",
		Pipeline: []domain.PipelineStep{
			{
				ID:     "warm_grade",
				Action: domain.ActionAdjust,
				Adjust: &imaging.Adjustments{Brightness: 10, Temperature: 30},
			},
			{
				ID:     "trimmed",
				Action: domain.ActionPDFDelete,
				Pages:  "2-4,9",
			},
		},
		RequestedAt: time.Now().UTC(),
	}

	task, err := NewProcessDocumentTask(payload)
	if err != nil {
		t.Fatalf("NewProcessDocumentTask returned error: %v", err)
	}

	parsed, err := ParseProcessDocumentPayload(task)
	if err != nil {
		t.Fatalf("ParseProcessDocumentPayload returned error: %v", err)
	}

	if parsed.JobID != payload.JobID {
		t.Fatalf("expected job_id %q, got %q", payload.JobID, parsed.JobID)
	}
	if len(parsed.Pipeline) != 2 {
		t.Fatalf("expected two pipeline steps, got %d", len(parsed.Pipeline))
	}
	if parsed.Pipeline[0].Adjust == nil || parsed.Pipeline[0].Adjust.Temperature != 30 {
		t.Fatalf("expected adjust settings to survive the round trip, got %+v", parsed.Pipeline[0].Adjust)
	}
	if parsed.Pipeline[1].Pages != "2-4,9" {
		t.Fatalf("expected page expression to survive the round trip, got %q", parsed.Pipeline[1].Pages)
	}
}
