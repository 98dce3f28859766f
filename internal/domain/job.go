package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pagepress/pagepress/internal/imaging"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"

	ActionAdjust     = "adjust"
	ActionResize     = "resize"
	ActionWatermark  = "watermark"
	ActionPDFDelete  = "pdf_delete"
	ActionPDFExtract = "pdf_extract"
	ActionPDFRotate  = "pdf_rotate"
)

type CreateJobRequest struct {
	SourceType string         `json:"source_type"`
	UserID     string         `json:"user_id,omitempty"`
	WebhookURL string         `json:"webhook_url,omitempty"`
	ObjectKey  string         `json:"object_key,omitempty"`
	Pipeline   []PipelineStep `json:"pipeline"`
}

// PipelineStep describes one transformation applied to the source object.
// Image actions (adjust, resize, watermark) and PDF actions (pdf_delete,
// pdf_extract, pdf_rotate) share the struct; Validate checks the fields each
// action actually requires.
type PipelineStep struct {
	ID      string               `json:"id"`
	Action  string               `json:"action"`
	Adjust  *imaging.Adjustments `json:"adjust,omitempty"`
	Width   int                  `json:"width,omitempty"`
	Format  string               `json:"format,omitempty"`
	Quality int                  `json:"quality,omitempty"`

	// Pages is a one-based range expression ("1-3,5"). EmptyMeansAll
	// selects between the two conventions the tools need: pdf_extract
	// treats an empty expression as every page, pdf_delete as none.
	Pages         string `json:"pages,omitempty"`
	EmptyMeansAll bool   `json:"empty_means_all,omitempty"`
	Rotation      int    `json:"rotation,omitempty"`

	Watermark *Watermark `json:"watermark,omitempty"`
}

type Watermark struct {
	Text    string  `json:"text"`
	Opacity float64 `json:"opacity"`
	Gravity string  `json:"gravity"`
}

type Job struct {
	ID         string
	UserID     string
	Status     string
	SourceType string
	WebhookURL string
	Pipeline   []PipelineStep
	ObjectKey  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r CreateJobRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile && strings.TrimSpace(r.ObjectKey) == "" {
		return errors.New("object_key is required for source_type=local_file")
	}
	if len(r.Pipeline) == 0 {
		return errors.New("pipeline must contain at least one step")
	}
	for i, step := range r.Pipeline {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("pipeline[%d]: %w", i, err)
		}
	}
	return nil
}

func (s PipelineStep) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("id is required")
	}

	switch strings.ToLower(strings.TrimSpace(s.Action)) {
	case ActionAdjust:
		if s.Adjust == nil {
			return errors.New("adjust action requires adjust settings")
		}
		if err := s.Adjust.Validate(); err != nil {
			return err
		}
	case ActionResize:
		if s.Width <= 0 {
			return errors.New("resize action requires width > 0")
		}
	case ActionWatermark:
		if s.Watermark == nil || strings.TrimSpace(s.Watermark.Text) == "" {
			return errors.New("watermark action requires watermark.text")
		}
	case ActionPDFDelete, ActionPDFExtract:
		// The page expression itself is parsed leniently downstream;
		// nothing to reject here.
	case ActionPDFRotate:
		if s.Rotation != 90 && s.Rotation != 180 && s.Rotation != 270 {
			return fmt.Errorf("pdf_rotate action requires rotation of 90, 180 or 270, got %d", s.Rotation)
		}
	case "":
		return errors.New("action is required")
	default:
		return fmt.Errorf("unsupported action: %s", s.Action)
	}
	return nil
}

// IsPDFAction reports whether the step operates on a PDF document rather
// than a decoded raster image.
func (s PipelineStep) IsPDFAction() bool {
	switch strings.ToLower(strings.TrimSpace(s.Action)) {
	case ActionPDFDelete, ActionPDFExtract, ActionPDFRotate:
		return true
	}
	return false
}
