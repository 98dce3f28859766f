package domain

import (
	"testing"

	"github.com/pagepress/pagepress/internal/imaging"
)

func TestCreateJobRequestValidate(t *testing.T) {
	valid := CreateJobRequest{
		SourceType: SourceTypeS3Presigned,
		Pipeline: []PipelineStep{
			{
				ID:     "warm_tone",
				Action: ActionAdjust,
				Adjust: &imaging.Adjustments{Brightness: 10, Temperature: 25},
			},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	invalid := CreateJobRequest{}
	if err := invalid.Validate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}

	missingObjectKey := CreateJobRequest{
		SourceType: SourceTypeLocalFile,
		Pipeline: []PipelineStep{
			{
				ID:     "thumb_small",
				Action: ActionResize,
				Width:  120,
			},
		},
	}
	if err := missingObjectKey.Validate(); err == nil {
		t.Fatal("expected validation error for local_file object_key")
	}

	unsupportedSourceType := CreateJobRequest{
		SourceType: "http_url",
		Pipeline: []PipelineStep{
			{
				ID:     "thumb_small",
				Action: ActionResize,
				Width:  120,
			},
		},
	}
	if err := unsupportedSourceType.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported source_type")
	}
}

func TestPipelineStepValidate(t *testing.T) {
	tests := []struct {
		name    string
		step    PipelineStep
		wantErr bool
	}{
		{
			name: "adjust with settings",
			step: PipelineStep{ID: "a", Action: ActionAdjust, Adjust: &imaging.Adjustments{Contrast: -40}},
		},
		{
			name:    "adjust without settings",
			step:    PipelineStep{ID: "a", Action: ActionAdjust},
			wantErr: true,
		},
		{
			name:    "adjust with out-of-range contrast",
			step:    PipelineStep{ID: "a", Action: ActionAdjust, Adjust: &imaging.Adjustments{Contrast: 259}},
			wantErr: true,
		},
		{
			name:    "resize without width",
			step:    PipelineStep{ID: "r", Action: ActionResize},
			wantErr: true,
		},
		{
			name: "pdf delete with empty pages",
			step: PipelineStep{ID: "d", Action: ActionPDFDelete},
		},
		{
			name: "pdf extract with range",
			step: PipelineStep{ID: "x", Action: ActionPDFExtract, Pages: "1-3,5"},
		},
		{
			name: "pdf rotate quarter turn",
			step: PipelineStep{ID: "rot", Action: ActionPDFRotate, Rotation: 90},
		},
		{
			name:    "pdf rotate odd angle",
			step:    PipelineStep{ID: "rot", Action: ActionPDFRotate, Rotation: 45},
			wantErr: true,
		},
		{
			name:    "unknown action",
			step:    PipelineStep{ID: "u", Action: "sharpen"},
			wantErr: true,
		},
		{
			name:    "missing id",
			step:    PipelineStep{Action: ActionResize, Width: 10},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.step.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected step to validate, got %v", err)
			}
		})
	}
}

func TestIsPDFAction(t *testing.T) {
	if (PipelineStep{Action: ActionAdjust}).IsPDFAction() {
		t.Fatal("adjust is not a PDF action")
	}
	if !(PipelineStep{Action: ActionPDFDelete}).IsPDFAction() {
		t.Fatal("pdf_delete is a PDF action")
	}
	if !(PipelineStep{Action: " PDF_ROTATE "}).IsPDFAction() {
		t.Fatal("action matching is case and whitespace insensitive")
	}
}
