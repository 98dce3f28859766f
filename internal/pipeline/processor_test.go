package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pagepress/pagepress/internal/domain"
	"github.com/pagepress/pagepress/internal/imaging"
)

func TestLocalProcessor_FileInTransformFileOut(t *testing.T) {
	tmp := t.TempDir()
	inputPath := filepath.Join(tmp, "input.png")
	outputDir := filepath.Join(tmp, "out")

	srcBytes := buildTestPNG(t, 240, 120)
	if err := os.WriteFile(inputPath, srcBytes, 0o644); err != nil {
		t.Fatalf("write input image: %v", err)
	}

	processor := NewLocalProcessor(outputDir)

	req := Request{
		JobID:      "job-local-1",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  inputPath,
		Pipeline: []domain.PipelineStep{
			{
				ID:     "brighter",
				Action: domain.ActionAdjust,
				Format: "png",
				Adjust: &imaging.Adjustments{Brightness: 40},
			},
			{
				ID:      "thumb_small",
				Action:  domain.ActionResize,
				Width:   80,
				Format:  "jpeg",
				Quality: 75,
			},
		},
	}

	result, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process request: %v", err)
	}

	if result.SourceBytes != len(srcBytes) {
		t.Fatalf("expected source bytes %d, got %d", len(srcBytes), result.SourceBytes)
	}
	if len(result.Outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(result.Outputs))
	}

	adjusted := result.Outputs[0]
	if !adjusted.Success {
		t.Fatalf("expected adjust step to succeed, got error %q", adjusted.Error)
	}
	if adjusted.Format != "png" {
		t.Fatalf("expected png output format, got %s", adjusted.Format)
	}
	verifyBrightnessShift(t, inputPath, adjusted.Path, 40)

	resized := result.Outputs[1]
	if resized.Format != "jpeg" {
		t.Fatalf("expected jpeg output format, got %s", resized.Format)
	}
	verifyImageWidth(t, resized.Path, 80)
}

func TestProcessorStepFailureIsIsolated(t *testing.T) {
	processor := NewLocalProcessor(t.TempDir())
	processor.fetcher = staticFetcher{data: buildTestPNG(t, 32, 32)}

	req := Request{
		JobID:      "job-partial",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  "ignored.png",
		Pipeline: []domain.PipelineStep{
			{
				// Adjust without settings fails inside the transformer.
				ID:     "broken",
				Action: domain.ActionAdjust,
			},
			{
				ID:     "thumb",
				Action: domain.ActionResize,
				Width:  16,
				Format: "png",
			},
		},
	}

	result, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("expected per-step isolation, Process returned %v", err)
	}
	if len(result.Outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(result.Outputs))
	}

	broken := result.Outputs[0]
	if broken.Success {
		t.Fatal("expected first step to fail")
	}
	if !strings.Contains(broken.Error, "adjust") {
		t.Fatalf("expected adjust error on failed output, got %q", broken.Error)
	}

	if !result.Outputs[1].Success {
		t.Fatalf("expected second step to succeed, got error %q", result.Outputs[1].Error)
	}
	if result.Failed() {
		t.Fatal("a partially successful run is not a failed run")
	}
}

func TestProcessorPDFSteps(t *testing.T) {
	processor := NewLocalProcessor(t.TempDir())
	processor.fetcher = staticFetcher{data: buildTestPDFDoc(t, 5)}
	processor.emitter = discardEmitter{}

	req := Request{
		JobID:      "job-pdf",
		SourceType: SourceTypeLocalFile,
		ObjectKey:  "ignored.pdf",
		Pipeline: []domain.PipelineStep{
			{
				ID:     "drop_cover",
				Action: domain.ActionPDFDelete,
				Pages:  "1",
			},
			{
				ID:            "keep_front",
				Action:        domain.ActionPDFExtract,
				Pages:         "1-3",
				EmptyMeansAll: true,
			},
			{
				ID:       "landscape",
				Action:   domain.ActionPDFRotate,
				Rotation: 90,
			},
		},
	}

	result, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("process request: %v", err)
	}
	if len(result.Outputs) != 3 {
		t.Fatalf("expected 3 outputs, got %d", len(result.Outputs))
	}

	for i, wantPages := range []int{4, 3, 5} {
		out := result.Outputs[i]
		if !out.Success {
			t.Fatalf("step %d failed: %s", i, out.Error)
		}
		if out.Format != "pdf" {
			t.Fatalf("step %d: expected pdf format, got %s", i, out.Format)
		}
		if out.Pages != wantPages {
			t.Fatalf("step %d: expected %d pages, got %d", i, wantPages, out.Pages)
		}
	}
}

func TestLocalProcessor_UnsupportedSourceType(t *testing.T) {
	processor := NewLocalProcessor(t.TempDir())

	_, err := processor.Process(context.Background(), Request{
		JobID:      "job-unsupported",
		SourceType: "s3_presigned",
		ObjectKey:  "uploads/job/source",
		Pipeline: []domain.PipelineStep{
			{
				ID:     "thumb_small",
				Action: domain.ActionResize,
				Width:  120,
			},
		},
	})
	if err == nil {
		t.Fatal("expected unsupported source_type error")
	}
}

func TestResultFailed(t *testing.T) {
	if !(Result{}).Failed() {
		t.Fatal("a run with no outputs is failed")
	}
	allBad := Result{Outputs: []Output{{Error: "x"}, {Error: "y"}}}
	if !allBad.Failed() {
		t.Fatal("a run where every step failed is failed")
	}
	mixed := Result{Outputs: []Output{{Error: "x"}, {Success: true}}}
	if mixed.Failed() {
		t.Fatal("a run with any successful step is not failed")
	}
}

func buildTestPNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

// buildTestPDFDoc assembles a minimal n-page PDF with a correct xref table.
func buildTestPDFDoc(t testing.TB, pages int) []byte {
	t.Helper()

	var kids strings.Builder
	for i := 0; i < pages; i++ {
		fmt.Fprintf(&kids, "%d 0 R ", 3+i)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.TrimSpace(kids.String()), pages),
	}
	for i := 0; i < pages; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefPos := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefPos)
	return buf.Bytes()
}

func verifyImageWidth(t *testing.T, path string, want int) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open image %s: %v", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode image %s: %v", path, err)
	}

	if got := img.Bounds().Dx(); got != want {
		t.Fatalf("expected width %d, got %d", want, got)
	}
}

// verifyBrightnessShift decodes both images and spot-checks that each channel
// moved up by the brightness amount (clamped at 255).
func verifyBrightnessShift(t *testing.T, srcPath, outPath string, amount int) {
	t.Helper()

	src := decodeNRGBA(t, srcPath)
	out := decodeNRGBA(t, outPath)

	for _, pt := range []image.Point{{X: 3, Y: 3}, {X: 100, Y: 50}, {X: 200, Y: 100}} {
		i := src.PixOffset(pt.X, pt.Y)
		for c := 0; c < 3; c++ {
			want := int(src.Pix[i+c]) + amount
			if want > 255 {
				want = 255
			}
			if got := int(out.Pix[i+c]); got != want {
				t.Fatalf("pixel %v channel %d: expected %d, got %d", pt, c, want, got)
			}
		}
		if out.Pix[i+3] != src.Pix[i+3] {
			t.Fatalf("pixel %v: alpha changed", pt)
		}
	}
}

func decodeNRGBA(t *testing.T, path string) *image.NRGBA {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open image %s: %v", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode image %s: %v", path, err)
	}

	dst := image.NewNRGBA(img.Bounds())
	for y := dst.Bounds().Min.Y; y < dst.Bounds().Max.Y; y++ {
		for x := dst.Bounds().Min.X; x < dst.Bounds().Max.X; x++ {
			dst.Set(x, y, img.At(x, y))
		}
	}
	return dst
}
