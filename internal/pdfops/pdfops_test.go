package pdfops

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPageCount(t *testing.T) {
	doc := buildTestPDF(t, 5)
	n, err := PageCount(doc)
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 pages, got %d", n)
	}
}

func TestDeletePages(t *testing.T) {
	doc := buildTestPDF(t, 5)

	out, err := DeletePages(doc, "2-3")
	if err != nil {
		t.Fatalf("delete pages: %v", err)
	}
	n, err := PageCount(out)
	if err != nil {
		t.Fatalf("count result: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 pages after delete, got %d", n)
	}
}

func TestDeletePagesEmptyExpressionIsNoop(t *testing.T) {
	doc := buildTestPDF(t, 3)
	out, err := DeletePages(doc, "")
	if err != nil {
		t.Fatalf("delete pages: %v", err)
	}
	if !bytes.Equal(out, doc) {
		t.Fatal("expected empty expression to leave document unchanged")
	}
}

func TestDeletePagesRefusesToDeleteAll(t *testing.T) {
	doc := buildTestPDF(t, 2)
	if _, err := DeletePages(doc, "1-2"); err == nil {
		t.Fatal("expected error when deleting every page")
	}
}

func TestDeletePagesJunkTokensAreDropped(t *testing.T) {
	doc := buildTestPDF(t, 4)
	out, err := DeletePages(doc, "2-1,99,abc,3")
	if err != nil {
		t.Fatalf("delete pages: %v", err)
	}
	n, err := PageCount(out)
	if err != nil {
		t.Fatalf("count result: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected only page 3 removed, got %d pages", n)
	}
}

func TestExtractPages(t *testing.T) {
	doc := buildTestPDF(t, 5)

	out, err := ExtractPages(doc, "1-3,5", false)
	if err != nil {
		t.Fatalf("extract pages: %v", err)
	}
	n, err := PageCount(out)
	if err != nil {
		t.Fatalf("count result: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 extracted pages, got %d", n)
	}
}

func TestExtractPagesEmptyConvention(t *testing.T) {
	doc := buildTestPDF(t, 3)

	out, err := ExtractPages(doc, "", true)
	if err != nil {
		t.Fatalf("extract with emptyMeansAll: %v", err)
	}
	n, err := PageCount(out)
	if err != nil {
		t.Fatalf("count result: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected all 3 pages kept, got %d", n)
	}

	if _, err := ExtractPages(doc, "", false); !errors.Is(err, ErrNoPagesSelected) {
		t.Fatalf("expected ErrNoPagesSelected, got %v", err)
	}
}

func TestRotatePages(t *testing.T) {
	doc := buildTestPDF(t, 2)

	out, err := RotatePages(doc, "1", 90)
	if err != nil {
		t.Fatalf("rotate pages: %v", err)
	}
	n, err := PageCount(out)
	if err != nil {
		t.Fatalf("count result: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected page count unchanged, got %d", n)
	}

	if _, err := RotatePages(doc, "1", 45); err == nil {
		t.Fatal("expected error for unsupported rotation")
	}
}

func TestSelectionIsOneBased(t *testing.T) {
	sel := selection([]int{0, 2, 4})
	want := []string{"1", "3", "5"}
	if len(sel) != len(want) {
		t.Fatalf("expected %v, got %v", want, sel)
	}
	for i := range want {
		if sel[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, sel)
		}
	}
}

// buildTestPDF assembles a minimal n-page PDF with a correct xref table.
func buildTestPDF(t *testing.T, pages int) []byte {
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
