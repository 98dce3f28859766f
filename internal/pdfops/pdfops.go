// Package pdfops applies page-level PDF operations (delete, extract, rotate)
// to in-memory documents. PDF structure handling is delegated to pdfcpu; this
// package only decides which pages an operation touches, via the lenient
// range expressions of internal/pagerange.
package pdfops

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/pagepress/pagepress/internal/pagerange"
)

var ErrNoPagesSelected = errors.New("page expression selects no pages")

// PageCount returns the number of pages in the document.
func PageCount(doc []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(doc), nil)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}

// DeletePages removes the pages selected by expr. An expression selecting no
// pages leaves the document unchanged; an expression selecting every page is
// an error, since a PDF cannot be left empty.
func DeletePages(doc []byte, expr string) ([]byte, error) {
	total, err := PageCount(doc)
	if err != nil {
		return nil, err
	}

	selected := pagerange.Resolve(expr, total, false)
	if selected.Len() == 0 {
		out := make([]byte, len(doc))
		copy(out, doc)
		return out, nil
	}
	if selected.Len() == total {
		return nil, fmt.Errorf("page expression %q deletes all %d pages", expr, total)
	}

	var buf bytes.Buffer
	if err := api.RemovePages(bytes.NewReader(doc), &buf, selection(selected.Sorted()), nil); err != nil {
		return nil, fmt.Errorf("remove pages: %w", err)
	}
	return buf.Bytes(), nil
}

// ExtractPages keeps only the pages selected by expr. With emptyMeansAll an
// empty expression keeps the whole document; without it an empty selection is
// an error.
func ExtractPages(doc []byte, expr string, emptyMeansAll bool) ([]byte, error) {
	total, err := PageCount(doc)
	if err != nil {
		return nil, err
	}

	selected := pagerange.Resolve(expr, total, emptyMeansAll)
	if selected.Len() == 0 {
		return nil, fmt.Errorf("%w: %q over %d pages", ErrNoPagesSelected, expr, total)
	}

	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(doc), &buf, selection(selected.Sorted()), nil); err != nil {
		return nil, fmt.Errorf("trim pages: %w", err)
	}
	return buf.Bytes(), nil
}

// RotatePages rotates the selected pages clockwise by rotation degrees
// (90, 180 or 270). An empty expression rotates every page.
func RotatePages(doc []byte, expr string, rotation int) ([]byte, error) {
	if rotation != 90 && rotation != 180 && rotation != 270 {
		return nil, fmt.Errorf("unsupported rotation: %d", rotation)
	}

	total, err := PageCount(doc)
	if err != nil {
		return nil, err
	}

	selected := pagerange.Resolve(expr, total, true)
	if selected.Len() == 0 {
		return nil, fmt.Errorf("%w: %q over %d pages", ErrNoPagesSelected, expr, total)
	}

	var buf bytes.Buffer
	if err := api.Rotate(bytes.NewReader(doc), &buf, rotation, selection(selected.Sorted()), nil); err != nil {
		return nil, fmt.Errorf("rotate pages: %w", err)
	}
	return buf.Bytes(), nil
}

// selection converts zero-based indices to the one-based page selection
// strings pdfcpu expects.
func selection(pages []int) []string {
	sel := make([]string, 0, len(pages))
	for _, page := range pages {
		sel = append(sel, strconv.Itoa(page+1))
	}
	return sel
}
