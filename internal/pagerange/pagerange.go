// Package pagerange parses human-authored page range expressions such as
// "1-3,5,7-9" into zero-based page index sets. Parsing is deliberately
// lenient: malformed, reversed or out-of-bounds tokens contribute no pages
// instead of raising an error, mirroring forgiving text-field UX. Callers
// that need strict validation should echo a cleaned-up expression back to the
// user; the parser itself never rejects input.
package pagerange

import (
	"sort"
	"strconv"
	"strings"
)

// PageSet is a set of unique zero-based page indices, all known to be inside
// [0, totalPages) for the page count they were parsed against.
type PageSet map[int]struct{}

// Parse converts a comma-separated expression of one-based page numbers and
// inclusive dashed ranges into a zero-based index set bounded by totalPages.
// An empty expression yields an empty set; what an empty set means (all pages
// or none) is the caller's convention, chosen through Resolve.
func Parse(expr string, totalPages int) PageSet {
	set := make(PageSet)
	if totalPages < 1 {
		return set
	}

	for _, token := range strings.Split(expr, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if start, end, ok := splitRange(token); ok {
			if start < 1 {
				start = 1
			}
			if end > totalPages {
				end = totalPages
			}
			// A reversed range iterates zero times, which is the
			// intended "contributes nothing" outcome.
			for page := start; page <= end; page++ {
				set[page-1] = struct{}{}
			}
			continue
		}

		page, err := strconv.Atoi(token)
		if err != nil || page < 1 || page > totalPages {
			continue
		}
		set[page-1] = struct{}{}
	}
	return set
}

// Resolve parses expr and applies the caller's empty-expression convention:
// delete-style callers pass emptyMeansAll=false (empty selects nothing),
// extract-style callers pass emptyMeansAll=true (empty selects every page).
func Resolve(expr string, totalPages int, emptyMeansAll bool) PageSet {
	if strings.TrimSpace(expr) == "" && emptyMeansAll {
		return All(totalPages)
	}
	return Parse(expr, totalPages)
}

// All returns the full page set for a document of totalPages pages.
func All(totalPages int) PageSet {
	set := make(PageSet, totalPages)
	for i := 0; i < totalPages; i++ {
		set[i] = struct{}{}
	}
	return set
}

func (s PageSet) Contains(page int) bool {
	_, ok := s[page]
	return ok
}

func (s PageSet) Len() int {
	return len(s)
}

// Sorted returns the indices in ascending order.
func (s PageSet) Sorted() []int {
	pages := make([]int, 0, len(s))
	for page := range s {
		pages = append(pages, page)
	}
	sort.Ints(pages)
	return pages
}

// Complement returns the pages of a totalPages document not present in s, in
// ascending order. Page-delete callers use this to keep everything else.
func (s PageSet) Complement(totalPages int) []int {
	pages := make([]int, 0, totalPages-len(s))
	for i := 0; i < totalPages; i++ {
		if !s.Contains(i) {
			pages = append(pages, i)
		}
	}
	return pages
}

func splitRange(token string) (start, end int, ok bool) {
	dash := strings.Index(token, "-")
	if dash < 0 {
		return 0, 0, false
	}
	start, err := strconv.Atoi(strings.TrimSpace(token[:dash]))
	if err != nil {
		return 0, 0, false
	}
	end, err = strconv.Atoi(strings.TrimSpace(token[dash+1:]))
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}
