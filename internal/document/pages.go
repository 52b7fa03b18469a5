package document

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidPageSelection is returned for malformed or empty page selections.
var ErrInvalidPageSelection = errors.New("invalid page selection")

// ParsePageSelection parses selections like "1,3,5-7" against a document of
// pageCount pages. Whitespace is ignored, pages outside 1..pageCount are
// dropped, and the result is sorted and unique. An empty string selects
// every page.
func ParsePageSelection(sel string, pageCount int) ([]int, error) {
	sel = strings.Join(strings.Fields(sel), "")
	if sel == "" || sel == "all" {
		pages := make([]int, pageCount)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, nil
	}

	set := make(map[int]bool)
	for _, part := range strings.Split(sel, ",") {
		if part == "" {
			return nil, fmt.Errorf("empty entry in %q: %w", sel, ErrInvalidPageSelection)
		}
		if from, to, isRange := strings.Cut(part, "-"); isRange {
			start, err := strconv.Atoi(from)
			if err != nil {
				return nil, fmt.Errorf("range start %q: %w", from, ErrInvalidPageSelection)
			}
			end, err := strconv.Atoi(to)
			if err != nil {
				return nil, fmt.Errorf("range end %q: %w", to, ErrInvalidPageSelection)
			}
			if start > end {
				return nil, fmt.Errorf("range %d-%d: %w", start, end, ErrInvalidPageSelection)
			}
			for p := max(start, 1); p <= min(end, pageCount); p++ {
				set[p] = true
			}
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("page %q: %w", part, ErrInvalidPageSelection)
		}
		set[p] = true
	}

	pages := make([]int, 0, len(set))
	for p := range set {
		if p >= 1 && p <= pageCount {
			pages = append(pages, p)
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages of 1-%d in %q: %w", pageCount, sel, ErrInvalidPageSelection)
	}
	sort.Ints(pages)
	return pages, nil
}

// pageStrings converts page numbers into pdfcpu page selection strings.
func pageStrings(pages []int) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = strconv.Itoa(p)
	}
	return out
}
