package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var (
	// ErrLastPage is returned when an edit would leave a document without pages.
	ErrLastPage = errors.New("a PDF must keep at least one page")

	// ErrTooFewInputs is returned when merging fewer than two documents.
	ErrTooFewInputs = errors.New("select at least two PDFs to merge")

	// ErrInvalidRotation is returned for rotations that are not multiples of 90 degrees.
	ErrInvalidRotation = errors.New("rotation must be a multiple of 90 degrees")
)

// PageCount returns the number of pages of the PDF at path.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// Merge concatenates inFiles, in order, into outFile.
func Merge(inFiles []string, outFile string) error {
	if len(inFiles) < 2 {
		return ErrTooFewInputs
	}
	for _, in := range inFiles {
		if err := EnsurePDF(in); err != nil {
			return err
		}
	}
	if err := api.MergeCreateFile(inFiles, outFile, false, NewConfiguration()); err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	return nil
}

// Rotate turns the given pages clockwise by degrees.
func Rotate(inFile, outFile string, pages []int, degrees int) error {
	if degrees%90 != 0 {
		return fmt.Errorf("%d: %w", degrees, ErrInvalidRotation)
	}
	if err := api.RotateFile(inFile, outFile, degrees, pageStrings(pages), NewConfiguration()); err != nil {
		return fmt.Errorf("rotate: %w", err)
	}
	return nil
}

// DeletePages removes the given pages.
func DeletePages(inFile, outFile string, pages []int) error {
	n, err := PageCount(inFile)
	if err != nil {
		return err
	}
	if len(pages) >= n {
		return ErrLastPage
	}
	if err := api.RemovePagesFile(inFile, outFile, pageStrings(pages), NewConfiguration()); err != nil {
		return fmt.Errorf("remove pages: %w", err)
	}
	return nil
}

// ExtractPages writes the given pages, in the given order, to outFile.
func ExtractPages(inFile, outFile string, pages []int) error {
	if len(pages) == 0 {
		return ErrInvalidPageSelection
	}
	if err := api.CollectFile(inFile, outFile, pageStrings(pages), NewConfiguration()); err != nil {
		return fmt.Errorf("collect pages: %w", err)
	}
	return nil
}

// MoveOrder returns the page order after moving page from to position to.
// Both positions are 1-based.
func MoveOrder(pageCount, from, to int) ([]int, error) {
	if from < 1 || from > pageCount || to < 1 || to > pageCount {
		return nil, fmt.Errorf("move %d to %d of %d pages: %w", from, to, pageCount, ErrInvalidPageSelection)
	}
	order := make([]int, 0, pageCount)
	for p := 1; p <= pageCount; p++ {
		if p != from {
			order = append(order, p)
		}
	}
	order = append(order[:to-1], append([]int{from}, order[to-1:]...)...)
	return order, nil
}

// MovePage moves page from to position to.
func MovePage(inFile, outFile string, from, to int) error {
	n, err := PageCount(inFile)
	if err != nil {
		return err
	}
	order, err := MoveOrder(n, from, to)
	if err != nil {
		return err
	}
	return ExtractPages(inFile, outFile, order)
}

// InsertOrder returns the page order that places otherCount appended pages
// before or after page at of a document with pageCount pages.
func InsertOrder(pageCount, otherCount, at int, before bool) ([]int, error) {
	if at < 1 || at > pageCount {
		return nil, fmt.Errorf("insert at %d of %d pages: %w", at, pageCount, ErrInvalidPageSelection)
	}
	split := at
	if before {
		split = at - 1
	}
	order := make([]int, 0, pageCount+otherCount)
	for p := 1; p <= split; p++ {
		order = append(order, p)
	}
	for p := pageCount + 1; p <= pageCount+otherCount; p++ {
		order = append(order, p)
	}
	for p := split + 1; p <= pageCount; p++ {
		order = append(order, p)
	}
	return order, nil
}

// InsertFile inserts every page of otherFile before or after page at.
func InsertFile(inFile, otherFile, outFile string, at int, before bool) error {
	n, err := PageCount(inFile)
	if err != nil {
		return err
	}
	m, err := PageCount(otherFile)
	if err != nil {
		return err
	}
	order, err := InsertOrder(n, m, at, before)
	if err != nil {
		return err
	}

	merged := filepath.Join(os.TempDir(), fmt.Sprintf("merged_%s.pdf", uuid.NewString()))
	defer os.Remove(merged)
	if err := Merge([]string{inFile, otherFile}, merged); err != nil {
		return err
	}
	return ExtractPages(merged, outFile, order)
}
