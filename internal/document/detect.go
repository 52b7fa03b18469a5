package document

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

const pdfMIME = "application/pdf"

// EnsurePDF checks the magic bytes of the file at path.
func EnsurePDF(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect file type: %w", err)
	}
	if !mtype.Is(pdfMIME) {
		return fmt.Errorf("%s is %s: %w", path, mtype.String(), ErrNotPDF)
	}
	return nil
}

// EnsurePDFBytes checks the magic bytes of data.
func EnsurePDFBytes(data []byte) error {
	mtype := mimetype.Detect(data)
	if !mtype.Is(pdfMIME) {
		return fmt.Errorf("input is %s: %w", mtype.String(), ErrNotPDF)
	}
	return nil
}
