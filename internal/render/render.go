package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"

	"pdf-editor-go/internal/document"
)

// DefaultDPI renders pages at twice the 72 DPI user-space resolution.
const DefaultDPI = 144

// ErrUnsupportedFormat is returned for output formats other than PNG, JPEG
// and DOCX.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Options controls page rendering.
type Options struct {
	DPI     float64
	Quality int
}

// DefaultOptions returns 144 DPI with JPEG quality 90.
func DefaultOptions() Options {
	return Options{DPI: DefaultDPI, Quality: 90}
}

// Format returns the imaging format for an output path's extension. DOCX
// output embeds the page as PNG.
func Format(path string) (imaging.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".docx":
		return imaging.PNG, nil
	case ".jpg", ".jpeg":
		return imaging.JPEG, nil
	default:
		return 0, fmt.Errorf("%s: %w", filepath.Ext(path), ErrUnsupportedFormat)
	}
}

// Page renders page pageNr (1-based) of the PDF at path into an image file
// at out. The format follows the extension of out; a .docx file gets the
// rendering as a picture DOCXWidthInches wide.
func Page(path string, pageNr int, out string, opts Options) error {
	format, err := Format(out)
	if err != nil {
		return err
	}
	if err := document.EnsurePDF(path); err != nil {
		return err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if pageNr < 1 || pageNr > doc.NumPage() {
		return fmt.Errorf("page %d of %d: %w", pageNr, doc.NumPage(), document.ErrInvalidPageSelection)
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(pageNr-1, opts.DPI)
	if err != nil {
		return fmt.Errorf("failed to render page %d: %w", pageNr, err)
	}

	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	if isDOCX(out) {
		if err := WriteDOCX(f, img, pageNr); err != nil {
			return err
		}
		return f.Sync()
	}

	var encOpts []imaging.EncodeOption
	if format == imaging.JPEG {
		encOpts = append(encOpts, imaging.JPEGQuality(min(max(opts.Quality, 1), 100)))
	}
	if err := imaging.Encode(f, img, format, encOpts...); err != nil {
		return fmt.Errorf("failed to encode page %d: %w", pageNr, err)
	}
	return f.Sync()
}

func isDOCX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".docx")
}
