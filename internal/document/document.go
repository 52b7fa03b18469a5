package document

import (
	"errors"
	"image"
	"io"
)

var (
	// ErrUnsupportedImage is returned by DecodeImage when the stored image uses a
	// filter chain, colour space or bit depth that cannot be turned into pixels.
	ErrUnsupportedImage = errors.New("unsupported image encoding")

	// ErrImageNotFound is returned when an identifier does not resolve to an image stream.
	ErrImageNotFound = errors.New("image not found")

	// ErrNotPDF is returned when an input file is not a PDF document.
	ErrNotPDF = errors.New("not a PDF document")
)

// ImageInfo describes an embedded raster image without decoding its pixels.
type ImageInfo struct {
	ID               int
	Width            int
	Height           int
	ColorSpace       string
	BitsPerComponent int
	Filter           string
	Size             int
}

// SaveOptions controls how a Document is serialized.
type SaveOptions struct {
	// Cleanup drops unreferenced and duplicate objects.
	Cleanup bool
	// Deflate compresses streams that are stored without a filter.
	Deflate bool
}

// Document is an open PDF owned by a single caller.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int
	// PageImageIDs returns the image identifiers referenced by a 1-based page,
	// in a stable order. Identifiers may be dangling.
	PageImageIDs(pageNr int) ([]int, error)
	// Image reports the image stored under id, or false if id is not an image
	// in the document's cross-reference table.
	Image(id int) (ImageInfo, bool)
	// DecodeImage returns the pixels of the image stored under id.
	DecodeImage(id int) (image.Image, error)
	// ReplaceImage stores JPEG data of the given dimensions under id.
	ReplaceImage(id int, jpeg []byte, width, height int) error
	// Save serializes the document to w.
	Save(w io.Writer, opts SaveOptions) error
	// Close releases the document and any file handle behind it.
	Close() error
}

// Opener opens Documents from a path or from memory.
type Opener interface {
	Open(path string) (Document, error)
	OpenBytes(data []byte) (Document, error)
}
