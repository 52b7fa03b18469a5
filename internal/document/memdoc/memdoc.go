// Package memdoc is an in-memory document.Document backed by a small JSON
// container format. It stands in for real PDFs wherever the behaviour under
// test is the handling of pages and images rather than PDF syntax.
package memdoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"

	"github.com/disintegration/imaging"

	"pdf-editor-go/internal/document"
)

// Image is a stored image. Data holds JPEG bytes for DCTDecode and raw
// 8-bit RGB samples for FlateDecode.
type Image struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	ColorSpace string `json:"color_space"`
	Filter     string `json:"filter"`
	Data       []byte `json:"data"`
}

// File is the serialized form of a document.
type File struct {
	Pages  [][]int        `json:"pages"`
	Images map[int]*Image `json:"images"`
}

// New returns an empty File.
func New() *File {
	return &File{Images: make(map[int]*Image)}
}

// AddImage stores img under id.
func (f *File) AddImage(id int, img *Image) *File {
	f.Images[id] = img
	return f
}

// AddPage appends a page referencing the given image ids.
func (f *File) AddPage(ids ...int) *File {
	f.Pages = append(f.Pages, append([]int(nil), ids...))
	return f
}

// Header prefixes every serialized file so content sniffing reports a PDF.
const Header = "%PDF-1.7 memdoc\n"

// Bytes serializes f.
func (f *File) Bytes() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return append([]byte(Header), data...), nil
}

// WriteFile serializes f to path.
func (f *File) WriteFile(path string) error {
	data, err := f.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Parse reads a serialized File.
func Parse(data []byte) (*File, error) {
	f := New()
	data = bytes.TrimPrefix(data, []byte(Header))
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse memdoc: %w", err)
	}
	if f.Images == nil {
		f.Images = make(map[int]*Image)
	}
	return f, nil
}

// RawRGB returns an image of deterministic noise stored as FlateDecode samples.
func RawRGB(w, h int, seed int64) *Image {
	data := make([]byte, w*h*3)
	rand.New(rand.NewSource(seed)).Read(data)
	return &Image{Width: w, Height: h, ColorSpace: "DeviceRGB", Filter: "FlateDecode", Data: data}
}

// JPEG returns a noise image of the given size stored as DCTDecode.
func JPEG(w, h int, seed int64) (*Image, error) {
	raw := RawRGB(w, h, seed)
	img, err := raw.decode()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, err
	}
	return &Image{Width: w, Height: h, ColorSpace: "DeviceRGB", Filter: "DCTDecode", Data: buf.Bytes()}, nil
}

func (img *Image) decode() (image.Image, error) {
	switch img.Filter {
	case "DCTDecode":
		return imaging.Decode(bytes.NewReader(img.Data))
	case "FlateDecode":
		if img.ColorSpace != "DeviceRGB" {
			return nil, fmt.Errorf("colour space %q: %w", img.ColorSpace, document.ErrUnsupportedImage)
		}
		if len(img.Data) < img.Width*img.Height*3 {
			return nil, fmt.Errorf("short sample data")
		}
		out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
		for i, j := 0, 0; i < img.Width*img.Height; i, j = i+1, j+3 {
			copy(out.Pix[i*4:i*4+3], img.Data[j:j+3])
			out.Pix[i*4+3] = 0xff
		}
		return out, nil
	default:
		return nil, fmt.Errorf("filter %q: %w", img.Filter, document.ErrUnsupportedImage)
	}
}

// Opener opens memdoc files and counts how many documents are open at once.
type Opener struct {
	mu      sync.Mutex
	opened  int
	live    int
	maxLive int
}

// Open reads the memdoc file at path.
func (o *Opener) Open(path string) (document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return o.OpenBytes(data)
}

// OpenBytes parses a serialized File.
func (o *Opener) OpenBytes(data []byte) (document.Document, error) {
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.opened++
	o.live++
	o.maxLive = max(o.maxLive, o.live)
	o.mu.Unlock()
	return &Doc{file: f, opener: o}, nil
}

// Opened returns the number of documents opened so far.
func (o *Opener) Opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}

// MaxLive returns the largest number of documents open at the same time.
func (o *Opener) MaxLive() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxLive
}

// Doc is an open memdoc document.
type Doc struct {
	file     *File
	opener   *Opener
	closed   bool
	replaced []int
}

// Replaced returns the ids replaced so far, in call order.
func (d *Doc) Replaced() []int {
	return d.replaced
}

func (d *Doc) PageCount() int {
	return len(d.file.Pages)
}

func (d *Doc) PageImageIDs(pageNr int) ([]int, error) {
	if pageNr < 1 || pageNr > len(d.file.Pages) {
		return nil, fmt.Errorf("page %d out of range", pageNr)
	}
	return append([]int(nil), d.file.Pages[pageNr-1]...), nil
}

func (d *Doc) Image(id int) (document.ImageInfo, bool) {
	img, ok := d.file.Images[id]
	if !ok {
		return document.ImageInfo{}, false
	}
	return document.ImageInfo{
		ID:               id,
		Width:            img.Width,
		Height:           img.Height,
		ColorSpace:       img.ColorSpace,
		BitsPerComponent: 8,
		Filter:           img.Filter,
		Size:             len(img.Data),
	}, true
}

func (d *Doc) DecodeImage(id int) (image.Image, error) {
	img, ok := d.file.Images[id]
	if !ok {
		return nil, fmt.Errorf("image %d: %w", id, document.ErrImageNotFound)
	}
	return img.decode()
}

func (d *Doc) ReplaceImage(id int, data []byte, width, height int) error {
	if _, ok := d.file.Images[id]; !ok {
		return fmt.Errorf("image %d: %w", id, document.ErrImageNotFound)
	}
	d.file.Images[id] = &Image{
		Width:      width,
		Height:     height,
		ColorSpace: "DeviceRGB",
		Filter:     "DCTDecode",
		Data:       data,
	}
	d.replaced = append(d.replaced, id)
	return nil
}

func (d *Doc) Save(w io.Writer, opts document.SaveOptions) error {
	out := &File{Pages: d.file.Pages, Images: d.file.Images}
	if opts.Cleanup {
		used := make(map[int]bool)
		for _, ids := range d.file.Pages {
			for _, id := range ids {
				used[id] = true
			}
		}
		out.Images = make(map[int]*Image, len(used))
		ids := make([]int, 0, len(d.file.Images))
		for id := range d.file.Images {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			if used[id] {
				out.Images[id] = d.file.Images[id]
			}
		}
	}
	data, err := out.Bytes()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (d *Doc) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.opener.mu.Lock()
	d.opener.live--
	d.opener.mu.Unlock()
	return nil
}
