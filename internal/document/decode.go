package document

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// colorSpace is an image colour space reduced to what decoding needs.
type colorSpace struct {
	// family is the name written in the document, e.g. ICCBased or Indexed.
	family string
	// components of the underlying device space: 1 gray, 3 rgb, 4 cmyk.
	components int
	// lookup and hival are set for Indexed spaces. Entries are in the base space.
	lookup []byte
	hival  int
}

func (cs colorSpace) indexed() bool {
	return cs.lookup != nil
}

// deviceSpace maps a colour space name to its component count.
func deviceSpace(name string) colorSpace {
	cs := colorSpace{family: name}
	switch name {
	case "DeviceGray", "G", "CalGray":
		cs.components = 1
	case "DeviceRGB", "RGB", "CalRGB":
		cs.components = 3
	case "DeviceCMYK", "CMYK":
		cs.components = 4
	}
	return cs
}

// decodeStream turns an image stream into pixels. JPEG streams, 8-bit
// gray or RGB samples and 1/2/4/8-bit indexed samples are understood.
func decodeStream(sd *types.StreamDict, cs colorSpace) (image.Image, error) {
	if sd.HasSoleFilterNamed("DCTDecode") {
		if cs.components == 4 {
			return nil, fmt.Errorf("cmyk jpeg: %w", ErrUnsupportedImage)
		}
		img, err := imaging.Decode(bytes.NewReader(sd.Raw))
		if err != nil {
			return nil, fmt.Errorf("decode jpeg: %w", err)
		}
		return img, nil
	}

	for _, f := range sd.FilterPipeline {
		switch f.Name {
		case "DCTDecode", "JPXDecode", "JBIG2Decode", "CCITTFaxDecode":
			return nil, fmt.Errorf("filter %s: %w", f.Name, ErrUnsupportedImage)
		}
	}

	var w, h, bpc int
	if v := sd.IntEntry("Width"); v != nil {
		w = *v
	}
	if v := sd.IntEntry("Height"); v != nil {
		h = *v
	}
	if v := sd.IntEntry("BitsPerComponent"); v != nil {
		bpc = *v
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", w, h)
	}

	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("decode stream: %w", err)
	}
	return samplesToImage(sd.Content, w, h, bpc, cs)
}

// samplesToImage wraps raw samples in an image.
func samplesToImage(data []byte, w, h, bpc int, cs colorSpace) (image.Image, error) {
	if cs.indexed() {
		return indexedToImage(data, w, h, bpc, cs)
	}
	if bpc != 8 {
		return nil, fmt.Errorf("%d bits per component: %w", bpc, ErrUnsupportedImage)
	}

	switch cs.components {
	case 3:
		if len(data) < w*h*3 {
			return nil, fmt.Errorf("short rgb data: %d bytes for %dx%d", len(data), w, h)
		}
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		for i, j := 0, 0; i < w*h; i, j = i+1, j+3 {
			img.Pix[i*4] = data[j]
			img.Pix[i*4+1] = data[j+1]
			img.Pix[i*4+2] = data[j+2]
			img.Pix[i*4+3] = 0xff
		}
		return img, nil
	case 1:
		if len(data) < w*h {
			return nil, fmt.Errorf("short gray data: %d bytes for %dx%d", len(data), w, h)
		}
		img := image.NewGray(image.Rect(0, 0, w, h))
		copy(img.Pix, data[:w*h])
		return img, nil
	default:
		return nil, fmt.Errorf("colour space %q: %w", cs.family, ErrUnsupportedImage)
	}
}

// indexedToImage expands palette indices through the lookup table. Rows
// start on byte boundaries.
func indexedToImage(data []byte, w, h, bpc int, cs colorSpace) (image.Image, error) {
	switch bpc {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("%d bits per index: %w", bpc, ErrUnsupportedImage)
	}
	n := cs.components
	if n != 1 && n != 3 {
		return nil, fmt.Errorf("indexed base with %d components: %w", n, ErrUnsupportedImage)
	}
	if len(cs.lookup) < (cs.hival+1)*n {
		return nil, fmt.Errorf("lookup table of %d bytes for hival %d", len(cs.lookup), cs.hival)
	}

	stride := (w*bpc + 7) / 8
	if len(data) < stride*h {
		return nil, fmt.Errorf("short indexed data: %d bytes for %dx%d", len(data), w, h)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	mask := 1<<bpc - 1
	for y := 0; y < h; y++ {
		row := data[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			bit := x * bpc
			idx := int(row[bit/8]>>(8-bpc-bit%8)) & mask
			off := min(idx, cs.hival) * n
			p := img.Pix[y*img.Stride+x*4:]
			if n == 3 {
				p[0], p[1], p[2] = cs.lookup[off], cs.lookup[off+1], cs.lookup[off+2]
			} else {
				p[0], p[1], p[2] = cs.lookup[off], cs.lookup[off], cs.lookup[off]
			}
			p[3] = 0xff
		}
	}
	return img, nil
}
