// Package pdftest builds small real PDF files for tests. Images are imported
// with pdfcpu, one page per image, and can be rewritten afterwards to use
// ICC-based or indexed colour spaces.
package pdftest

import (
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Noise returns a diagonal gradient with per-channel noise of +-amp.
func Noise(w, h, amp int, seed int64) *image.NRGBA {
	rnd := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := (x + y) * 255 / (w + h)
			p := img.Pix[y*img.Stride+x*4:]
			for c := 0; c < 3; c++ {
				v := base + c*40
				if amp > 0 {
					v += rnd.Intn(2*amp+1) - amp
				}
				p[c] = uint8(min(max(v, 0), 255))
			}
			p[3] = 0xff
		}
	}
	return img
}

func configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// ImagesPDF writes a PDF named name into dir with one page per image. The
// images pass through format (PNG or JPEG) on their way in, so PNG sources
// become FlateDecode streams and JPEG sources DCTDecode streams.
func ImagesPDF(dir, name string, format imaging.Format, imgs ...image.Image) (string, error) {
	ext := ".png"
	if format == imaging.JPEG {
		ext = ".jpg"
	}

	files := make([]string, len(imgs))
	for i, img := range imgs {
		files[i] = filepath.Join(dir, fmt.Sprintf("%s_img%d%s", name, i, ext))
		f, err := os.Create(files[i])
		if err != nil {
			return "", err
		}
		err = imaging.Encode(f, img, format, imaging.JPEGQuality(90))
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", files[i], err)
		}
	}

	out := filepath.Join(dir, name)
	if err := api.ImportImagesFile(files, out, pdfcpu.DefaultImportConfig(), configuration()); err != nil {
		return "", fmt.Errorf("import images: %w", err)
	}
	for _, f := range files {
		_ = os.Remove(f)
	}
	return out, nil
}

// PagesPDF writes a PDF of n pages, each holding a small distinct image.
func PagesPDF(dir, name string, n int) (string, error) {
	imgs := make([]image.Image, n)
	for i := range imgs {
		imgs[i] = Noise(120+i*10, 90, 0, int64(i))
	}
	return ImagesPDF(dir, name, imaging.PNG, imgs...)
}

// SetICCBased gives every image of the PDF at path an ICCBased colour space
// whose profile declares n components. The profile body is a placeholder.
func SetICCBased(path string, n int) error {
	return rewriteImages(path, func(xt *model.XRefTable, sd *types.StreamDict) error {
		profile, err := xt.NewStreamDictForBuf([]byte("placeholder icc profile"))
		if err != nil {
			return err
		}
		profile.InsertInt("N", n)
		if err := profile.Encode(); err != nil {
			return err
		}
		ref, err := xt.IndRefForNewObject(*profile)
		if err != nil {
			return err
		}
		sd.Update("ColorSpace", types.Array{types.Name("ICCBased"), *ref})
		return nil
	})
}

// IndexedPDF writes a one-page PDF holding a w x h image of vertical stripes
// stored as 8-bit indices into palette over DeviceRGB.
func IndexedPDF(dir, name string, w, h int, palette []color.NRGBA) (string, error) {
	stripe := func(x int) int { return (x / 10) % len(palette) }

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	indices := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := stripe(x)
			img.SetNRGBA(x, y, palette[i])
			indices[y*w+x] = byte(i)
		}
	}
	path, err := ImagesPDF(dir, name, imaging.PNG, img)
	if err != nil {
		return "", err
	}

	lookup := make([]byte, 0, len(palette)*3)
	for _, c := range palette {
		lookup = append(lookup, c.R, c.G, c.B)
	}
	err = rewriteImages(path, func(xt *model.XRefTable, sd *types.StreamDict) error {
		sd.Update("ColorSpace", types.Array{
			types.Name("Indexed"),
			types.Name("DeviceRGB"),
			types.Integer(len(palette) - 1),
			types.HexLiteral(hex.EncodeToString(lookup)),
		})
		sd.Update("BitsPerComponent", types.Integer(8))
		sd.Delete("DecodeParms")
		sd.Content = indices
		sd.Raw = nil
		sd.FilterPipeline = []types.PDFFilter{{Name: "FlateDecode"}}
		sd.Update("Filter", types.Name("FlateDecode"))
		return sd.Encode()
	})
	return path, err
}

// rewriteImages applies fn to every image XObject of the PDF at path that is
// not used as a soft mask, then writes the file back.
func rewriteImages(path string, fn func(xt *model.XRefTable, sd *types.StreamDict) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	ctx, err := api.ReadContext(f, configuration())
	f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	masks := make(map[int]bool)
	var ids []int
	for id, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if ref := sd.IndirectRefEntry("SMask"); ref != nil {
			masks[ref.ObjectNumber.Value()] = true
		}
		if st := sd.Subtype(); st != nil && *st == "Image" {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	for _, id := range ids {
		if masks[id] {
			continue
		}
		entry := ctx.Table[id]
		sd := entry.Object.(types.StreamDict)
		if err := fn(ctx.XRefTable, &sd); err != nil {
			return fmt.Errorf("object %d: %w", id, err)
		}
		entry.Object = sd
	}

	tmp := path + ".tmp"
	if err := api.WriteContextFile(ctx, tmp); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
