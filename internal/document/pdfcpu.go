package document

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// maxFormDepth bounds recursion into nested form XObjects.
const maxFormDepth = 8

// PDFCPUOpener opens documents with pdfcpu.
type PDFCPUOpener struct {
	conf *model.Configuration
}

// NewPDFCPUOpener returns an opener using a relaxed pdfcpu configuration.
func NewPDFCPUOpener() *PDFCPUOpener {
	return &PDFCPUOpener{conf: NewConfiguration()}
}

// NewConfiguration returns the pdfcpu configuration used across the repository.
func NewConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Open reads the PDF at path. The file stays open until Close.
func (o *PDFCPUOpener) Open(path string) (Document, error) {
	if err := EnsurePDF(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	ctx, err := o.read(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &pdfDoc{ctx: ctx, file: f}, nil
}

// OpenBytes reads a PDF held in memory.
func (o *PDFCPUOpener) OpenBytes(data []byte) (Document, error) {
	if err := EnsurePDFBytes(data); err != nil {
		return nil, err
	}
	ctx, err := o.read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return &pdfDoc{ctx: ctx}, nil
}

func (o *PDFCPUOpener) read(rs io.ReadSeeker) (*model.Context, error) {
	ctx, err := api.ReadContext(rs, o.conf)
	if err != nil {
		return nil, err
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return ctx, nil
}

type pdfDoc struct {
	ctx  *model.Context
	file *os.File
}

func (d *pdfDoc) PageCount() int {
	return d.ctx.PageCount
}

func (d *pdfDoc) PageImageIDs(pageNr int) ([]int, error) {
	pageDict, _, inh, err := d.ctx.PageDict(pageNr, true)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNr, err)
	}
	if pageDict == nil {
		return nil, fmt.Errorf("page %d: no page dict", pageNr)
	}

	var res types.Dict
	if inh != nil && inh.Resources != nil {
		res = inh.Resources
	} else if o, found := pageDict.Find("Resources"); found {
		if res, err = d.ctx.DereferenceDict(o); err != nil {
			return nil, fmt.Errorf("page %d resources: %w", pageNr, err)
		}
	}

	var ids []int
	d.collectImages(res, map[int]bool{}, &ids, 0)
	return ids, nil
}

// collectImages appends the object numbers of image XObjects found in res,
// descending into form XObjects.
func (d *pdfDoc) collectImages(res types.Dict, forms map[int]bool, ids *[]int, depth int) {
	if res == nil || depth > maxFormDepth {
		return
	}
	o, found := res.Find("XObject")
	if !found {
		return
	}
	xobjs, err := d.ctx.DereferenceDict(o)
	if err != nil || xobjs == nil {
		return
	}

	names := make([]string, 0, len(xobjs))
	for name := range xobjs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref, ok := xobjs[name].(types.IndirectRef)
		if !ok {
			continue
		}
		objNr := ref.ObjectNumber.Value()
		sd, _, err := d.ctx.DereferenceStreamDict(ref)
		if err != nil || sd == nil {
			// Dangling references are reported so the caller can skip them.
			*ids = append(*ids, objNr)
			continue
		}
		switch subtype(sd) {
		case "Image":
			*ids = append(*ids, objNr)
		case "Form":
			if forms[objNr] {
				continue
			}
			forms[objNr] = true
			if ro, found := sd.Find("Resources"); found {
				if fres, err := d.ctx.DereferenceDict(ro); err == nil {
					d.collectImages(fres, forms, ids, depth+1)
				}
			}
		}
	}
}

func (d *pdfDoc) streamDict(id int) (*types.StreamDict, *model.XRefTableEntry, bool) {
	entry, found := d.ctx.Table[id]
	if !found || entry == nil || entry.Free || entry.Object == nil {
		return nil, nil, false
	}
	ref := types.IndirectRef{ObjectNumber: types.Integer(id)}
	if entry.Generation != nil {
		ref.GenerationNumber = types.Integer(*entry.Generation)
	}
	sd, _, err := d.ctx.DereferenceStreamDict(ref)
	if err != nil || sd == nil {
		return nil, nil, false
	}
	return sd, entry, true
}

func (d *pdfDoc) Image(id int) (ImageInfo, bool) {
	sd, _, ok := d.streamDict(id)
	if !ok || subtype(sd) != "Image" {
		return ImageInfo{}, false
	}
	info := ImageInfo{
		ID:         id,
		ColorSpace: d.colorSpace(sd).family,
		Size:       len(sd.Raw),
	}
	if w := sd.IntEntry("Width"); w != nil {
		info.Width = *w
	}
	if h := sd.IntEntry("Height"); h != nil {
		info.Height = *h
	}
	if bpc := sd.IntEntry("BitsPerComponent"); bpc != nil {
		info.BitsPerComponent = *bpc
	}
	if n := len(sd.FilterPipeline); n > 0 {
		info.Filter = sd.FilterPipeline[n-1].Name
	}
	return info, true
}

func (d *pdfDoc) DecodeImage(id int) (image.Image, error) {
	sd, _, ok := d.streamDict(id)
	if !ok || subtype(sd) != "Image" {
		return nil, fmt.Errorf("image %d: %w", id, ErrImageNotFound)
	}
	return decodeStream(sd, d.colorSpace(sd))
}

func (d *pdfDoc) ReplaceImage(id int, data []byte, width, height int) error {
	sd, entry, ok := d.streamDict(id)
	if !ok || subtype(sd) != "Image" {
		return fmt.Errorf("image %d: %w", id, ErrImageNotFound)
	}

	dict := types.Dict{}
	for k, v := range sd.Dict {
		dict[k] = v
	}
	for _, k := range []string{"DecodeParms", "Decode", "Length", "Filter"} {
		dict.Delete(k)
	}
	// A colour-key mask refers to the old sample values.
	if m, found := dict.Find("Mask"); found {
		if _, isArray := m.(types.Array); isArray {
			dict.Delete("Mask")
		}
	}
	dict.Update("Width", types.Integer(width))
	dict.Update("Height", types.Integer(height))
	dict.Update("ColorSpace", types.Name("DeviceRGB"))
	dict.Update("BitsPerComponent", types.Integer(8))
	dict.Update("Filter", types.Name("DCTDecode"))
	dict.Update("Length", types.Integer(len(data)))

	length := int64(len(data))
	nsd := types.NewStreamDict(dict, 0, &length, nil, []types.PDFFilter{{Name: "DCTDecode"}})
	nsd.Raw = data
	entry.Object = nsd
	return nil
}

func (d *pdfDoc) Save(w io.Writer, opts SaveOptions) error {
	if opts.Deflate {
		if err := d.deflateStreams(); err != nil {
			return fmt.Errorf("deflate: %w", err)
		}
		d.ctx.WriteObjectStream = true
		d.ctx.WriteXRefStream = true
	}
	if opts.Cleanup {
		if err := api.OptimizeContext(d.ctx); err != nil {
			return fmt.Errorf("optimize: %w", err)
		}
	}
	if err := api.WriteContext(d.ctx, w); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// deflateStreams flate-encodes every stream stored without a filter.
func (d *pdfDoc) deflateStreams() error {
	ids := make([]int, 0, len(d.ctx.Table))
	for id := range d.ctx.Table {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		entry := d.ctx.Table[id]
		if entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok || len(sd.FilterPipeline) > 0 || len(sd.Raw) == 0 {
			continue
		}
		sd.Content = sd.Raw
		sd.FilterPipeline = []types.PDFFilter{{Name: "FlateDecode"}}
		sd.InsertName("Filter", "FlateDecode")
		if err := sd.Encode(); err != nil {
			return fmt.Errorf("object %d: %w", id, err)
		}
		length := int64(len(sd.Raw))
		sd.StreamLength = &length
		sd.Update("Length", types.Integer(len(sd.Raw)))
		entry.Object = sd
	}
	return nil
}

func (d *pdfDoc) Close() error {
	d.ctx = nil
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func subtype(sd *types.StreamDict) string {
	if st := sd.Subtype(); st != nil {
		return *st
	}
	return ""
}

// colorSpace resolves the colour space of an image, following indirect
// references, ICC profiles and Indexed lookup tables.
func (d *pdfDoc) colorSpace(sd *types.StreamDict) colorSpace {
	o, found := sd.Find("ColorSpace")
	if !found {
		return colorSpace{}
	}
	return d.resolveColorSpace(o, 0)
}

func (d *pdfDoc) resolveColorSpace(o types.Object, depth int) colorSpace {
	o, err := d.ctx.Dereference(o)
	if err != nil || o == nil || depth > 2 {
		return colorSpace{}
	}

	switch cs := o.(type) {
	case types.Name:
		return deviceSpace(cs.Value())
	case types.Array:
		if len(cs) == 0 {
			return colorSpace{}
		}
		name, _ := cs[0].(types.Name)
		switch family := name.Value(); family {
		case "ICCBased":
			if len(cs) < 2 {
				return colorSpace{family: family}
			}
			return d.iccSpace(cs[1], depth)
		case "Indexed", "I":
			if len(cs) < 4 {
				return colorSpace{family: "Indexed"}
			}
			return d.indexedSpace(cs, depth)
		default:
			return deviceSpace(family)
		}
	}
	return colorSpace{}
}

// iccSpace maps an ICC profile stream to a device space by its /N entry,
// or by its /Alternate space when /N is missing.
func (d *pdfDoc) iccSpace(o types.Object, depth int) colorSpace {
	cs := colorSpace{family: "ICCBased"}
	sd, _, err := d.ctx.DereferenceStreamDict(o)
	if err != nil || sd == nil {
		return cs
	}
	if n := sd.IntEntry("N"); n != nil {
		cs.components = *n
		return cs
	}
	if alt, found := sd.Find("Alternate"); found {
		cs.components = d.resolveColorSpace(alt, depth+1).components
	}
	return cs
}

// indexedSpace resolves [/Indexed base hival lookup].
func (d *pdfDoc) indexedSpace(a types.Array, depth int) colorSpace {
	cs := colorSpace{family: "Indexed"}
	base := d.resolveColorSpace(a[1], depth+1)
	hival, err := d.ctx.DereferenceInteger(a[2])
	if err != nil || hival == nil {
		return cs
	}
	lookup, err := d.lookupTable(a[3])
	if err != nil || lookup == nil {
		return cs
	}
	cs.components = base.components
	cs.hival = min(max(hival.Value(), 0), 255)
	cs.lookup = lookup
	return cs
}

func (d *pdfDoc) lookupTable(o types.Object) ([]byte, error) {
	o, err := d.ctx.Dereference(o)
	if err != nil {
		return nil, err
	}
	switch lt := o.(type) {
	case types.StringLiteral:
		return types.Unescape(lt.Value(), false)
	case types.HexLiteral:
		return lt.Bytes()
	case types.StreamDict:
		if err := lt.Decode(); err != nil {
			return nil, err
		}
		return lt.Content, nil
	}
	return nil, nil
}
