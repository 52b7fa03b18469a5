package compressor

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pdf-editor-go/internal/document/memdoc"
)

func TestInspect(t *testing.T) {
	f := memdoc.New().
		AddImage(1, memdoc.RawRGB(2000, 1500, 1)).
		AddImage(2, memdoc.RawRGB(64, 64, 2)).
		AddImage(3, memdoc.RawRGB(800, 600, 3)).
		AddPage(1, 2).
		AddPage(3, 1)
	data, _ := f.Bytes()
	doc, err := (&memdoc.Opener{}).OpenBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()

	opts := DefaultOptions()
	info := Inspect(doc, opts, opts.Lookup("medium"), nil)

	if info.Pages != 2 || info.MaxDim != 1190 {
		t.Errorf("pages %d, max dim %d", info.Pages, info.MaxDim)
	}
	type row struct {
		Page, ID int
		Shrinks  bool
	}
	var got []row
	for _, img := range info.Images {
		got = append(got, row{img.Page, img.ID, img.Shrinks})
	}
	want := []row{{1, 1, true}, {1, 2, false}, {2, 3, false}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("images (-want +got):\n%s", diff)
	}
	if want := int64(2000*1500*3 + 64*64*3 + 800*600*3); info.ImageBytes != want {
		t.Errorf("image bytes = %d, want %d", info.ImageBytes, want)
	}
	if s := info.String(); !strings.Contains(s, "Pages: 2") || !strings.Contains(s, "96dpi/q70") {
		t.Errorf("report:\n%s", s)
	}
}
