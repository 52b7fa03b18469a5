package compressor

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"pdf-editor-go/internal/document/memdoc"
)

type located struct {
	Page, ID int
}

func collect(t *testing.T, f *memdoc.File) []located {
	t.Helper()
	data, err := f.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	doc, err := (&memdoc.Opener{}).OpenBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()

	var got []located
	for img := range LocateImages(doc, quietLogger()) {
		got = append(got, located{img.Page, img.ID})
	}
	return got
}

func TestLocateImagesDedupesAcrossPages(t *testing.T) {
	f := memdoc.New().
		AddImage(1, memdoc.RawRGB(10, 10, 1)).
		AddImage(2, memdoc.RawRGB(10, 10, 2)).
		AddImage(3, memdoc.RawRGB(10, 10, 3)).
		AddPage(1, 2).
		AddPage(2, 3).
		AddPage(3, 1)

	want := []located{{1, 1}, {1, 2}, {2, 3}}
	if diff := cmp.Diff(want, collect(t, f)); diff != "" {
		t.Errorf("located images mismatch (-want +got):\n%s", diff)
	}
}

func TestLocateImagesSkipsDanglingIDs(t *testing.T) {
	f := memdoc.New().
		AddImage(5, memdoc.RawRGB(10, 10, 1)).
		AddPage(99, 5).
		AddPage(42)

	want := []located{{1, 5}}
	if diff := cmp.Diff(want, collect(t, f)); diff != "" {
		t.Errorf("located images mismatch (-want +got):\n%s", diff)
	}
}

func TestLocateImagesEmptyDocument(t *testing.T) {
	if got := collect(t, memdoc.New()); len(got) != 0 {
		t.Errorf("got %v, want no images", got)
	}
}

func TestLocateImagesFreshSeenSetPerTraversal(t *testing.T) {
	f := memdoc.New().AddImage(1, memdoc.RawRGB(10, 10, 1)).AddPage(1)
	data, _ := f.Bytes()
	doc, err := (&memdoc.Opener{}).OpenBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()

	seq := LocateImages(doc, nil)
	for i := 0; i < 2; i++ {
		n := 0
		for range seq {
			n++
		}
		if n != 1 {
			t.Errorf("traversal %d yielded %d images, want 1", i+1, n)
		}
	}
}

func TestLocateImagesStopsEarly(t *testing.T) {
	f := memdoc.New().
		AddImage(1, memdoc.RawRGB(10, 10, 1)).
		AddImage(2, memdoc.RawRGB(10, 10, 2)).
		AddPage(1).
		AddPage(2)
	data, _ := f.Bytes()
	doc, err := (&memdoc.Opener{}).OpenBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()

	n := 0
	for range LocateImages(doc, nil) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("visited %d images after break, want 1", n)
	}
}
