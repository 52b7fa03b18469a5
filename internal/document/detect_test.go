package document

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

const minimalHeader = "%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"

func TestEnsurePDFBytes(t *testing.T) {
	if err := EnsurePDFBytes([]byte(minimalHeader)); err != nil {
		t.Errorf("pdf header rejected: %v", err)
	}
	for _, data := range [][]byte{[]byte("hello world"), {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, nil} {
		if err := EnsurePDFBytes(data); !errors.Is(err, ErrNotPDF) {
			t.Errorf("EnsurePDFBytes(%q) = %v, want ErrNotPDF", data, err)
		}
	}
}

func TestEnsurePDF(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "doc.bin")
	txt := filepath.Join(dir, "fake.pdf")
	os.WriteFile(pdf, []byte(minimalHeader), 0644)
	os.WriteFile(txt, []byte("plain text pretending"), 0644)

	if err := EnsurePDF(pdf); err != nil {
		t.Errorf("content sniffing should ignore the extension: %v", err)
	}
	if err := EnsurePDF(txt); !errors.Is(err, ErrNotPDF) {
		t.Errorf("err = %v, want ErrNotPDF", err)
	}
	if err := EnsurePDF(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestSamplesToImage(t *testing.T) {
	rgb, err := samplesToImage([]byte{255, 0, 0, 0, 255, 0}, 2, 1, 8, deviceSpace("DeviceRGB"))
	if err != nil {
		t.Fatal(err)
	}
	if r, g, _, a := rgb.At(0, 0).RGBA(); r != 0xffff || g != 0 || a != 0xffff {
		t.Errorf("pixel 0 = %v", rgb.At(0, 0))
	}
	if _, g, _, _ := rgb.At(1, 0).RGBA(); g != 0xffff {
		t.Errorf("pixel 1 = %v", rgb.At(1, 0))
	}

	gray, err := samplesToImage([]byte{10, 20, 30, 40}, 2, 2, 8, deviceSpace("DeviceGray"))
	if err != nil {
		t.Fatal(err)
	}
	if g, ok := gray.(*image.Gray); !ok || g.GrayAt(1, 1).Y != 40 {
		t.Errorf("gray image = %#v", gray)
	}

	if _, err := samplesToImage(make([]byte, 16), 2, 2, 8, deviceSpace("DeviceCMYK")); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("cmyk: err = %v, want ErrUnsupportedImage", err)
	}
	if _, err := samplesToImage(make([]byte, 16), 2, 2, 16, deviceSpace("DeviceRGB")); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("16 bit: err = %v, want ErrUnsupportedImage", err)
	}
	if _, err := samplesToImage([]byte{1, 2}, 2, 2, 8, deviceSpace("DeviceRGB")); err == nil {
		t.Error("short data accepted")
	}
}

func TestSamplesToImageIndexed(t *testing.T) {
	rgbBase := colorSpace{family: "Indexed", components: 3, hival: 2,
		lookup: []byte{255, 0, 0, 0, 255, 0, 0, 0, 255}}
	grayBase := colorSpace{family: "Indexed", components: 1, hival: 1, lookup: []byte{0, 200}}

	tests := []struct {
		name string
		data []byte
		w, h int
		bpc  int
		cs   colorSpace
		want []color.NRGBA
	}{
		{
			name: "8 bit rgb",
			data: []byte{2, 0, 1},
			w:    3, h: 1, bpc: 8, cs: rgbBase,
			want: []color.NRGBA{{0, 0, 255, 255}, {255, 0, 0, 255}, {0, 255, 0, 255}},
		},
		{
			// 0001 0010 per row, second row starts on a new byte
			name: "4 bit rows",
			data: []byte{0x12, 0x20},
			w:    2, h: 2, bpc: 4, cs: rgbBase,
			want: []color.NRGBA{{0, 255, 0, 255}, {0, 0, 255, 255}, {0, 0, 255, 255}, {255, 0, 0, 255}},
		},
		{
			name: "1 bit gray",
			data: []byte{0xa0},
			w:    3, h: 1, bpc: 1, cs: grayBase,
			want: []color.NRGBA{{200, 200, 200, 255}, {0, 0, 0, 255}, {200, 200, 200, 255}},
		},
		{
			name: "index above hival",
			data: []byte{7},
			w:    1, h: 1, bpc: 8, cs: rgbBase,
			want: []color.NRGBA{{0, 0, 255, 255}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := samplesToImage(tt.data, tt.w, tt.h, tt.bpc, tt.cs)
			if err != nil {
				t.Fatal(err)
			}
			for i, want := range tt.want {
				x, y := i%tt.w, i/tt.w
				if got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA); got != want {
					t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
				}
			}
		})
	}

	short := rgbBase
	short.lookup = short.lookup[:6]
	if _, err := samplesToImage([]byte{0}, 1, 1, 8, short); err == nil {
		t.Error("short lookup table accepted")
	}
	cmyk := colorSpace{family: "Indexed", components: 4, hival: 0, lookup: make([]byte, 4)}
	if _, err := samplesToImage([]byte{0}, 1, 1, 8, cmyk); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("cmyk base: err = %v, want ErrUnsupportedImage", err)
	}
	if _, err := samplesToImage([]byte{0}, 1, 1, 3, rgbBase); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("3 bit: err = %v, want ErrUnsupportedImage", err)
	}
	if _, err := samplesToImage([]byte{0}, 3, 3, 8, rgbBase); err == nil {
		t.Error("short index data accepted")
	}
}
