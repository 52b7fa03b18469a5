package document

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/go-cmp/cmp"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"pdf-editor-go/internal/document/pdftest"
)

func TestSessionWorksOnCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(src, []byte(minimalHeader+"original"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := OpenSession(src, dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.WorkPath == src || filepath.Dir(s.WorkPath) != dir {
		t.Fatalf("work path = %s", s.WorkPath)
	}

	// Simulate an edit on the working copy.
	if err := os.WriteFile(s.WorkPath, []byte(minimalHeader+"edited"), 0644); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(src); string(data) != minimalHeader+"original" {
		t.Error("source changed before save")
	}

	out := filepath.Join(dir, "out.pdf")
	if err := s.SaveAs(out, ""); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(out); string(data) != minimalHeader+"edited" {
		t.Errorf("SaveAs wrote %q", data)
	}

	if err := s.SaveOverwrite(); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(src); string(data) != minimalHeader+"edited" {
		t.Error("SaveOverwrite did not replace the source")
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.WorkPath); !os.IsNotExist(err) {
		t.Error("working copy not removed")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestOpenSessionRejectsNonPDF(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.pdf")
	os.WriteFile(src, []byte("not a pdf at all"), 0644)

	if _, err := OpenSession(src, dir); !errors.Is(err, ErrNotPDF) {
		t.Errorf("err = %v, want ErrNotPDF", err)
	}
}

func TestSessionApplyKeepsCopyOnFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.pdf")
	os.WriteFile(src, []byte(minimalHeader), 0644)
	s, err := OpenSession(src, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	boom := errors.New("boom")
	err = s.apply(func(in, out string) error {
		os.WriteFile(out, []byte("partial"), 0644)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if data, _ := os.ReadFile(s.WorkPath); string(data) != minimalHeader {
		t.Error("failed edit modified the working copy")
	}
	if _, err := os.Stat(s.WorkPath + ".next"); !os.IsNotExist(err) {
		t.Error("partial output left behind")
	}
}

func TestSessionEditsRealDocument(t *testing.T) {
	dir := t.TempDir()
	src, err := pdftest.PagesPDF(dir, "in.pdf", 3)
	if err != nil {
		t.Fatal(err)
	}
	other, err := pdftest.ImagesPDF(dir, "other.pdf", imaging.PNG,
		pdftest.Noise(300, 90, 0, 8), pdftest.Noise(310, 90, 0, 9))
	if err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(src)

	s, err := OpenSession(src, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	steps := []struct {
		name  string
		apply func() error
		want  []int
	}{
		{"rotate", func() error { return s.Rotate("1", 90) }, []int{120, 130, 140}},
		{"move", func() error { return s.Move(1, 3) }, []int{130, 140, 120}},
		{"insert", func() error { return s.Insert(other, 3, false) }, []int{130, 140, 120, 300, 310}},
		{"delete", func() error { return s.Delete("1-2") }, []int{120, 300, 310}},
	}
	for _, step := range steps {
		if err := step.apply(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		n, err := s.PageCount()
		if err != nil || n != len(step.want) {
			t.Fatalf("%s: page count %d (%v), want %d", step.name, n, err, len(step.want))
		}
		if err := api.ValidateFile(s.WorkPath, NewConfiguration()); err != nil {
			t.Fatalf("%s: working copy does not validate: %v", step.name, err)
		}
		if diff := cmp.Diff(step.want, pageWidths(t, s.WorkPath)); diff != "" {
			t.Errorf("%s: pages (-want +got):\n%s", step.name, diff)
		}
	}

	if err := s.Delete("1-3"); !errors.Is(err, ErrLastPage) {
		t.Errorf("deleting every page: %v, want ErrLastPage", err)
	}

	out := filepath.Join(dir, "extract.pdf")
	if err := s.SaveAs(out, "2-3"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{300, 310}, pageWidths(t, out)); diff != "" {
		t.Errorf("extracted pages (-want +got):\n%s", diff)
	}
	if after, _ := os.ReadFile(src); string(after) != string(before) {
		t.Error("source changed without SaveOverwrite")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.pdf")
	os.WriteFile(src, []byte(minimalHeader+"body"), 0644)

	dst := filepath.Join(dir, "b.pdf")
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(dst); string(data) != minimalHeader+"body" {
		t.Errorf("copy = %q", data)
	}
	if err := CopyFile(filepath.Join(dir, "missing.pdf"), dst); !os.IsNotExist(err) {
		t.Errorf("missing source: %v", err)
	}
}
