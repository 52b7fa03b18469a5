package compressor

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"pdf-editor-go/internal/document/memdoc"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeDoc(t *testing.T, dir, name string, f *memdoc.File) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := f.WriteFile(path); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func readDoc(t *testing.T, path string) *memdoc.File {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	f, err := memdoc.Parse(data)
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return f
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info.Size()
}

// photoDoc is a one-page document holding a large raw photo and a small icon.
func photoDoc() *memdoc.File {
	return memdoc.New().
		AddImage(1, memdoc.RawRGB(2000, 1500, 1)).
		AddImage(2, memdoc.RawRGB(64, 64, 2)).
		AddPage(1, 2)
}
