package document

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Session edits a private working copy of a PDF. The source file is only
// written by SaveOverwrite.
type Session struct {
	Source   string
	WorkPath string
}

// OpenSession copies source into tempDir and returns a session on the copy.
// An empty tempDir uses the system temp directory.
func OpenSession(source, tempDir string) (*Session, error) {
	if err := EnsurePDF(source); err != nil {
		return nil, err
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	work := filepath.Join(tempDir, fmt.Sprintf("pdfeditor_%s%s", uuid.New().String(), filepath.Ext(source)))
	if err := CopyFile(source, work); err != nil {
		return nil, fmt.Errorf("create working copy: %w", err)
	}
	return &Session{Source: source, WorkPath: work}, nil
}

// PageCount returns the page count of the working copy.
func (s *Session) PageCount() (int, error) {
	return PageCount(s.WorkPath)
}

// Rotate rotates the selected pages clockwise by degrees.
func (s *Session) Rotate(sel string, degrees int) error {
	pages, err := s.selection(sel)
	if err != nil {
		return err
	}
	return s.apply(func(in, out string) error {
		return Rotate(in, out, pages, degrees)
	})
}

// Delete removes the selected pages.
func (s *Session) Delete(sel string) error {
	pages, err := s.selection(sel)
	if err != nil {
		return err
	}
	return s.apply(func(in, out string) error {
		return DeletePages(in, out, pages)
	})
}

// Move moves page from to position to.
func (s *Session) Move(from, to int) error {
	return s.apply(func(in, out string) error {
		return MovePage(in, out, from, to)
	})
}

// Insert inserts every page of other before or after page at.
func (s *Session) Insert(other string, at int, before bool) error {
	if err := EnsurePDF(other); err != nil {
		return err
	}
	return s.apply(func(in, out string) error {
		return InsertFile(in, other, out, at, before)
	})
}

// SaveAs writes the selected pages of the working copy to dst. An empty
// selection saves every page unchanged.
func (s *Session) SaveAs(dst, sel string) error {
	if sel == "" {
		return CopyFile(s.WorkPath, dst)
	}
	pages, err := s.selection(sel)
	if err != nil {
		return err
	}
	return ExtractPages(s.WorkPath, dst, pages)
}

// SaveOverwrite replaces the source file with the working copy.
func (s *Session) SaveOverwrite() error {
	return CopyFile(s.WorkPath, s.Source)
}

// Close removes the working copy.
func (s *Session) Close() error {
	if err := os.Remove(s.WorkPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Session) selection(sel string) ([]int, error) {
	n, err := s.PageCount()
	if err != nil {
		return nil, err
	}
	return ParsePageSelection(sel, n)
}

// apply runs op from the working copy into a sibling file and swaps it in,
// so a failed edit leaves the working copy untouched.
func (s *Session) apply(op func(in, out string) error) error {
	next := s.WorkPath + ".next"
	if err := op(s.WorkPath, next); err != nil {
		_ = os.Remove(next)
		return err
	}
	return os.Rename(next, s.WorkPath)
}

// copyFile copies file src to dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
