package compressor

import (
	"iter"

	"github.com/sirupsen/logrus"

	"pdf-editor-go/internal/document"
)

// LocatedImage is an embedded image found on a page.
type LocatedImage struct {
	Page int
	ID   int
	Info document.ImageInfo
}

// LocateImages yields every distinct embedded image of doc once, in page
// order. Identifiers that do not resolve to an image are skipped. The
// seen-set lives for one traversal only.
func LocateImages(doc document.Document, log *logrus.Logger) iter.Seq[LocatedImage] {
	return func(yield func(LocatedImage) bool) {
		seen := make(map[int]struct{})
		for page := 1; page <= doc.PageCount(); page++ {
			ids, err := doc.PageImageIDs(page)
			if err != nil {
				if log != nil {
					log.WithField("page", page).WithError(err).Warn("Skipping page with unreadable resources")
				}
				continue
			}
			for _, id := range ids {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}

				info, ok := doc.Image(id)
				if !ok {
					continue
				}
				if !yield(LocatedImage{Page: page, ID: id, Info: info}) {
					return
				}
			}
		}
	}
}
