package compressor

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"pdf-editor-go/internal/document"
)

// ImageReport describes one embedded image and what a preset would do to it.
type ImageReport struct {
	Page       int    `json:"page"`
	ID         int    `json:"id"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	ColorSpace string `json:"color_space"`
	Filter     string `json:"filter"`
	Size       int    `json:"size"`
	// Shrinks is set when the image exceeds the preset's pixel ceiling.
	Shrinks bool `json:"shrinks"`
}

// DocumentInfo summarizes a document's pages and images.
type DocumentInfo struct {
	Pages      int           `json:"pages"`
	Preset     string        `json:"preset"`
	MaxDim     int           `json:"max_dimension"`
	Images     []ImageReport `json:"images"`
	ImageBytes int64         `json:"image_bytes"`
}

// Inspect lists the images of doc and flags those preset p would downsample.
func Inspect(doc document.Document, opts Options, p Preset, log *logrus.Logger) DocumentInfo {
	info := DocumentInfo{
		Pages:  doc.PageCount(),
		Preset: p.String(),
		MaxDim: opts.Limits.MaxDimension(p),
	}
	for img := range LocateImages(doc, log) {
		small := img.Info.Width < opts.Limits.SmallImageThreshold || img.Info.Height < opts.Limits.SmallImageThreshold
		fits := img.Info.Width <= info.MaxDim && img.Info.Height <= info.MaxDim
		info.Images = append(info.Images, ImageReport{
			Page:       img.Page,
			ID:         img.ID,
			Width:      img.Info.Width,
			Height:     img.Info.Height,
			ColorSpace: img.Info.ColorSpace,
			Filter:     img.Info.Filter,
			Size:       img.Info.Size,
			Shrinks:    !small && !fits,
		})
		info.ImageBytes += int64(img.Info.Size)
	}
	return info
}

// String renders the report as a table.
func (d DocumentInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pages: %d\n", d.Pages)
	fmt.Fprintf(&b, "Images: %d (%d bytes)\n", len(d.Images), d.ImageBytes)
	fmt.Fprintf(&b, "Preset %s, max dimension %dpx\n", d.Preset, d.MaxDim)
	for _, img := range d.Images {
		mark := " "
		if img.Shrinks {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s page %3d  obj %5d  %5dx%-5d  %-10s %-12s %d\n",
			mark, img.Page, img.ID, img.Width, img.Height, img.ColorSpace, img.Filter, img.Size)
	}
	return b.String()
}
