package compressor

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"pdf-editor-go/internal/document"
)

// Outcome is what happened to one image during a downsample pass.
type Outcome int

const (
	OutcomeReplaced Outcome = iota
	OutcomeSkippedSmall
	OutcomeSkippedFits
	OutcomeSkippedDecode
	OutcomeSkippedUnsupported
	OutcomeSkippedEncode
	OutcomeSkippedReplace
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReplaced:
		return "replaced"
	case OutcomeSkippedSmall:
		return "skipped_small"
	case OutcomeSkippedFits:
		return "skipped_fits"
	case OutcomeSkippedDecode:
		return "skipped_decode"
	case OutcomeSkippedUnsupported:
		return "skipped_unsupported"
	case OutcomeSkippedEncode:
		return "skipped_encode"
	case OutcomeSkippedReplace:
		return "skipped_replace"
	default:
		return "unknown"
	}
}

// Modified reports whether the image's stored bytes changed.
func (o Outcome) Modified() bool {
	return o == OutcomeReplaced
}

// ImageResult describes the processing of a single image.
type ImageResult struct {
	Page      int
	ID        int
	Outcome   Outcome
	Width     int
	Height    int
	NewWidth  int
	NewHeight int
	BytesIn   int
	BytesOut  int
	Err       error
}

// Downsampler shrinks and re-encodes oversized images in place.
type Downsampler struct {
	limits Limits
	log    *logrus.Logger
}

// NewDownsampler returns a Downsampler using limits.
func NewDownsampler(limits Limits, log *logrus.Logger) *Downsampler {
	if log == nil {
		log = logrus.New()
	}
	return &Downsampler{limits: limits, log: log}
}

// Process downsamples one located image of doc according to preset p. The
// document is only written to after the new image has been fully encoded.
func (d *Downsampler) Process(doc document.Document, img LocatedImage, p Preset) ImageResult {
	res := ImageResult{
		Page:    img.Page,
		ID:      img.ID,
		Width:   img.Info.Width,
		Height:  img.Info.Height,
		BytesIn: img.Info.Size,
	}

	if img.Info.Width < d.limits.SmallImageThreshold || img.Info.Height < d.limits.SmallImageThreshold {
		res.Outcome = OutcomeSkippedSmall
		return d.done(res)
	}

	maxDim := d.limits.MaxDimension(p)
	if img.Info.Width <= maxDim && img.Info.Height <= maxDim {
		res.Outcome = OutcomeSkippedFits
		return d.done(res)
	}

	src, err := doc.DecodeImage(img.ID)
	if err != nil {
		res.Err = err
		res.Outcome = OutcomeSkippedDecode
		if errors.Is(err, document.ErrUnsupportedImage) {
			res.Outcome = OutcomeSkippedUnsupported
		}
		return d.done(res)
	}

	w, h := scaledSize(img.Info.Width, img.Info.Height, maxDim)
	data, err := encodeJPEG(src, w, h, p.Quality)
	if err != nil {
		res.Err = err
		res.Outcome = OutcomeSkippedEncode
		return d.done(res)
	}

	if err := doc.ReplaceImage(img.ID, data, w, h); err != nil {
		res.Err = err
		res.Outcome = OutcomeSkippedReplace
		return d.done(res)
	}

	res.Outcome = OutcomeReplaced
	res.NewWidth, res.NewHeight = w, h
	res.BytesOut = len(data)
	return d.done(res)
}

func (d *Downsampler) done(res ImageResult) ImageResult {
	entry := d.log.WithFields(logrus.Fields{
		"image":   res.ID,
		"page":    res.Page,
		"width":   res.Width,
		"height":  res.Height,
		"outcome": res.Outcome.String(),
	})
	if res.Err != nil {
		entry.WithError(res.Err).Debug("Image left unchanged")
	} else if res.Outcome == OutcomeReplaced {
		entry.WithFields(logrus.Fields{
			"new_width":  res.NewWidth,
			"new_height": res.NewHeight,
			"bytes_in":   res.BytesIn,
			"bytes_out":  res.BytesOut,
		}).Debug("Image downsampled")
	} else {
		entry.Debug("Image skipped")
	}
	return res
}

// scaledSize fits w x h inside maxDim x maxDim preserving the aspect ratio.
func scaledSize(w, h, maxDim int) (int, int) {
	scale := min(float64(maxDim)/float64(w), float64(maxDim)/float64(h))
	nw := max(int(float64(w)*scale), 1)
	nh := max(int(float64(h)*scale), 1)
	return nw, nh
}

// encodeJPEG resizes src with a Lanczos filter, drops any alpha channel and
// encodes the result as JPEG.
func encodeJPEG(src image.Image, w, h, quality int) ([]byte, error) {
	resized := imaging.Resize(src, w, h, imaging.Lanczos)
	opaque(resized)

	quality = min(max(quality, 1), 100)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// opaque discards the alpha channel.
func opaque(img *image.NRGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
}
