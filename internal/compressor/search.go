package compressor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"pdf-editor-go/internal/document"
	"pdf-editor-go/internal/logger"
	"pdf-editor-go/internal/metrics"
	"pdf-editor-go/internal/statistics"
)

// ErrSameFile is returned when the output would overwrite the source being read.
var ErrSameFile = errors.New("output path must differ from source path")

// AttemptHook is called after every finished attempt.
type AttemptHook func(req Request, att Attempt)

// Pipeline compresses PDF documents by downsampling their embedded images.
// Every attempt works on a freshly opened copy of the source, so attempts
// never see each other's modifications.
type Pipeline struct {
	opener      document.Opener
	opts        Options
	log         *logrus.Logger
	stats       *statistics.Statistics
	downsampler *Downsampler
	hook        AttemptHook
}

// NewPipeline creates a new Pipeline instance.
func NewPipeline(opener document.Opener, opts Options, log *logrus.Logger, stats *statistics.Statistics) *Pipeline {
	return NewPipelineWithHook(opener, opts, log, stats, nil)
}

// NewPipelineWithHook creates a Pipeline that reports every attempt to hook.
func NewPipelineWithHook(opener document.Opener, opts Options, log *logrus.Logger, stats *statistics.Statistics, hook AttemptHook) *Pipeline {
	if log == nil {
		log = logrus.New()
	}
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	return &Pipeline{
		opener:      opener,
		opts:        opts,
		log:         log,
		stats:       stats,
		downsampler: NewDownsampler(opts.Limits, log),
		hook:        hook,
	}
}

// Compress runs preset mode when req.TargetBytes is zero and target mode
// otherwise. In target mode an exhausted ladder is not an error: the result
// holds the last attempt with TargetMissed set.
func (p *Pipeline) Compress(ctx context.Context, req Request) (*Result, error) {
	if req.TargetBytes < 0 {
		return nil, fmt.Errorf("%d bytes: %w", req.TargetBytes, ErrInvalidTarget)
	}
	if same, err := samePath(req.SourcePath, req.OutputPath); err != nil {
		return nil, err
	} else if same {
		return nil, ErrSameFile
	}

	info, err := os.Stat(req.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}

	res := &Result{
		SourcePath:   req.SourcePath,
		OutputPath:   req.OutputPath,
		OriginalSize: info.Size(),
		TargetBytes:  req.TargetBytes,
		StartedAt:    time.Now(),
	}

	metrics.JobStarted()
	defer metrics.JobFinished()

	switch {
	case req.TargetBytes == 0:
		err = p.runPreset(ctx, req, res)
	case res.OriginalSize <= req.TargetBytes:
		err = p.runResave(ctx, req, res)
	default:
		err = p.runLadder(ctx, req, res)
	}
	res.FinishedAt = time.Now()
	p.record(res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) runPreset(ctx context.Context, req Request, res *Result) error {
	preset := p.opts.Lookup(req.Preset)
	if _, ok := p.opts.Presets[req.Preset]; !ok {
		logger.WithFileOperation(p.log, req.SourcePath, "compress").
			WithField("preset", req.Preset).
			Warnf("Unknown preset, using %s", preset)
	}
	res.Mode = ModePreset
	res.Preset = req.Preset

	att, err := p.attempt(ctx, req, 1, &preset)
	if err != nil {
		return err
	}
	res.Attempts = append(res.Attempts, att)
	res.Size = att.Size
	return nil
}

func (p *Pipeline) runResave(ctx context.Context, req Request, res *Result) error {
	res.Mode = ModeResave
	att, err := p.attempt(ctx, req, 1, nil)
	if err != nil {
		return err
	}
	res.Attempts = append(res.Attempts, att)
	res.Size = att.Size
	return nil
}

func (p *Pipeline) runLadder(ctx context.Context, req Request, res *Result) error {
	res.Mode = ModeTarget
	if len(p.opts.Ladder) == 0 {
		return errors.New("compression ladder is empty")
	}

	entry := logger.WithFileOperation(p.log, req.SourcePath, "compress")
	for i, preset := range p.opts.Ladder {
		if err := ctx.Err(); err != nil {
			return err
		}
		att, err := p.attempt(ctx, req, i+1, &preset)
		if err != nil {
			return err
		}
		res.Attempts = append(res.Attempts, att)
		res.Size = att.Size

		entry.WithFields(logrus.Fields{
			"attempt": att.Index,
			"preset":  preset.String(),
			"size":    att.Size,
			"target":  req.TargetBytes,
		}).Info("Compression attempt finished")

		if att.Size <= req.TargetBytes {
			return nil
		}
	}
	res.TargetMissed = true
	return nil
}

// attempt opens a fresh copy of the source, downsamples it with preset (or
// not at all when preset is nil) and writes it to the output path. The
// document is closed before attempt returns.
func (p *Pipeline) attempt(ctx context.Context, req Request, index int, preset *Preset) (Attempt, error) {
	if err := ctx.Err(); err != nil {
		return Attempt{}, err
	}

	start := time.Now()
	doc, err := p.opener.Open(req.SourcePath)
	if err != nil {
		return Attempt{}, fmt.Errorf("open source: %w", err)
	}
	defer doc.Close()

	att := Attempt{Index: index, Preset: preset}
	if preset != nil {
		for img := range LocateImages(doc, p.log) {
			r := p.downsampler.Process(doc, img, *preset)
			att.Images = append(att.Images, r)
			p.stats.RecordImage(r.Outcome.String(), r.Outcome.Modified())
			metrics.ObserveImage(r.Outcome.String())
		}
	}

	size, err := writeAtomic(doc, req.OutputPath)
	if err != nil {
		return Attempt{}, fmt.Errorf("save output: %w", err)
	}
	att.Size = size
	att.Duration = time.Since(start)

	label := "resave"
	if preset != nil {
		label = preset.String()
	}
	p.stats.IncrementAttempts()
	metrics.ObserveAttempt(label)
	if p.hook != nil {
		p.hook(req, att)
	}
	return att, nil
}

func (p *Pipeline) record(res *Result, err error) {
	mode := string(res.Mode)
	if mode == "" {
		mode = "unknown"
	}
	dur := res.FinishedAt.Sub(res.StartedAt)
	entry := logger.WithFileOperation(p.log, res.SourcePath, "compress")

	if err != nil {
		p.stats.AddError(res.SourcePath, "compress", err.Error())
		metrics.ObserveRun(mode, "error", dur)
		entry.WithError(err).Error("Compression failed")
		return
	}

	result := "ok"
	if res.TargetMissed {
		result = "target_missed"
		p.stats.IncrementFilesTargetMissed()
	}
	p.stats.AddBytes(res.OriginalSize, res.Size)
	metrics.ObserveRun(mode, result, dur)
	metrics.AddBytesSaved(res.OriginalSize - res.Size)

	entry.WithFields(logrus.Fields{
		"mode":          mode,
		"attempts":      len(res.Attempts),
		"original_size": res.OriginalSize,
		"size":          res.Size,
		"target_missed": res.TargetMissed,
		"duration":      dur.String(),
	}).Info("Compression finished")
}

// writeAtomic saves doc with cleanup and deflation to a temporary file next
// to dst and renames it into place. It returns the size of the written file.
func writeAtomic(doc document.Document, dst string) (int64, error) {
	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, err
		}
	}

	tmpPath := dst + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, err
	}

	w := bufio.NewWriter(f)
	err = doc.Save(w, document.SaveOptions{Cleanup: true, Deflate: true})
	if err == nil {
		err = w.Flush()
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	info, err := os.Stat(dst)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func samePath(a, b string) (bool, error) {
	if a == "" || b == "" {
		return false, errors.New("source and output paths are required")
	}
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}
