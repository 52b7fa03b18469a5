package compressor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pdf-editor-go/internal/document"
	"pdf-editor-go/internal/logger"
	"pdf-editor-go/internal/statistics"
)

// Batch actions.
const (
	ActionCompressed   = "compressed"
	ActionOriginal     = "original"
	ActionTargetMissed = "target_missed"
	ActionError        = "error"
)

// BatchParams contains parameters for compressing many files.
type BatchParams struct {
	InputPaths  []string
	TargetDir   string
	Preset      string
	TargetBytes int64
	Workers     int
	Extensions  []string
	// Threshold keeps the original when the output is not smaller than
	// OriginalSize*Threshold.
	Threshold float64
}

// FileResult contains the outcome of compressing one file in a batch.
type FileResult struct {
	InputPath       string
	OutputPath      string
	Action          string
	Message         string
	OriginalSize    int64
	CompressedSize  int64
	PercentageSaved float64
	Attempts        int
	Success         bool
	Error           error
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Batch compresses every PDF found under a set of input paths with a worker pool.
type Batch struct {
	comp  Compressor
	log   *logrus.Logger
	stats *statistics.Statistics
}

// NewBatch creates a new Batch instance.
func NewBatch(comp Compressor, log *logrus.Logger, stats *statistics.Statistics) *Batch {
	if log == nil {
		log = logrus.New()
	}
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	return &Batch{comp: comp, log: log, stats: stats}
}

type batchFile struct {
	path string
	rel  string
}

// Run compresses all files and returns one result per file in discovery order.
// Files still queued when ctx is cancelled are reported as errors.
func (b *Batch) Run(ctx context.Context, params BatchParams) ([]FileResult, error) {
	if params.TargetDir == "" {
		return nil, errors.New("target directory is required")
	}
	if params.TargetBytes < 0 {
		return nil, ErrInvalidTarget
	}

	files, err := collectFiles(params.InputPaths, params.Extensions)
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}
	if len(files) == 0 {
		return nil, nil
	}
	for range files {
		b.stats.IncrementFilesFound()
	}

	if err := os.MkdirAll(params.TargetDir, 0755); err != nil {
		return nil, fmt.Errorf("create target dir: %w", err)
	}

	numWorkers := params.Workers
	if numWorkers <= 0 {
		numWorkers = max(runtime.NumCPU(), 2)
	}
	numWorkers = min(numWorkers, len(files))
	logger.WithOperation(b.log, "batch").WithFields(logrus.Fields{
		"files":   len(files),
		"workers": numWorkers,
		"target":  params.TargetDir,
	}).Info("Batch started")

	type job struct {
		index int
		file  batchFile
	}
	type result struct {
		index int
		res   FileResult
	}

	jobs := make(chan job, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				var r FileResult
				if err := ctx.Err(); err != nil {
					r = failed(FileResult{InputPath: j.file.path, StartedAt: time.Now()}, "cancelled", err)
				} else {
					r = b.compressOne(ctx, j.file, params)
				}
				results <- result{index: j.index, res: r}
			}
		}()
	}

	for i, f := range files {
		jobs <- job{index: i, file: f}
	}
	close(jobs)

	wg.Wait()
	close(results)

	resArr := make([]FileResult, len(files))
	for r := range results {
		resArr[r.index] = r.res
	}
	return resArr, nil
}

// collectFiles recursively collects all files with supported extensions.
func collectFiles(inputPaths []string, extensions []string) ([]batchFile, error) {
	if len(extensions) == 0 {
		extensions = []string{".pdf"}
	}
	extSet := make(map[string]struct{})
	for _, e := range extensions {
		extSet[strings.ToLower(e)] = struct{}{}
	}

	var files []batchFile
	for _, in := range inputPaths {
		info, err := os.Stat(in)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			if _, ok := extSet[strings.ToLower(filepath.Ext(in))]; ok {
				files = append(files, batchFile{path: in, rel: filepath.Base(in)})
			}
			continue
		}
		root := in
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if _, ok := extSet[strings.ToLower(filepath.Ext(d.Name()))]; !ok {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = d.Name()
			}
			files = append(files, batchFile{path: path, rel: rel})
			return nil
		})
	}

	used := make(map[string]struct{}, len(files))
	for i := range files {
		files[i].rel = uniqueName(files[i].rel, used)
	}
	return files, nil
}

// uniqueName returns rel, or rel with a counter added before the extension
// when an earlier input already claimed that output name.
func uniqueName(rel string, used map[string]struct{}) string {
	key := strings.ToLower(rel)
	if _, ok := used[key]; !ok {
		used[key] = struct{}{}
		return rel
	}

	dir := filepath.Dir(rel)
	name := filepath.Base(rel)
	ext := filepath.Ext(name)
	nameWithoutExt := strings.TrimSuffix(name, ext)

	counter := 1
	for {
		newRel := filepath.Join(dir, fmt.Sprintf("%s_%d%s", nameWithoutExt, counter, ext))
		key = strings.ToLower(newRel)
		if _, ok := used[key]; !ok {
			used[key] = struct{}{}
			return newRel
		}
		counter++
	}
}

// compressOne compresses a single file and returns a FileResult.
func (b *Batch) compressOne(ctx context.Context, f batchFile, params BatchParams) FileResult {
	res := FileResult{
		InputPath:  f.path,
		OutputPath: filepath.Join(params.TargetDir, f.rel),
		StartedAt:  time.Now(),
	}
	defer b.stats.IncrementFilesProcessed()

	if err := document.EnsurePDF(f.path); err != nil {
		b.stats.AddError(f.path, "detect", err.Error())
		return b.fail(res, "not a pdf", err)
	}

	comp, err := b.comp.Compress(ctx, Request{
		SourcePath:  f.path,
		OutputPath:  res.OutputPath,
		Preset:      params.Preset,
		TargetBytes: params.TargetBytes,
	})
	if err != nil {
		return b.fail(res, "compress error", err)
	}
	res.OriginalSize = comp.OriginalSize
	res.CompressedSize = comp.Size
	res.Attempts = len(comp.Attempts)

	threshold := params.Threshold
	if threshold <= 0 {
		threshold = 1.0
	}
	if float64(comp.Size) >= float64(comp.OriginalSize)*threshold {
		if err := document.CopyFile(f.path, res.OutputPath); err != nil {
			b.stats.AddError(f.path, "copy", err.Error())
			return b.fail(res, "copy original error", err)
		}
		res.Action = ActionOriginal
		res.Message = "Compressed file not smaller than original, saved original"
		res.CompressedSize = comp.OriginalSize
		b.stats.IncrementFilesKeptOriginal()
	} else {
		res.Action = ActionCompressed
		res.Message = comp.Summary()
		res.PercentageSaved = comp.PercentageSaved()
		b.stats.IncrementFilesCompressed()
	}
	if comp.TargetMissed && res.Action == ActionCompressed {
		res.Action = ActionTargetMissed
	}

	res.Success = true
	res.FinishedAt = time.Now()
	b.log.WithFields(logrus.Fields{
		"file":   f.path,
		"output": res.OutputPath,
		"action": res.Action,
		"saved":  fmt.Sprintf("%.1f%%", res.PercentageSaved),
	}).Info("File processed")
	return res
}

func (b *Batch) fail(res FileResult, msg string, err error) FileResult {
	res = failed(res, msg, err)
	logger.WithFile(b.log, res.InputPath).WithError(err).Error("Batch compression failed")
	return res
}

func failed(res FileResult, msg string, err error) FileResult {
	res.Action = ActionError
	res.Message = fmt.Sprintf("%s: %v", msg, err)
	res.Error = err
	res.FinishedAt = time.Now()
	return res
}
