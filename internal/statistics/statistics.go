package statistics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics contains all statistics for a compression session.
type Statistics struct {
	TotalFilesFound     int64
	TotalFilesProcessed int64
	FilesCompressed     int64
	FilesKeptOriginal   int64
	FilesTargetMissed   int64
	FilesWithErrors     int64

	Attempts       int64
	ImagesFound    int64
	ImagesReplaced int64

	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
	FilesPerSecond  float64
	BytesIn         int64
	BytesOut        int64
	AverageFileSize int64

	Errors []StatError

	mutex sync.RWMutex

	// OutcomeStats counts images by downsample outcome.
	OutcomeStats map[string]int64
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:    time.Now(),
		OutcomeStats: make(map[string]int64),
		Errors:       make([]StatError, 0),
	}
}

// IncrementFilesFound increases the count of found files by 1.
func (s *Statistics) IncrementFilesFound() {
	atomic.AddInt64(&s.TotalFilesFound, 1)
}

// IncrementFilesProcessed increases the count of processed files by 1.
func (s *Statistics) IncrementFilesProcessed() {
	atomic.AddInt64(&s.TotalFilesProcessed, 1)
}

// IncrementFilesCompressed increases the count of files written smaller than their source.
func (s *Statistics) IncrementFilesCompressed() {
	atomic.AddInt64(&s.FilesCompressed, 1)
}

// IncrementFilesKeptOriginal increases the count of files copied unchanged.
func (s *Statistics) IncrementFilesKeptOriginal() {
	atomic.AddInt64(&s.FilesKeptOriginal, 1)
}

// IncrementFilesTargetMissed increases the count of runs that exhausted the ladder.
func (s *Statistics) IncrementFilesTargetMissed() {
	atomic.AddInt64(&s.FilesTargetMissed, 1)
}

// IncrementFilesWithErrors increases the count of files with errors by 1.
func (s *Statistics) IncrementFilesWithErrors() {
	atomic.AddInt64(&s.FilesWithErrors, 1)
}

// IncrementAttempts increases the count of save attempts by 1.
func (s *Statistics) IncrementAttempts() {
	atomic.AddInt64(&s.Attempts, 1)
}

// RecordImage counts one processed image under its outcome name.
func (s *Statistics) RecordImage(outcome string, replaced bool) {
	atomic.AddInt64(&s.ImagesFound, 1)
	if replaced {
		atomic.AddInt64(&s.ImagesReplaced, 1)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.OutcomeStats[outcome]++
}

// AddBytes adds the sizes of one source and its output.
func (s *Statistics) AddBytes(in, out int64) {
	atomic.AddInt64(&s.BytesIn, in)
	atomic.AddInt64(&s.BytesOut, out)
}

// Finalize calculates final statistics such as duration, files per second, and average file size.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	totalProcessed := atomic.LoadInt64(&s.TotalFilesProcessed)
	bytesIn := atomic.LoadInt64(&s.BytesIn)

	if s.Duration.Seconds() > 0 {
		s.FilesPerSecond = float64(totalProcessed) / s.Duration.Seconds()
	}

	if totalProcessed > 0 {
		s.AverageFileSize = bytesIn / totalProcessed
	}
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	atomic.AddInt64(&s.FilesWithErrors, 1)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// SavedPercentage returns the overall size reduction across all files.
func (s *Statistics) SavedPercentage() float64 {
	in := atomic.LoadInt64(&s.BytesIn)
	if in == 0 {
		return 0
	}
	return float64(in-atomic.LoadInt64(&s.BytesOut)) * 100 / float64(in)
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	duration := s.Duration
	fps := s.FilesPerSecond
	avg := s.AverageFileSize
	s.mutex.RUnlock()

	return fmt.Sprintf(`PDF Editor Statistics Summary:

Files:
		Total Found: %d
		Total Processed: %d
		Compressed: %d
		Kept Original: %d
		Target Missed: %d
		Errors: %d

Images:
		Found: %d
		Replaced: %d
		Save Attempts: %d

Performance:
		Duration: %v
		Files/Second: %.2f
		Bytes In: %s
		Bytes Out: %s
		Saved: %.1f%%
		Average File Size: %s`,
		atomic.LoadInt64(&s.TotalFilesFound),
		atomic.LoadInt64(&s.TotalFilesProcessed),
		atomic.LoadInt64(&s.FilesCompressed),
		atomic.LoadInt64(&s.FilesKeptOriginal),
		atomic.LoadInt64(&s.FilesTargetMissed),
		atomic.LoadInt64(&s.FilesWithErrors),
		atomic.LoadInt64(&s.ImagesFound),
		atomic.LoadInt64(&s.ImagesReplaced),
		atomic.LoadInt64(&s.Attempts),
		duration,
		fps,
		FormatBytes(atomic.LoadInt64(&s.BytesIn)),
		FormatBytes(atomic.LoadInt64(&s.BytesOut)),
		s.SavedPercentage(),
		FormatBytes(avg))
}

// GetOutcomeBreakdown returns a formatted breakdown of image outcomes.
func (s *Statistics) GetOutcomeBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.OutcomeStats) == 0 {
		return "No image statistics available"
	}

	names := make([]string, 0, len(s.OutcomeStats))
	for name := range s.OutcomeStats {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Image Outcome Breakdown:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s: %d\n", name, s.OutcomeStats[name])
	}
	return b.String()
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return result
}

// Snapshot is a point-in-time copy of the counters, safe to serialize.
type Snapshot struct {
	FilesFound        int64            `json:"files_found"`
	FilesProcessed    int64            `json:"files_processed"`
	FilesCompressed   int64            `json:"files_compressed"`
	FilesKeptOriginal int64            `json:"files_kept_original"`
	FilesTargetMissed int64            `json:"files_target_missed"`
	FilesWithErrors   int64            `json:"files_with_errors"`
	Attempts          int64            `json:"attempts"`
	ImagesFound       int64            `json:"images_found"`
	ImagesReplaced    int64            `json:"images_replaced"`
	BytesIn           int64            `json:"bytes_in"`
	BytesOut          int64            `json:"bytes_out"`
	SavedPercentage   float64          `json:"saved_percentage"`
	Outcomes          map[string]int64 `json:"outcomes"`
}

// Snapshot returns the current counters.
func (s *Statistics) Snapshot() Snapshot {
	snap := Snapshot{
		FilesFound:        atomic.LoadInt64(&s.TotalFilesFound),
		FilesProcessed:    atomic.LoadInt64(&s.TotalFilesProcessed),
		FilesCompressed:   atomic.LoadInt64(&s.FilesCompressed),
		FilesKeptOriginal: atomic.LoadInt64(&s.FilesKeptOriginal),
		FilesTargetMissed: atomic.LoadInt64(&s.FilesTargetMissed),
		FilesWithErrors:   atomic.LoadInt64(&s.FilesWithErrors),
		Attempts:          atomic.LoadInt64(&s.Attempts),
		ImagesFound:       atomic.LoadInt64(&s.ImagesFound),
		ImagesReplaced:    atomic.LoadInt64(&s.ImagesReplaced),
		BytesIn:           atomic.LoadInt64(&s.BytesIn),
		BytesOut:          atomic.LoadInt64(&s.BytesOut),
		SavedPercentage:   s.SavedPercentage(),
		Outcomes:          make(map[string]int64),
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for k, v := range s.OutcomeStats {
		snap.Outcomes[k] = v
	}
	return snap
}

// FormatBytes returns a human-readable string for a byte count.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// GetTotalFilesProcessed returns the total number of files processed.
func (s *Statistics) GetTotalFilesProcessed() int64 {
	return atomic.LoadInt64(&s.TotalFilesProcessed)
}

// GetFilesWithErrors returns the total number of files with errors.
func (s *Statistics) GetFilesWithErrors() int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return int64(len(s.Errors))
}

// GetDuration returns the total duration of the operation.
func (s *Statistics) GetDuration() time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Duration
}
