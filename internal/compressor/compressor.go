package compressor

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Mode is the strategy a compression run used.
type Mode string

const (
	// ModePreset applies one named preset.
	ModePreset Mode = "preset"
	// ModeResave only re-serializes because the source already meets the target.
	ModeResave Mode = "resave"
	// ModeTarget walks the preset ladder until the target size is met.
	ModeTarget Mode = "target"
)

// Request describes one compression run. A zero TargetBytes selects preset mode.
type Request struct {
	SourcePath  string
	OutputPath  string
	Preset      string
	TargetBytes int64
}

// Attempt is one open-downsample-save cycle.
type Attempt struct {
	Index    int
	Preset   *Preset
	Size     int64
	Images   []ImageResult
	Duration time.Duration
}

// Count returns how many images ended with outcome o.
func (a Attempt) Count(o Outcome) int {
	n := 0
	for _, img := range a.Images {
		if img.Outcome == o {
			n++
		}
	}
	return n
}

// Result describes a finished compression run.
type Result struct {
	SourcePath   string
	OutputPath   string
	Mode         Mode
	Preset       string
	OriginalSize int64
	Size         int64
	TargetBytes  int64
	// TargetMissed is set when the ladder was exhausted above the target.
	// The output then holds the last, most aggressive attempt.
	TargetMissed bool
	Attempts     []Attempt
	StartedAt    time.Time
	FinishedAt   time.Time
}

// PercentageSaved returns the size reduction relative to the source.
func (r *Result) PercentageSaved() float64 {
	if r.OriginalSize == 0 {
		return 0
	}
	return float64(r.OriginalSize-r.Size) * 100 / float64(r.OriginalSize)
}

// Summary returns a short human-readable report.
func (r *Result) Summary() string {
	msg := fmt.Sprintf("Final Size: %.2f MB", BytesToMB(r.Size))
	if r.TargetMissed {
		msg += fmt.Sprintf("\n(Could not reach target %.2f MB)", BytesToMB(r.TargetBytes))
	}
	return msg
}

// ReadOutput returns the serialized document written by the run.
func (r *Result) ReadOutput() ([]byte, error) {
	return os.ReadFile(r.OutputPath)
}

// Compressor defines the interface for PDF compression.
type Compressor interface {
	// Compress writes a compressed copy of req.SourcePath to req.OutputPath.
	Compress(ctx context.Context, req Request) (*Result, error)
}
