package compressor

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"pdf-editor-go/internal/config"
)

func TestLookup(t *testing.T) {
	opts := DefaultOptions()
	tests := []struct {
		name string
		want Preset
	}{
		{"high", Preset{150, 85}},
		{"medium", Preset{96, 70}},
		{"low", Preset{72, 50}},
		{"HIGH", Preset{96, 75}},
		{"Medium", Preset{96, 75}},
		{"ultra", Preset{96, 75}},
		{"", Preset{96, 75}},
	}
	for _, tt := range tests {
		if got := opts.Lookup(tt.name); got != tt.want {
			t.Errorf("Lookup(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMaxDimension(t *testing.T) {
	limits := DefaultLimits()
	tests := []struct {
		dpi  int
		want int
	}{
		{150, 1860},
		{96, 1190},
		{72, 893},
		{50, 620},
	}
	for _, tt := range tests {
		if got := limits.MaxDimension(Preset{DPI: tt.dpi}); got != tt.want {
			t.Errorf("MaxDimension(%d dpi) = %d, want %d", tt.dpi, got, tt.want)
		}
	}
}

func TestOptionsFromDefaultConfig(t *testing.T) {
	got := OptionsFromConfig(config.DefaultConfig().Compression)
	if diff := cmp.Diff(DefaultOptions(), got); diff != "" {
		t.Errorf("OptionsFromConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestLadderIsMonotonic(t *testing.T) {
	ladder := DefaultOptions().Ladder
	for i := 1; i < len(ladder); i++ {
		if ladder[i].DPI >= ladder[i-1].DPI || ladder[i].Quality >= ladder[i-1].Quality {
			t.Errorf("ladder step %d (%v) is not more aggressive than %v", i, ladder[i], ladder[i-1])
		}
	}
}
