package compressor

import (
	"errors"
	"testing"
)

func TestParseTargetMB(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"2", 2 * 1024 * 1024},
		{"0.5", 512 * 1024},
		{" 1.5 ", 1536 * 1024},
		{"10", 10 * 1024 * 1024},
	}
	for _, tt := range tests {
		got, err := ParseTargetMB(tt.in)
		if err != nil {
			t.Errorf("ParseTargetMB(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTargetMB(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseTargetMBInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "0", "-1", "NaN", "Inf", "-Inf", "1e-12"} {
		if _, err := ParseTargetMB(in); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("ParseTargetMB(%q) error = %v, want ErrInvalidTarget", in, err)
		}
	}
}

func TestBytesToMB(t *testing.T) {
	if got := BytesToMB(3 * 1024 * 1024); got != 3 {
		t.Errorf("BytesToMB = %g, want 3", got)
	}
	if got := MBToBytes(0.25); got != 256*1024 {
		t.Errorf("MBToBytes(0.25) = %d", got)
	}
}
