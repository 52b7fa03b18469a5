package compressor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidTarget is returned for target sizes that are not positive finite numbers.
var ErrInvalidTarget = errors.New("invalid target size")

const bytesPerMB = 1024 * 1024

// MBToBytes converts megabytes to bytes.
func MBToBytes(mb float64) int64 {
	return int64(mb * bytesPerMB)
}

// BytesToMB converts bytes to megabytes.
func BytesToMB(n int64) float64 {
	return float64(n) / bytesPerMB
}

// ParseTargetMB parses a target size given in megabytes and returns it in bytes.
func ParseTargetMB(s string) (int64, error) {
	mb, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidTarget)
	}
	return TargetBytes(mb)
}

// TargetBytes validates a target in megabytes and converts it to bytes.
func TargetBytes(mb float64) (int64, error) {
	if math.IsNaN(mb) || math.IsInf(mb, 0) || mb <= 0 {
		return 0, fmt.Errorf("%g MB: %w", mb, ErrInvalidTarget)
	}
	n := MBToBytes(mb)
	if n <= 0 {
		return 0, fmt.Errorf("%g MB rounds to zero bytes: %w", mb, ErrInvalidTarget)
	}
	return n, nil
}
