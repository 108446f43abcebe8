// Package formatting parses loosely formatted values: human-readable byte
// sizes from configuration and JSON embedded in model output.
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var units = []string{
	"B", "KB", "MB",
	"GB", "TB", "PB",
}

var bytesPattern = regexp.MustCompile(`^(\d+\.?\d*)\s*([A-Za-z]*)$`)

// ParseBytes parses a size such as "1MB" or "512 kb" into a byte count
// using base-1024 units. A bare number is bytes. "KiB" style suffixes are
// accepted as aliases.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	matches := bytesPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	unit := strings.ToUpper(matches[2])
	if unit == "" {
		return int64(value), nil
	}
	if len(unit) == 3 && unit[1] == 'I' {
		unit = unit[:1] + "B"
	}

	idx := slices.Index(units, unit)
	if idx == -1 {
		return 0, fmt.Errorf("unknown byte size unit: %q", matches[2])
	}

	return int64(value * math.Pow(1024, float64(idx))), nil
}

// FormatBytes renders n with the largest unit that keeps the value at or
// above one, trimmed to whole numbers when exact.
func FormatBytes(n int64) string {
	if n < 1024 {
		return strconv.FormatInt(n, 10) + " B"
	}

	f := float64(n)
	i := min(int(math.Floor(math.Log(f)/math.Log(1024))), len(units)-1)
	size := f / math.Pow(1024, float64(i))

	precision := 1
	if size == math.Trunc(size) {
		precision = 0
	}
	return strconv.FormatFloat(size, 'f', precision, 64) + " " + units[i]
}
