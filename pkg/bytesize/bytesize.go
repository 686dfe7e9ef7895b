// Package bytesize parses and formats human-readable byte sizes for
// configuration values such as webhook body caps and discovery minimum
// file sizes. All units are binary (1024-based): "5MB" is 5*1024*1024
// bytes, a bare number is a byte count, and KiB-style spellings are
// accepted as aliases.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a byte count.
type Size int64

// Binary unit constants.
const (
	B  Size = 1
	KB Size = 1 << (10 * (iota))
	MB
	GB
	TB
)

// units is ordered largest first for formatting.
var units = []struct {
	suffix string
	size   Size
}{
	{"TB", TB},
	{"GB", GB},
	{"MB", MB},
	{"KB", KB},
}

func multiplier(unit string) (Size, bool) {
	switch strings.ToLower(unit) {
	case "", "b":
		return B, true
	case "kb", "kib":
		return KB, true
	case "mb", "mib":
		return MB, true
	case "gb", "gib":
		return GB, true
	case "tb", "tib":
		return TB, true
	}
	return 0, false
}

// Parse converts a string like "5MB", "1.5 GB", or "1048576" into a
// Size. The unit is case-insensitive and may be separated from the
// number by spaces; no unit means bytes.
func Parse(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("bytesize: empty value")
	}

	cut := len(s)
	for i, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			cut = i
			break
		}
	}
	number := s[:cut]
	unit := strings.TrimSpace(s[cut:])

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid value %q", s)
	}
	mult, ok := multiplier(unit)
	if !ok {
		return 0, fmt.Errorf("bytesize: unknown unit %q in %q", unit, s)
	}
	return Size(value * float64(mult)), nil
}

// String formats the size with the largest unit that divides it to a
// value of at least one, trimming trailing zeros ("5KB", "1.5MB",
// "500B").
func (s Size) String() string {
	if s == 0 {
		return "0B"
	}
	neg := ""
	if s < 0 {
		neg, s = "-", -s
	}
	for _, u := range units {
		if s < u.size {
			continue
		}
		v := float64(s) / float64(u.size)
		if v == float64(int64(v)) {
			return fmt.Sprintf("%s%d%s", neg, int64(v), u.suffix)
		}
		trimmed := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
		return neg + trimmed + u.suffix
	}
	return fmt.Sprintf("%s%dB", neg, s)
}

// Bytes returns the size as a plain int64 byte count.
func (s Size) Bytes() int64 {
	return int64(s)
}
