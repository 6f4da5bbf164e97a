// Package bytesize parses and formats byte counts with binary (1024-based)
// units, for configuration values like the content cache budget.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Size is a byte count.
type Size int64

// Binary unit sizes.
const (
	B Size = 1 << (10 * iota)
	KB
	MB
	GB
	TB
	PB
)

// units maps lowercased unit suffixes to their multiplier. An absent suffix
// means bytes; the IEC spellings (KiB, MiB, ...) are accepted as synonyms.
var units = map[string]Size{
	"": B, "b": B, "byte": B, "bytes": B,
	"k": KB, "kb": KB, "kib": KB,
	"m": MB, "mb": MB, "mib": MB,
	"g": GB, "gb": GB, "gib": GB,
	"t": TB, "tb": TB, "tib": TB,
	"p": PB, "pb": PB, "pib": PB,
}

// Parse converts a human-readable size like "500MB", "1.5 GB", or a raw
// byte count like "5242880" into a Size. Units are case-insensitive and
// binary: 1KB is 1024 bytes.
func Parse(s string) (Size, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("bytesize: empty value")
	}

	split := len(trimmed)
	for i, r := range trimmed {
		if r != '.' && !unicode.IsDigit(r) {
			split = i
			break
		}
	}

	value, err := strconv.ParseFloat(trimmed[:split], 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid value %q", s)
	}

	unit := strings.ToLower(strings.TrimSpace(trimmed[split:]))
	multiplier, ok := units[unit]
	if !ok {
		return 0, fmt.Errorf("bytesize: unknown unit %q in %q", unit, s)
	}
	return Size(value * float64(multiplier)), nil
}

// Format renders a Size using the largest unit that keeps the value at or
// above one, with trailing zeros trimmed: Format(500*MB) is "500MB" and
// Format(1536) is "1.5KB".
func Format(s Size) string {
	if s < 0 {
		return "-" + Format(-s)
	}
	switch {
	case s >= PB:
		return formatUnit(s, PB, "PB")
	case s >= TB:
		return formatUnit(s, TB, "TB")
	case s >= GB:
		return formatUnit(s, GB, "GB")
	case s >= MB:
		return formatUnit(s, MB, "MB")
	case s >= KB:
		return formatUnit(s, KB, "KB")
	default:
		return strconv.FormatInt(int64(s), 10) + "B"
	}
}

func formatUnit(s, unit Size, suffix string) string {
	v := strconv.FormatFloat(float64(s)/float64(unit), 'f', 2, 64)
	v = strings.TrimRight(v, "0")
	v = strings.TrimRight(v, ".")
	return v + suffix
}

// String implements fmt.Stringer.
func (s Size) String() string {
	return Format(s)
}
