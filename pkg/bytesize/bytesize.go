// Package bytesize parses and formats byte sizes and bitrates.
//
// Sizes use binary multiples, matching both configuration conventions and the
// size field of ffmpeg's progress output, which prints kibibytes as "kB":
//
//   - "512" = 512 bytes
//   - "1024kB" = 1 MiB
//   - "1.5 GB" = 1.5 * 1024^3 bytes
//
// Bitrates use decimal multiples as ffmpeg does ("2097.2kbits/s" = 2097200 bit/s).
package bytesize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Size represents a byte size.
type Size int64

// Binary size units.
const (
	B  Size = 1
	KB Size = 1024
	MB Size = 1024 * KB
	GB Size = 1024 * MB
	TB Size = 1024 * GB
)

var sizeUnits = map[string]Size{
	"":  B,
	"b": B, "byte": B, "bytes": B,
	"k": KB, "kb": KB, "kib": KB,
	"m": MB, "mb": MB, "mib": MB,
	"g": GB, "gb": GB, "gib": GB,
	"t": TB, "tb": TB, "tib": TB,
}

// sizePattern matches a number followed by an optional unit.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-z]*)\s*$`)

// Parse parses a human-readable byte size. A missing unit means bytes.
func Parse(s string) (Size, error) {
	if s == "" {
		return 0, fmt.Errorf("bytesize: empty string")
	}

	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("bytesize: invalid format %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number %q: %w", m[1], err)
	}

	unit, ok := sizeUnits[strings.ToLower(m[2])]
	if !ok {
		return 0, fmt.Errorf("bytesize: unknown unit %q", m[2])
	}

	return Size(value * float64(unit)), nil
}

// MustParse is like Parse but panics if the string cannot be parsed.
func MustParse(s string) Size {
	size, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return size
}

// Format renders s using the largest unit that keeps the value >= 1.
func Format(s Size) string {
	if s == 0 {
		return "0B"
	}

	sign := ""
	if s < 0 {
		sign = "-"
		s = -s
	}

	switch {
	case s >= TB:
		return sign + trimFloat(float64(s)/float64(TB)) + "TB"
	case s >= GB:
		return sign + trimFloat(float64(s)/float64(GB)) + "GB"
	case s >= MB:
		return sign + trimFloat(float64(s)/float64(MB)) + "MB"
	case s >= KB:
		return sign + trimFloat(float64(s)/float64(KB)) + "KB"
	default:
		return fmt.Sprintf("%s%dB", sign, s)
	}
}

// Bytes returns the size in bytes.
func (s Size) Bytes() int64 {
	return int64(s)
}

// String implements fmt.Stringer.
func (s Size) String() string {
	return Format(s)
}

// bitratePattern matches ffmpeg bitrate notation: "2097.2kbits/s", "128k",
// "5M", "64000".
var bitratePattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([kKmMgG]?)(?:bits/s|bit/s|bps|b)?\s*$`)

// ParseBitrate parses a bitrate and returns bits per second.
func ParseBitrate(s string) (float64, error) {
	m := bitratePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("bytesize: invalid bitrate %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid bitrate %q: %w", s, err)
	}

	switch strings.ToLower(m[2]) {
	case "k":
		value *= 1e3
	case "m":
		value *= 1e6
	case "g":
		value *= 1e9
	}
	return value, nil
}

// FormatBitrate renders bits per second the way ffmpeg prints it: always in
// kbits/s with one decimal ("2097.2kbits/s").
func FormatBitrate(bps float64) string {
	return strconv.FormatFloat(bps/1e3, 'f', 1, 64) + "kbits/s"
}

// trimFloat formats with at most two decimals and no trailing zeros.
func trimFloat(v float64) string {
	out := strconv.FormatFloat(v, 'f', 2, 64)
	out = strings.TrimRight(out, "0")
	return strings.TrimRight(out, ".")
}
