// Package duration parses and formats durations in the two notations the
// media tools and their configuration use:
//
//   - Timestamps as printed and accepted by ffmpeg: "HH:MM:SS[.fraction]",
//     "MM:SS", or plain seconds ("4.5"). Negative timestamps carry a leading "-".
//   - Human-readable durations for configuration values: standard Go format
//     ("90s", "1h30m") plus word units ("30 seconds", "2 minutes", "1 day").
package duration

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Day represents 24 hours.
const Day = 24 * time.Hour

// wordUnits maps word time units to their Go duration equivalents.
var wordUnits = map[string]string{
	"day": "d", "days": "d",
	"hour": "h", "hours": "h", "hr": "h", "hrs": "h",
	"minute": "m", "minutes": "m", "min": "m", "mins": "m",
	"second": "s", "seconds": "s", "sec": "s", "secs": "s",
	"millisecond": "ms", "milliseconds": "ms", "millis": "ms",
}

// wordUnitPattern matches a number followed by a word unit, with optional whitespace.
var wordUnitPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(days?|hours?|hrs?|minutes?|mins?|seconds?|secs?|milliseconds?|millis)\b`)

// dayPattern matches a day component in short form ("2d").
var dayPattern = regexp.MustCompile(`(\d+)d`)

// Parse parses a human-readable duration string.
// Whitespace between components is ignored: "1 hour 30 minutes" equals "1h30m".
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimSpace(strings.TrimPrefix(s, "-"))

	s = wordUnitPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := wordUnitPattern.FindStringSubmatch(match)
		return m[1] + wordUnits[strings.ToLower(m[2])]
	})
	s = strings.Join(strings.Fields(s), "")

	var days int64
	s = dayPattern.ReplaceAllStringFunc(s, func(match string) string {
		n, _ := strconv.ParseInt(strings.TrimSuffix(match, "d"), 10, 64)
		days += n
		return ""
	})

	var d time.Duration
	if s != "" {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("duration: %w", err)
		}
		d = parsed
	}
	d += time.Duration(days) * Day

	if negative {
		d = -d
	}
	return d, nil
}

// MustParse is like Parse but panics if the string cannot be parsed.
func MustParse(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FormatTimestamp renders d as "HH:MM:SS.mmm", the form ffmpeg accepts for
// -ss, -t and -to. Hours are not wrapped at 24.
func FormatTimestamp(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	d = d.Round(time.Millisecond)

	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second
	millis := d / time.Millisecond

	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, hours, minutes, seconds, millis)
}

// ParseTimestamp parses a timestamp in ffmpeg notation. Accepted forms are
// "[-]HH:MM:SS[.frac]", "[-]MM:SS[.frac]" and "[-]S[.frac]". The fractional
// part may have any number of digits; precision beyond nanoseconds is dropped.
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "N/A") {
		return 0, fmt.Errorf("timestamp: no value %q", s)
	}

	negative := false
	if s[0] == '-' {
		negative = true
		s = s[1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("timestamp: too many components in %q", s)
	}

	secPart := parts[len(parts)-1]
	whole, frac, _ := strings.Cut(secPart, ".")
	secs, err := parseComponent(whole, len(parts) > 1)
	if err != nil {
		return 0, fmt.Errorf("timestamp: seconds in %q: %w", s, err)
	}

	total := time.Duration(secs) * time.Second
	if len(parts) >= 2 {
		mins, err := parseComponent(parts[len(parts)-2], len(parts) > 2)
		if err != nil {
			return 0, fmt.Errorf("timestamp: minutes in %q: %w", s, err)
		}
		total += time.Duration(mins) * time.Minute
	}
	if len(parts) == 3 {
		hours, err := parseComponent(parts[0], false)
		if err != nil {
			return 0, fmt.Errorf("timestamp: hours in %q: %w", s, err)
		}
		total += time.Duration(hours) * time.Hour
	}

	if frac != "" {
		f, err := parseFraction(frac)
		if err != nil {
			return 0, fmt.Errorf("timestamp: fraction in %q: %w", s, err)
		}
		total += f
	}

	if negative {
		total = -total
	}
	return total, nil
}

// parseComponent parses one clock component. Bounded components (minutes and
// seconds that follow a larger unit) must be below 60.
func parseComponent(s string, bounded bool) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty component")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid digit %q", r)
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if bounded && n >= 60 {
		return 0, fmt.Errorf("component %d out of range", n)
	}
	return n, nil
}

// parseFraction converts the digits after the decimal point to a duration.
func parseFraction(digits string) (time.Duration, error) {
	if len(digits) > 9 {
		digits = digits[:9]
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid digit %q", r)
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, err
	}
	scale := int64(math.Pow10(9 - len(digits)))
	return time.Duration(n * scale), nil
}

// Seconds renders d as decimal seconds with millisecond precision, trimming
// trailing zeros ("4.5", "10"). ffmpeg accepts this form for every time option.
func Seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Round(time.Millisecond).Seconds(), 'f', -1, 64)
}
