package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmylchreest/ffwrap/pkg/duration"
)

// Duration is a time.Duration that accepts the human-readable forms understood
// by pkg/duration: Go notation ("90s", "1h30m"), a day unit ("2d"), and word
// units ("30 seconds", "2 minutes").
type Duration time.Duration

// ParseDuration parses a human-readable duration string.
func ParseDuration(s string) (Duration, error) {
	d, err := duration.Parse(s)
	if err != nil {
		return 0, err
	}
	return Duration(d), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. Bare numbers are nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var ns int64
		if err := json.Unmarshal(data, &ns); err != nil {
			return err
		}
		*d = Duration(ns)
		return nil
	}
	return d.UnmarshalText([]byte(s))
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String renders whole days with a "d" prefix and the remainder in Go
// notation: 36h is "1d12h0m0s".
func (d Duration) String() string {
	dur := time.Duration(d)
	sign := ""
	if dur < 0 {
		sign = "-"
		dur = -dur
	}

	days := dur / duration.Day
	if days == 0 {
		return time.Duration(d).String()
	}
	rest := dur - days*duration.Day
	if rest == 0 {
		return fmt.Sprintf("%s%dd", sign, days)
	}
	return fmt.Sprintf("%s%dd%s", sign, days, rest)
}
