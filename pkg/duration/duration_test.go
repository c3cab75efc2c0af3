package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"go seconds", "90s", 90 * time.Second, false},
		{"go combined", "1h30m", 90 * time.Minute, false},
		{"go milliseconds", "500ms", 500 * time.Millisecond, false},
		{"word seconds", "30 seconds", 30 * time.Second, false},
		{"word minutes", "2 minutes", 2 * time.Minute, false},
		{"word mixed", "1 hour 30 mins", 90 * time.Minute, false},
		{"fractional words", "1.5 hours", 90 * time.Minute, false},
		{"days short", "1d", Day, false},
		{"days and hours", "1d12h", 36 * time.Hour, false},
		{"word day", "2 days", 2 * Day, false},
		{"negative", "-5s", -5 * time.Second, false},
		{"padded", "  10s  ", 10 * time.Second, false},
		{"empty", "", 0, true},
		{"garbage", "soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("not a duration") })
	assert.Equal(t, time.Minute, MustParse("1m"))
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00.000"},
		{4 * time.Second, "00:00:04.000"},
		{90*time.Minute + 1500*time.Millisecond, "01:30:01.500"},
		{26 * time.Hour, "26:00:00.000"},
		{-40 * time.Millisecond, "-00:00:00.040"},
		{1234567 * time.Microsecond, "00:00:01.235"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimestamp(tt.in))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"clock two decimals", "00:00:04.00", 4 * time.Second, false},
		{"clock centiseconds", "00:01:02.50", time.Minute + 2500*time.Millisecond, false},
		{"clock micros", "00:00:04.000000", 4 * time.Second, false},
		{"no fraction", "01:00:00", time.Hour, false},
		{"minutes seconds", "02:03", 2*time.Minute + 3*time.Second, false},
		{"plain seconds", "4.5", 4500 * time.Millisecond, false},
		{"large hours", "100:00:00", 100 * time.Hour, false},
		{"negative", "-00:00:00.04", -40 * time.Millisecond, false},
		{"not available", "N/A", 0, true},
		{"minutes out of range", "00:61:00", 0, true},
		{"letters", "aa:bb:cc", 0, true},
		{"too many parts", "1:2:3:4", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{0, time.Millisecond, 59 * time.Second, 3*time.Hour + 7*time.Millisecond} {
		parsed, err := ParseTimestamp(FormatTimestamp(d))
		require.NoError(t, err)
		assert.Equal(t, d, parsed)
	}
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, "4.5", Seconds(4500*time.Millisecond))
	assert.Equal(t, "10", Seconds(10*time.Second))
	assert.Equal(t, "0.001", Seconds(time.Millisecond))
}
