package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"seconds", "45s", 45 * time.Second, false},
		{"combined standard", "1h30m", 90 * time.Minute, false},
		{"milliseconds", "250ms", 250 * time.Millisecond, false},
		{"days", "2d", 48 * time.Hour, false},
		{"days and hours", "1d12h", 36 * time.Hour, false},
		{"words", "30 seconds", 30 * time.Second, false},
		{"mixed words", "1 hour 30 minutes", 90 * time.Minute, false},
		{"zero", "0s", 0, false},
		{"invalid", "soon", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d.Duration())
		})
	}
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"2 minutes"`), &d))
	assert.Equal(t, 2*time.Minute, d.Duration())

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	assert.Equal(t, time.Second, d.Duration())

	data, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))
}

func TestDuration_String(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{5 * time.Second, "5s"},
		{24 * time.Hour, "1d"},
		{36 * time.Hour, "1d12h0m0s"},
		{-48 * time.Hour, "-2d"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := Duration(tt.in).String()
			assert.Equal(t, tt.want, got)

			back, err := ParseDuration(got)
			require.NoError(t, err)
			assert.Equal(t, tt.in, back.Duration())
		})
	}
}
