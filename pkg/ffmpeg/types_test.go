package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSpecifier_String(t *testing.T) {
	tests := []struct {
		spec StreamSpecifier
		want string
	}{
		{AllStreams(), ""},
		{StreamIndex(2), "2"},
		{StreamOfType(StreamAudio), "a"},
		{StreamTypeIndex(StreamVideo, 0), "v:0"},
		{StreamProgram(1), "p:1"},
		{StreamID("0x101"), "#0x101"},
		{StreamMetadata("language", "eng"), "m:language:eng"},
		{StreamMetadata("title", ""), "m:title"},
		{UsableStreams(), "u"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.spec.String())
	}
	assert.True(t, AllStreams().IsAll())
	assert.False(t, StreamIndex(0).IsAll())
}

func TestParseStreamSpecifier(t *testing.T) {
	for _, s := range []string{"", "3", "v", "V", "a:1", "s:0", "p:2", "#0x101", "m:language:eng", "m:title", "u"} {
		t.Run(s, func(t *testing.T) {
			spec, err := ParseStreamSpecifier(s)
			require.NoError(t, err)
			assert.Equal(t, s, spec.String())
		})
	}

	for _, s := range []string{"x", "x:1", "v:one", "p:", "p:-1", "#", "m:", "v:-2", "-1"} {
		t.Run("invalid "+s, func(t *testing.T) {
			_, err := ParseStreamSpecifier(s)
			var invalid *InvalidArgumentError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "stream_specifier", invalid.Field)
		})
	}
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, 16, LogError.Value())
	assert.Equal(t, -8, LogQuiet.Value())
	assert.Equal(t, -1, LogLevel("loud").Value())
	assert.True(t, LogTrace.Valid())
	assert.False(t, LogLevel("").Valid())

	tests := []struct {
		in   string
		want LogLevel
	}{
		{"error", LogError},
		{" Warning ", LogWarning},
		{"warn", LogWarning},
		{"32", LogInfo},
		{"-8", LogQuiet},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseLogLevel("17")
	assert.Error(t, err)
	_, err = ParseLogLevel("chatty")
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestTool(t *testing.T) {
	for _, tool := range Tools {
		assert.True(t, tool.Valid())
		assert.Equal(t, string(tool), tool.String())
	}
	assert.False(t, Tool("ffserver").Valid())
}

func TestHWAccel_Enabled(t *testing.T) {
	assert.False(t, HWAccel("").Enabled())
	assert.False(t, HWAccelNone.Enabled())
	assert.True(t, HWAccelAuto.Enabled())
	assert.True(t, HWAccelCUDA.Enabled())
}
