//go:build unix

package ffmpeg

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFFmpeg answers the informational queries and accepts only NVENC test
// encodes.
func fakeFFmpeg(t *testing.T) string {
	return stubTool(t, `
case "$*" in
*nullsrc*)
	case "$*" in
	*h264_nvenc*) exit 0 ;;
	*) echo "Device creation failed: -22." >&2; exit 1 ;;
	esac ;;
*-version*) cat <<'EOF'
`+versionOutput+`EOF
;;
*-codecs*) cat <<'EOF'
`+codecsOutput+`EOF
;;
*-encoders*) cat <<'EOF'
`+encodersOutput+`EOF
;;
*-decoders*) printf ' ------\n V....D h264                 H.264\n' ;;
*-formats*) cat <<'EOF'
`+formatsOutput+`EOF
;;
*-hwaccels*) printf 'Hardware acceleration methods:\ncuda\nvaapi\nvideotoolbox\n\n' ;;
*) exit 1 ;;
esac`)
}

func TestBinaryDetector_Detect(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	d := NewBinaryDetector(quiet).
		WithBinary(ToolFFmpeg, fakeFFmpeg(t)).
		WithBinary(ToolFFprobe, missing).
		WithBinary(ToolFFplay, missing).
		WithHWAccelProbe(true)

	info, err := d.Detect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "n7.1-3-g0a1b2c3", info.Version)
	assert.Equal(t, 7, info.MajorVersion)
	assert.Empty(t, info.FFprobePath)
	assert.Len(t, info.Codecs, 5)
	assert.True(t, info.HasEncoder("h264_nvenc"))
	assert.True(t, info.HasDecoder("h264"))
	assert.True(t, info.HasFormat("matroska,webm"))

	require.Len(t, info.HWAccels, 3)
	cuda := info.HWAccels[0]
	assert.Equal(t, HWAccelCUDA, cuda.Type)
	assert.True(t, cuda.Available)
	assert.True(t, cuda.Verified)
	assert.Equal(t, []string{"h264_nvenc", "hevc_nvenc"}, cuda.Encoders)

	for _, h := range info.HWAccels[1:] {
		assert.False(t, h.Available, h.Type)
		assert.NotEmpty(t, h.Reason, h.Type)
	}
	assert.Equal(t, []HWAccel{HWAccelCUDA}, info.AvailableHWAccels())

	// Cached until cleared.
	again, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Same(t, info, again)

	d.Clear()
	fresh, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, info, fresh)
	assert.Equal(t, info.Version, fresh.Version)
}

func TestBinaryDetector_ListsWithoutProbing(t *testing.T) {
	d := NewBinaryDetector(quiet).WithBinary(ToolFFmpeg, fakeFFmpeg(t))

	info, err := d.Detect(context.Background())
	require.NoError(t, err)
	for _, h := range info.HWAccels {
		assert.False(t, h.Verified, h.Type)
	}
}

func TestBinaryDetector_Errors(t *testing.T) {
	_, err := NewBinaryDetector(quiet).
		WithBinary(ToolFFmpeg, filepath.Join(t.TempDir(), "missing")).
		Detect(context.Background())
	assert.Equal(t, KindExecutableNotFound, KindOf(err))

	_, err = NewBinaryDetector(quiet).
		WithBinary(ToolFFmpeg, stubTool(t, "echo 'not ffmpeg'")).
		Detect(context.Background())
	assert.Equal(t, KindParse, KindOf(err))
}
