//go:build unix

package ffmpeg

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fftest "github.com/jmylchreest/ffwrap/internal/testutil"
)

func TestIntegration_TranscodeAndProbe(t *testing.T) {
	ffmpegPath, ffprobePath := fftest.SkipIfNoFFmpeg(t)
	clip := fftest.GenerateClip(t, ffmpegPath, time.Second)
	out := filepath.Join(t.TempDir(), "out.mkv")

	cmd, err := NewTranscodeBuilder().
		Binary(ffmpegPath).
		Overwrite().
		Input(NewInput(clip)).
		Output(NewOutput(out).
			VideoCodec(Codec("mpeg4").Quality(5)).
			AudioCodec(Codec("aac").Bitrate("96k")).
			Metadata("title", "bars: 1s, tone")).
		Filter(Scale(160, -2)).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := cmd.Run(ctx, quiet)
	require.NoError(t, err, "diagnostics: %s", res.Diagnostics)
	assert.True(t, res.Success())
	require.NotNil(t, res.LastProgress)
	assert.Positive(t, res.LastProgress.Frame)

	probe, err := NewProber(ffprobePath, quiet).Probe(ctx, out)
	require.NoError(t, err)
	video := probe.VideoStream()
	require.NotNil(t, video)
	assert.Equal(t, "mpeg4", video.CodecName)
	assert.Equal(t, 160, video.Width)
	assert.InDelta(t, 1.0, probe.Duration().Seconds(), 0.2)
	assert.Equal(t, "bars: 1s, tone", probe.Format.Tags["title"])

	info := probe.Simplify()
	assert.True(t, info.HasVideo())
	assert.True(t, info.HasAudio())
}

func TestIntegration_InvalidInputFails(t *testing.T) {
	ffmpegPath, _ := fftest.SkipIfNoFFmpeg(t)

	cmd, err := NewTranscodeBuilder().
		Binary(ffmpegPath).
		Input(NewInput(filepath.Join(t.TempDir(), "missing.mkv"))).
		Output(NewOutput("-").Format("null")).
		Build()
	require.NoError(t, err)

	res, err := cmd.Run(context.Background(), quiet)
	assert.Equal(t, KindProcessFailed, KindOf(err))
	require.NotNil(t, res)
	assert.NotZero(t, res.ExitCode)
	assert.Contains(t, res.Diagnostics, "No such file or directory")
}
