// Package testutil provides helpers for tests that run the media tools,
// either as scripted stand-ins or as real binaries.
package testutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// StubTool writes an executable shell script with the given body and returns
// its path. The script runs under /bin/sh.
func StubTool(t testing.TB, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// RequireBinary returns the path of name on PATH, skipping the test when it
// is not installed or when running with -short.
func RequireBinary(t testing.TB, name string) string {
	t.Helper()
	if testing.Short() {
		t.Skipf("skipping %s test in short mode", name)
	}
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not installed", name)
	}
	return path
}

// SkipIfNoFFmpeg skips the test unless both ffmpeg and ffprobe are on PATH.
func SkipIfNoFFmpeg(t testing.TB) (ffmpegPath, ffprobePath string) {
	t.Helper()
	return RequireBinary(t, "ffmpeg"), RequireBinary(t, "ffprobe")
}

// GenerateClip renders a short synthetic clip (colour bars plus a sine tone)
// into a temporary Matroska file using the lavfi test sources.
func GenerateClip(t testing.TB, ffmpegPath string, length time.Duration) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "clip.mkv")
	secs := strconv.FormatFloat(length.Seconds(), 'f', 3, 64)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-f", "lavfi", "-i", "testsrc2=size=320x240:rate=25:duration="+secs,
		"-f", "lavfi", "-i", "sine=frequency=440:sample_rate=48000:duration="+secs,
		"-c:v", "ffv1", "-c:a", "pcm_s16le",
		out,
	)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "generating clip: %s", output)
	return out
}
