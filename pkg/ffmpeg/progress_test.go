package ffmpeg

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStderr = "Input #0, lavfi, from 'testsrc':\n" +
	"  Duration: N/A, start: 0.000000, bitrate: N/A\n" +
	"frame=   30 fps=0.0 q=28.0 size=       0kB time=00:00:01.00 bitrate=   0.0kbits/s speed=1.97x\r" +
	"frame=  120 fps=30 q=28.0 size=    1024kB time=00:00:04.00 bitrate=2097.2kbits/s dup=1 drop=2 speed=1.0x\r\n" +
	"[libx264 @ 0x55d] frame I:1     Avg QP:20.00  size: 1234\n" +
	"frame=  150 fps= 30 q=-1.0 Lsize=    1500kB time=00:00:05.00 bitrate=2457.6kbits/s speed=1.01x\n"

func TestProgressParser_SingleStatLine(t *testing.T) {
	p := NewProgressParser(0)
	snaps := p.Feed([]byte("frame=  120 fps=30 time=00:00:04.00 speed=1.0x\n"))

	require.Len(t, snaps, 1)
	assert.Equal(t, int64(120), snaps[0].Frame)
	assert.InDelta(t, 30.0, snaps[0].FPS, 1e-9)
	assert.Equal(t, 4*time.Second, snaps[0].Time)
	assert.InDelta(t, 1.0, snaps[0].Speed, 1e-9)
	assert.Empty(t, p.Diagnostics())
}

func TestProgressParser_StatLines(t *testing.T) {
	p := NewProgressParser(0)
	snaps := p.Feed([]byte(sampleStderr))

	require.Len(t, snaps, 3)

	assert.Equal(t, int64(30), snaps[0].Frame)
	assert.InDelta(t, 1.97, snaps[0].Speed, 1e-9)

	mid := snaps[1]
	assert.Equal(t, int64(120), mid.Frame)
	assert.InDelta(t, 28.0, mid.Quality, 1e-9)
	assert.Equal(t, int64(1024*1024), mid.Size)
	assert.InDelta(t, 2097200.0, mid.Bitrate, 1e-6)
	assert.Equal(t, int64(1), mid.DupFrames)
	assert.Equal(t, int64(2), mid.DropFrames)

	final := snaps[2]
	assert.Equal(t, int64(150), final.Frame)
	assert.Equal(t, int64(1500*1024), final.Size)
	assert.Equal(t, 5*time.Second, final.Time)

	last, ok := p.Last()
	require.True(t, ok)
	assert.Equal(t, final, last)
	assert.Equal(t, 3, p.Count())

	diag := p.Diagnostics()
	assert.Contains(t, diag, "Input #0, lavfi")
	assert.Contains(t, diag, "Avg QP:20.00")
	assert.NotContains(t, diag, "frame=  120")
	assert.False(t, p.Truncated())
}

func TestProgressParser_NAValuesSkipped(t *testing.T) {
	p := NewProgressParser(0)
	snaps := p.Feed([]byte("frame=    0 fps=0.0 q=0.0 size=N/A time=N/A bitrate=N/A speed=N/A\n"))

	require.Len(t, snaps, 1)
	assert.Equal(t, Progress{}, snaps[0])
}

func TestProgressParser_NonProgressKeyValueLine(t *testing.T) {
	p := NewProgressParser(0)
	snaps := p.Feed([]byte("encoder=Lavf60 title=x\nstream mapping: a=b\n"))

	assert.Empty(t, snaps)
	assert.Equal(t, "encoder=Lavf60 title=x\nstream mapping: a=b", p.Diagnostics())
}

// collect feeds chunks through a fresh parser and returns everything it
// produced.
func collect(chunks ...[]byte) ([]Progress, string) {
	p := NewProgressParser(0)
	var out []Progress
	for _, c := range chunks {
		out = append(out, p.Feed(c)...)
	}
	out = append(out, p.Close()...)
	return out, p.Diagnostics()
}

func TestProgressParser_SplitInvariance(t *testing.T) {
	stream := []byte(sampleStderr + blockProgress)
	want, wantDiag := collect(stream)
	require.NotEmpty(t, want)

	for i := 0; i <= len(stream); i++ {
		got, gotDiag := collect(stream[:i], stream[i:])
		require.Equal(t, want, got, "split at %d", i)
		require.Equal(t, wantDiag, gotDiag, "split at %d", i)
	}

	// Byte at a time.
	chunks := make([][]byte, len(stream))
	for i := range stream {
		chunks[i] = stream[i : i+1]
	}
	got, gotDiag := collect(chunks...)
	assert.Equal(t, want, got)
	assert.Equal(t, wantDiag, gotDiag)
}

const blockProgress = "frame=10\n" +
	"fps=25.00\n" +
	"stream_0_0_q=28.0\n" +
	"bitrate= 512.0kbits/s\n" +
	"total_size=65536\n" +
	"out_time_us=400000\n" +
	"out_time_ms=400000\n" +
	"out_time=00:00:00.400000\n" +
	"dup_frames=0\n" +
	"drop_frames=1\n" +
	"speed=   1x\n" +
	"progress=continue\n" +
	"frame=25\n" +
	"out_time_us=1000000\n" +
	"total_size=N/A\n" +
	"speed=N/A\n" +
	"progress=end\n"

func TestProgressParser_BlockMode(t *testing.T) {
	p := NewProgressParser(0)
	snaps := p.Feed([]byte(blockProgress))

	require.Len(t, snaps, 2)

	first := snaps[0]
	assert.Equal(t, int64(10), first.Frame)
	assert.InDelta(t, 25.0, first.FPS, 1e-9)
	assert.InDelta(t, 28.0, first.Quality, 1e-9)
	assert.InDelta(t, 512000.0, first.Bitrate, 1e-6)
	assert.Equal(t, int64(65536), first.Size)
	assert.Equal(t, 400*time.Millisecond, first.Time)
	assert.Equal(t, int64(1), first.DropFrames)
	assert.InDelta(t, 1.0, first.Speed, 1e-9)
	assert.False(t, first.Done)

	// Each block starts from zero.
	second := snaps[1]
	assert.Equal(t, int64(25), second.Frame)
	assert.Equal(t, time.Second, second.Time)
	assert.Zero(t, second.Size)
	assert.Zero(t, second.FPS)
	assert.True(t, second.Done)

	assert.Empty(t, p.Diagnostics())
}

func TestProgressParser_DiagnosticsCap(t *testing.T) {
	p := NewProgressParser(32)
	for i := range 10 {
		p.Feed([]byte(strings.Repeat(string(rune('a'+i)), 9) + "\n"))
	}

	diag := p.Diagnostics()
	assert.LessOrEqual(t, len(diag), 32)
	assert.True(t, p.Truncated())
	// The most recent lines survive.
	assert.True(t, strings.HasSuffix(diag, "jjjjjjjjj"))
	assert.NotContains(t, diag, "aaaa")
}

func TestProgressParser_OverlongLine(t *testing.T) {
	p := NewProgressParser(1 << 20)

	snaps := p.Feed(bytes.Repeat([]byte("x"), maxLineLength+10))
	assert.Empty(t, snaps)
	assert.Len(t, p.Diagnostics(), maxLineLength)

	assert.Empty(t, p.Close())
	lines := strings.Split(p.Diagnostics(), "\n")
	require.Len(t, lines, 2)
	assert.Len(t, lines[0], maxLineLength)
	assert.Equal(t, strings.Repeat("x", 10), lines[1])
}

func TestProgressParser_CloseFlushesTrailingLine(t *testing.T) {
	p := NewProgressParser(0)
	assert.Empty(t, p.Feed([]byte("frame=5 time=00:00:00.20")))

	snaps := p.Close()
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(5), snaps[0].Frame)
	assert.Equal(t, 200*time.Millisecond, snaps[0].Time)
	assert.Nil(t, p.Close())
}

func TestScanProgress(t *testing.T) {
	var frames []int64
	for snap := range ScanProgress(strings.NewReader(sampleStderr)) {
		frames = append(frames, snap.Frame)
	}
	assert.Equal(t, []int64{30, 120, 150}, frames)

	// Early break stops iteration.
	n := 0
	for range ScanProgress(strings.NewReader(sampleStderr)) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestProgress_String(t *testing.T) {
	p := Progress{Frame: 120, FPS: 30, Size: 1024 * 1024, Time: 4 * time.Second, Bitrate: 2097200, Speed: 1}
	assert.Equal(t, "frame=120 fps=30.0 size=1MB time=00:00:04.000 bitrate=2097.2kbits/s speed=1.00x", p.String())
}
