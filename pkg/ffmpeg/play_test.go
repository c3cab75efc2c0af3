package ffmpeg

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayBuilder_Minimal(t *testing.T) {
	cmd, err := NewPlayBuilder().Input(NewInput("clip.mp4")).Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"-loglevel", "error", "-i", "clip.mp4"}, cmd.Argv())
	assert.Equal(t, ToolFFplay, cmd.Tool)
}

func TestPlayBuilder_AllOptions(t *testing.T) {
	cmd, err := NewPlayBuilder().
		Input(NewInput("http://example.com/live.m3u8")).
		Size(1280, 720).
		NoBorder().
		WindowTitle("Preview: cam 1").
		Position(10, 20).
		ShowMode(ShowWaves).
		NoSubtitle().
		Seek(90*time.Second).
		Duration(30*time.Second).
		Loop(0).
		Volume(50).
		SeekInterval(5*time.Second).
		GenPTS().
		Sync(SyncExternal).
		AudioStream(StreamTypeIndex(StreamAudio, 1)).
		AutoExit().
		Filter(Scale(640, -2), Volume("0.8")).
		Args("-infbuf").
		Build()
	require.NoError(t, err)

	want := []string{
		"-loglevel", "error",
		"-x", "1280", "-y", "720",
		"-noborder",
		"-window_title", "Preview: cam 1",
		"-left", "10", "-top", "20",
		"-showmode", "1",
		"-sn",
		"-ss", "00:01:30.000",
		"-t", "00:00:30.000",
		"-loop", "0",
		"-volume", "50",
		"-seek_interval", "5",
		"-genpts",
		"-sync", "ext",
		"-ast", "a:1",
		"-autoexit",
		"-vf", "scale=640:-2",
		"-af", "volume=0.8",
		"-infbuf",
		"-i", "http://example.com/live.m3u8",
	}
	if diff := cmp.Diff(want, cmd.Argv()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestPlayBuilder_Validation(t *testing.T) {
	tests := map[string]*PlayBuilder{
		"no input":         NewPlayBuilder(),
		"two inputs":       NewPlayBuilder().Input(NewInput("a")).Input(NewInput("b")),
		"volume too high":  NewPlayBuilder().Input(NewInput("a")).Volume(101),
		"negative size":    NewPlayBuilder().Input(NewInput("a")).Size(-1, 10),
		"bad show mode":    NewPlayBuilder().Input(NewInput("a")).ShowMode(ShowMode(7)),
		"bad sync":         NewPlayBuilder().Input(NewInput("a")).Sync("wall"),
		"bad stream":       NewPlayBuilder().Input(NewInput("a")).VideoStream(StreamTypeIndex("x", 0)),
		"title control":    NewPlayBuilder().Input(NewInput("a")).WindowTitle("a\tb"),
		"negative seek":    NewPlayBuilder().Input(NewInput("a")).Seek(-time.Second),
		"blocked extra":    NewPlayBuilder().Input(NewInput("a")).Args("-y", "1"),
		"invalid filter":   NewPlayBuilder().Input(NewInput("a")).Filter(RawFilter("scale='1")),
		"flag as locator":  NewPlayBuilder().Input(NewInput("-autoexit")),
		"negative loop":    NewPlayBuilder().Input(NewInput("a")).Loop(-1),
		"format injection": NewPlayBuilder().Input(NewInput("a")).Format("mp4 -i x"),
	}
	for name, b := range tests {
		t.Run(name, func(t *testing.T) {
			cmd, err := b.Build()
			require.Error(t, err)
			assert.Nil(t, cmd)
			assert.Equal(t, KindInvalidArgument, KindOf(err))
		})
	}
}
