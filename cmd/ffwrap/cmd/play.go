package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ffwrap/internal/observability"
	"github.com/jmylchreest/ffwrap/pkg/duration"
	"github.com/jmylchreest/ffwrap/pkg/ffmpeg"
)

type playOptions struct {
	fullscreen   bool
	noDisplay    bool
	width        int
	height       int
	title        string
	volume       int
	seek         string
	length       string
	loop         int
	autoExit     bool
	noAudio      bool
	noVideo      bool
	fast         bool
	sync         string
	showMode     string
	videoFilters []string
	audioFilters []string
	dryRun       bool
}

var showModes = map[string]ffmpeg.ShowMode{
	"video": ffmpeg.ShowVideo,
	"waves": ffmpeg.ShowWaves,
	"rdft":  ffmpeg.ShowRDFT,
}

func (a *app) newPlayCmd() *cobra.Command {
	o := &playOptions{}
	cmd := &cobra.Command{
		Use:   "play LOCATOR",
		Short: "Play media with ffplay",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("%s takes exactly one locator", cmd.CommandPath())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPlay(cmd.Context(), o, args[0])
		},
	}

	f := cmd.Flags()
	f.BoolVar(&o.fullscreen, "fs", false, "start in fullscreen")
	f.BoolVar(&o.noDisplay, "nodisp", false, "disable the window (audio only)")
	f.IntVar(&o.width, "width", 0, "window width")
	f.IntVar(&o.height, "height", 0, "window height")
	f.StringVar(&o.title, "title", "", "window title")
	f.IntVar(&o.volume, "volume", -1, "startup volume, 0 to 100")
	f.StringVar(&o.seek, "ss", "", "start position")
	f.StringVar(&o.length, "t", "", "play only this long")
	f.IntVar(&o.loop, "loop", -1, "loop count (0 loops forever)")
	f.BoolVar(&o.autoExit, "autoexit", false, "exit at the end of the stream")
	f.BoolVar(&o.noAudio, "no-audio", false, "disable audio")
	f.BoolVar(&o.noVideo, "no-video", false, "disable video")
	f.BoolVar(&o.fast, "fast", false, "enable non-compliant decoding shortcuts")
	f.StringVar(&o.sync, "sync", "", "master clock (audio, video, ext)")
	f.StringVar(&o.showMode, "showmode", "", "window content (video, waves, rdft)")
	f.StringArrayVar(&o.videoFilters, "vf", nil, "video filter; repeatable")
	f.StringArrayVar(&o.audioFilters, "af", nil, "audio filter; repeatable")
	f.BoolVar(&o.dryRun, "dry-run", false, "print the command line instead of running it")

	return cmd
}

func (a *app) buildPlay(o *playOptions, locator string) (*ffmpeg.Command, error) {
	b := ffmpeg.NewPlayBuilder().
		Binary(a.cfg.FFmpeg.FFplayPath).
		Input(ffmpeg.NewInput(locator))

	if o.fullscreen {
		b.Fullscreen()
	}
	if o.noDisplay {
		b.NoDisplay()
	}
	if o.width > 0 || o.height > 0 {
		b.Size(o.width, o.height)
	}
	if o.title != "" {
		b.WindowTitle(o.title)
	}
	if o.volume >= 0 {
		b.Volume(o.volume)
	}
	if o.seek != "" {
		d, err := duration.ParseTimestamp(o.seek)
		if err != nil {
			return nil, usageErrorf("invalid --ss: %v", err)
		}
		b.Seek(d)
	}
	if o.length != "" {
		d, err := parseLength(o.length)
		if err != nil {
			return nil, usageErrorf("invalid --t: %v", err)
		}
		b.Duration(d)
	}
	if o.loop >= 0 {
		b.Loop(o.loop)
	}
	if o.autoExit {
		b.AutoExit()
	}
	if o.noAudio {
		b.NoAudio()
	}
	if o.noVideo {
		b.NoVideo()
	}
	if o.fast {
		b.Fast()
	}
	if o.sync != "" {
		b.Sync(ffmpeg.SyncMode(o.sync))
	}
	if o.showMode != "" {
		mode, ok := showModes[o.showMode]
		if !ok {
			return nil, usageErrorf("unknown --showmode %q", o.showMode)
		}
		b.ShowMode(mode)
	}
	for _, expr := range o.videoFilters {
		b.Filter(ffmpeg.RawFilter(expr))
	}
	for _, expr := range o.audioFilters {
		b.Filter(ffmpeg.RawAudioFilter(expr))
	}
	return b.Build()
}

func (a *app) runPlay(ctx context.Context, o *playOptions, locator string) (err error) {
	cmd, err := a.buildPlay(o, locator)
	if err != nil {
		return err
	}
	if o.dryRun {
		fmt.Fprintln(a.stdout, observability.ScrubURLCredentials(cmd.String()))
		return nil
	}

	logger := observability.LoggerFromContext(ctx)
	done := observability.TimedOperationWithError(ctx, logger, "play", &err)
	defer done()

	_, err = ffmpeg.NewProcess(cmd, a.processOptions()...).Run(ctx)
	return err
}
