package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ffwrap/internal/observability"
	"github.com/jmylchreest/ffwrap/pkg/duration"
	"github.com/jmylchreest/ffwrap/pkg/ffmpeg"
)

type transcodeOptions struct {
	inputs        []string
	output        string
	format        string
	videoCodec    string
	audioCodec    string
	videoBitrate  string
	audioBitrate  string
	crf           int
	preset        string
	videoFilters  []string
	audioFilters  []string
	seek          string
	length        string
	hwaccel       string
	hwaccelDevice string
	threads       int
	overwrite     bool
	noOverwrite   bool
	noVideo       bool
	noAudio       bool
	maps          []string
	metadata      []string
	extra         string
	dryRun        bool
}

func (a *app) newTranscodeCmd() *cobra.Command {
	o := &transcodeOptions{}
	cmd := &cobra.Command{
		Use:   "transcode -i INPUT [-i INPUT...] -o OUTPUT",
		Short: "Run ffmpeg with a validated command line",
		Long: `Transcode one or more inputs into a single output with ffmpeg.

Progress is drawn on a single status line when stderr is a terminal and
logged periodically otherwise.

Examples:
  ffwrap transcode -i in.mkv -o out.mp4 --vcodec libx264 --crf 23 --acodec aac
  ffwrap transcode -i rtsp://cam/stream -o - -f mpegts --vcodec copy --t 30s
  ffwrap transcode -i in.mp4 -o out.webm --vf scale=1280:-2 --dry-run`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTranscode(cmd.Context(), o)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&o.inputs, "input", "i", nil, "input locator (file, URL, pipe:0 or -); repeatable")
	f.StringVarP(&o.output, "output", "o", "", "output locator")
	f.StringVarP(&o.format, "format", "f", "", "output container format")
	f.StringVar(&o.videoCodec, "vcodec", "", `video encoder, or "copy"`)
	f.StringVar(&o.audioCodec, "acodec", "", `audio encoder, or "copy"`)
	f.StringVar(&o.videoBitrate, "vbitrate", "", "video bitrate, e.g. 2M")
	f.StringVar(&o.audioBitrate, "abitrate", "", "audio bitrate, e.g. 128k")
	f.IntVar(&o.crf, "crf", -1, "video quality (crf or q depending on the encoder)")
	f.StringVar(&o.preset, "preset", "", "encoder preset")
	f.StringArrayVar(&o.videoFilters, "vf", nil, "video filter, e.g. scale=1280:-2; repeatable")
	f.StringArrayVar(&o.audioFilters, "af", nil, "audio filter; repeatable")
	f.StringVar(&o.seek, "ss", "", "input start position (HH:MM:SS.mmm or seconds)")
	f.StringVar(&o.length, "t", "", "output duration (HH:MM:SS.mmm, seconds or 30s)")
	f.StringVar(&o.hwaccel, "hwaccel", "", "hardware acceleration (auto, cuda, vaapi, qsv, ...)")
	f.StringVar(&o.hwaccelDevice, "hwaccel-device", "", "hardware device, e.g. /dev/dri/renderD128")
	f.IntVar(&o.threads, "threads", 0, "encoder threads (0 lets ffmpeg decide)")
	f.BoolVarP(&o.overwrite, "overwrite", "y", false, "overwrite the output without asking")
	f.BoolVarP(&o.noOverwrite, "no-overwrite", "n", false, "fail if the output exists")
	f.BoolVar(&o.noVideo, "no-video", false, "drop video")
	f.BoolVar(&o.noAudio, "no-audio", false, "drop audio")
	f.StringArrayVar(&o.maps, "map", nil, "stream selection, e.g. 0:v:0; repeatable")
	f.StringArrayVar(&o.metadata, "metadata", nil, "output metadata as key=value; repeatable")
	f.StringVar(&o.extra, "extra", "", "additional output options, shell quoted")
	f.BoolVar(&o.dryRun, "dry-run", false, "print the command line instead of running it")
	return cmd
}

func (a *app) buildTranscode(o *transcodeOptions) (*ffmpeg.Command, time.Duration, error) {
	if len(o.inputs) == 0 {
		return nil, 0, usageErrorf("at least one --input is required")
	}
	if o.output == "" {
		return nil, 0, usageErrorf("--output is required")
	}
	if o.overwrite && o.noOverwrite {
		return nil, 0, usageErrorf("--overwrite and --no-overwrite are mutually exclusive")
	}

	b := ffmpeg.NewTranscodeBuilder().Binary(a.cfg.FFmpeg.FFmpegPath)
	switch {
	case o.overwrite:
		b.Overwrite()
	case o.noOverwrite:
		b.NoOverwrite()
	}
	if o.hwaccel != "" {
		b.HWAccel(ffmpeg.HWAccel(o.hwaccel), o.hwaccelDevice)
	}
	if o.threads > 0 {
		b.Threads(o.threads)
	}

	var seek time.Duration
	if o.seek != "" {
		d, err := duration.ParseTimestamp(o.seek)
		if err != nil {
			return nil, 0, usageErrorf("invalid --ss: %v", err)
		}
		seek = d
	}
	for i, locator := range o.inputs {
		in := ffmpeg.NewInput(locator)
		if i == 0 && o.seek != "" {
			in.Seek(seek)
		}
		b.Input(in)
	}

	out := ffmpeg.NewOutput(o.output)
	var length time.Duration
	if o.length != "" {
		d, err := parseLength(o.length)
		if err != nil {
			return nil, 0, usageErrorf("invalid --t: %v", err)
		}
		length = d
		out.Duration(d)
	}
	if o.format != "" {
		out.Format(o.format)
	}
	if o.preset != "" {
		out.Preset(o.preset)
	}
	if o.videoCodec != "" {
		vc := ffmpeg.Codec(o.videoCodec)
		if o.videoBitrate != "" {
			vc.Bitrate(o.videoBitrate)
		}
		if o.crf >= 0 {
			vc.Quality(o.crf)
		}
		out.VideoCodec(vc)
	}
	if o.audioCodec != "" {
		ac := ffmpeg.Codec(o.audioCodec)
		if o.audioBitrate != "" {
			ac.Bitrate(o.audioBitrate)
		}
		out.AudioCodec(ac)
	}
	if o.noVideo {
		out.NoVideo()
	}
	if o.noAudio {
		out.NoAudio()
	}
	for _, m := range o.maps {
		out.Map(m)
	}
	for _, kv := range o.metadata {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, 0, usageErrorf("invalid --metadata %q: want key=value", kv)
		}
		out.Metadata(key, value)
	}
	if o.extra != "" {
		args, err := ffmpeg.ParseOptionsString(o.extra)
		if err != nil {
			return nil, 0, err
		}
		if err := ffmpeg.ValidateExtraArgs("extra", args); err != nil {
			return nil, 0, err
		}
		for _, w := range ffmpeg.ExtraArgWarnings(args) {
			a.logger.Warn("extra argument", slog.String("warning", w))
		}
		for i := 0; i < len(args); i++ {
			key := strings.TrimPrefix(args[i], "-")
			value := ""
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				value = args[i+1]
				i++
			}
			out.Option(key, value)
		}
	}
	b.Output(out)

	for _, expr := range o.videoFilters {
		b.Filter(ffmpeg.RawFilter(expr))
	}
	for _, expr := range o.audioFilters {
		b.Filter(ffmpeg.RawAudioFilter(expr))
	}

	cmd, err := b.Build()
	if err != nil {
		return nil, 0, err
	}
	return cmd, length, nil
}

func (a *app) runTranscode(ctx context.Context, o *transcodeOptions) (err error) {
	cmd, length, err := a.buildTranscode(o)
	if err != nil {
		return err
	}
	if o.dryRun {
		fmt.Fprintln(a.stdout, observability.ScrubURLCredentials(cmd.String()))
		return nil
	}

	logger := observability.LoggerFromContext(ctx)
	done := observability.TimedOperationWithError(ctx, logger, "transcode", &err)
	defer done()

	total := length
	if total == 0 && a.isTerminal {
		total = a.inputDuration(ctx, o.inputs[0])
	}
	view := newProgressView(a.stderr, a.isTerminal, total, logger)

	res, err := ffmpeg.NewProcess(cmd, a.processOptions()...).OnProgress(view.update).Run(ctx)
	view.finish()
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stderr, "done:", summary(res))
	return nil
}

// inputDuration probes locator for a progress percentage. Failures only
// cost the percentage.
func (a *app) inputDuration(ctx context.Context, locator string) time.Duration {
	prober := ffmpeg.NewProber(a.cfg.FFmpeg.FFprobePath, a.processOptions()...).WithTimeout(10 * time.Second)
	info, err := prober.QuickProbe(ctx, locator)
	if err != nil {
		a.logger.Debug("duration probe failed", slog.String("error", err.Error()))
		return 0
	}
	return info.Duration
}

// parseLength accepts ffmpeg timestamps and human-readable durations.
func parseLength(s string) (time.Duration, error) {
	if d, err := duration.ParseTimestamp(s); err == nil {
		return d, nil
	}
	return duration.Parse(s)
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageErrorf("%s takes no positional arguments, got %q", cmd.CommandPath(), args)
	}
	return nil
}
