package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/ffwrap/internal/observability"
	"github.com/jmylchreest/ffwrap/pkg/duration"
	"github.com/jmylchreest/ffwrap/pkg/ffmpeg"
)

type probeOptions struct {
	format        string
	full          bool
	quick         bool
	concurrency   int
	showEntries   string
	selectStreams string
	countFrames   bool
	sections      []string
}

// probeReport is the outcome for one locator.
type probeReport struct {
	Locator string              `json:"locator" yaml:"locator"`
	Info    *ffmpeg.StreamInfo  `json:"info,omitempty" yaml:"info,omitempty"`
	Full    *ffmpeg.ProbeResult `json:"probe,omitempty" yaml:"-"`
	Error   string              `json:"error,omitempty" yaml:"error,omitempty"`
}

func (a *app) newProbeCmd() *cobra.Command {
	o := &probeOptions{}
	cmd := &cobra.Command{
		Use:   "probe LOCATOR...",
		Short: "Inspect media with ffprobe",
		Long: `Probe one or more files or URLs with ffprobe and print their streams.

Locators are probed concurrently. A failed probe is reported alongside the
others and makes the command exit non-zero.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageErrorf("%s requires at least one locator", cmd.CommandPath())
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProbe(cmd.Context(), o, args)
		},
	}

	f := cmd.Flags()
	addFormatFlag(f, &o.format)
	f.BoolVar(&o.full, "full", false, "include the complete ffprobe document (json and yaml output)")
	f.BoolVar(&o.quick, "quick", false, "read only the first half second, for live sources")
	f.IntVarP(&o.concurrency, "concurrency", "c", 4, "maximum concurrent probes")
	f.StringVar(&o.showEntries, "show-entries", "", "restrict the reported entries, e.g. stream=codec_name")
	f.StringVar(&o.selectStreams, "select-streams", "", "stream specifier, e.g. v:0 or a")
	f.BoolVar(&o.countFrames, "count-frames", false, "decode the input to count frames")
	f.StringSliceVar(&o.sections, "show", nil, "extra sections (chapters, programs, packets, frames, error)")

	return cmd
}

func (a *app) probeBuilder(o *probeOptions, locator string) (*ffmpeg.ProbeBuilder, error) {
	b := ffmpeg.NewProbeBuilder().Input(ffmpeg.NewInput(locator))
	if o.quick {
		b.ReadIntervals("%+0.5").AnalyzeDuration(2 * time.Second).ProbeSize(2_000_000)
	}
	if o.showEntries != "" {
		b.ShowEntries(o.showEntries)
	}
	if o.selectStreams != "" {
		spec, err := ffmpeg.ParseStreamSpecifier(o.selectStreams)
		if err != nil {
			return nil, err
		}
		b.SelectStreams(spec)
	}
	if o.countFrames {
		b.CountFrames()
	}
	for _, s := range o.sections {
		b.Show(ffmpeg.ProbeSection(s))
	}
	return b, nil
}

func (a *app) runProbe(ctx context.Context, o *probeOptions, locators []string) (err error) {
	if err := validateFormat(o.format); err != nil {
		return err
	}
	if o.concurrency < 1 {
		return usageErrorf("--concurrency must be at least 1")
	}

	logger := observability.LoggerFromContext(ctx)
	done := observability.TimedOperationWithError(ctx, logger, "probe", &err)
	defer done()

	prober := ffmpeg.NewProber(a.cfg.FFmpeg.FFprobePath, a.processOptions()...).
		WithTimeout(a.cfg.Process.Timeout.Duration())

	reports := make([]probeReport, len(locators))
	errs := make([]error, len(locators))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, locator := range locators {
		g.Go(func() error {
			reports[i].Locator = locator
			b, err := a.probeBuilder(o, locator)
			if err == nil {
				var res *ffmpeg.ProbeResult
				res, err = prober.Run(ctx, b)
				if err == nil {
					reports[i].Info = res.Simplify()
					if o.full {
						reports[i].Full = res
					}
				}
			}
			if err != nil {
				logger.Debug("probe failed", slog.String("locator", locator), slog.String("error", err.Error()))
				reports[i].Error = err.Error()
				errs[i] = fmt.Errorf("%s: %w", locator, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := a.renderProbe(o, reports); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func (a *app) renderProbe(o *probeOptions, reports []probeReport) error {
	switch o.format {
	case formatJSON:
		return render(a.stdout, o.format, reports)
	case formatYAML:
		if !o.full {
			return render(a.stdout, o.format, reports)
		}
		generic, err := toGeneric(reports)
		if err != nil {
			return err
		}
		return render(a.stdout, o.format, generic)
	}

	for _, r := range reports {
		if r.Info == nil {
			continue
		}
		renderStreamTable(a.stdout, r.Locator, r.Info)
	}
	return nil
}

func renderStreamTable(w io.Writer, locator string, info *ffmpeg.StreamInfo) {
	t := newTable(w, locator, table.Row{"#", "Type", "Codec", "Details", "Language", "Bitrate", "Default"})
	for _, tr := range info.Tracks {
		t.AppendRow(table.Row{
			tr.Index, tr.Type, tr.Codec, trackDetails(tr), tr.Language, formatBitrate(tr.Bitrate), yesNo(tr.Default),
		})
	}

	length := "live"
	if !info.IsLive || info.Duration > 0 {
		length = duration.FormatTimestamp(info.Duration)
	}
	t.AppendFooter(table.Row{"", info.Container, length, "", "", formatBitrate(info.Bitrate), ""})
	t.Render()
}

func trackDetails(tr ffmpeg.TrackInfo) string {
	switch tr.Type {
	case "video":
		if tr.Width == 0 {
			return tr.PixFmt
		}
		return fmt.Sprintf("%dx%d %s @ %.3g fps", tr.Width, tr.Height, tr.PixFmt, tr.Framerate)
	case "audio":
		s := numbers.Sprintf("%d Hz", tr.SampleRate)
		if tr.Layout != "" {
			return s + " " + tr.Layout
		}
		return numbers.Sprintf("%s %d ch", s, tr.Channels)
	default:
		return tr.Title
	}
}

func formatBitrate(bps int64) string {
	if bps <= 0 {
		return ""
	}
	return numbers.Sprintf("%d kb/s", bps/1000)
}
