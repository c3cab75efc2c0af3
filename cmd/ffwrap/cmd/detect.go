package cmd

import (
	"context"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/ffwrap/internal/observability"
	"github.com/jmylchreest/ffwrap/pkg/ffmpeg"
)

type detectOptions struct {
	format  string
	probeHW bool
	codecs  bool
}

func (a *app) newDetectCmd() *cobra.Command {
	o := &detectOptions{}
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Report the installed tools and hardware acceleration",
		Long: `Locate ffmpeg, ffprobe and ffplay, report the ffmpeg version and the
encoders, decoders, formats and hardware accelerators it supports.

With --hwaccel-probe each listed accelerator is verified with a short test
encode; otherwise accelerators are only listed.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runDetect(cmd.Context(), cmd, o)
		},
	}

	f := cmd.Flags()
	addFormatFlag(f, &o.format)
	f.BoolVar(&o.probeHW, "hwaccel-probe", false, "verify accelerators with a test encode")
	f.BoolVar(&o.codecs, "codecs", false, "list codecs in table output")
	return cmd
}

func (a *app) runDetect(ctx context.Context, cmd *cobra.Command, o *detectOptions) (err error) {
	if err := validateFormat(o.format); err != nil {
		return err
	}
	probeHW := a.cfg.FFmpeg.HWAccelProbe
	if cmd.Flags().Changed("hwaccel-probe") {
		probeHW = o.probeHW
	}

	logger := observability.LoggerFromContext(ctx)
	done := observability.TimedOperationWithError(ctx, logger, "detect", &err)
	defer done()

	d := ffmpeg.NewBinaryDetector(a.processOptions()...).WithHWAccelProbe(probeHW)
	for _, tool := range ffmpeg.Tools {
		d.WithBinary(tool, a.cfg.FFmpeg.BinaryPath(tool))
	}
	info, err := d.Detect(ctx)
	if err != nil {
		return err
	}

	if o.format != formatTable {
		return render(a.stdout, o.format, info)
	}
	a.renderDetect(info, o.codecs)
	return nil
}

func (a *app) renderDetect(info *ffmpeg.BinaryInfo, codecs bool) {
	t := newTable(a.stdout, "Installation", table.Row{"Item", "Value"})
	t.AppendRows([]table.Row{
		{"ffmpeg", info.FFmpegPath},
		{"ffprobe", orMissing(info.FFprobePath)},
		{"ffplay", orMissing(info.FFplayPath)},
		{"version", info.Version},
		{"encoders", numbers.Sprintf("%d", len(info.Encoders))},
		{"decoders", numbers.Sprintf("%d", len(info.Decoders))},
		{"formats", numbers.Sprintf("%d", len(info.Formats))},
	})
	t.Render()

	if len(info.HWAccels) > 0 {
		hw := newTable(a.stdout, "Hardware acceleration", table.Row{"Type", "Available", "Verified", "Device", "Encoders", "Reason"})
		for _, h := range info.HWAccels {
			hw.AppendRow(table.Row{
				h.Type, yesNo(h.Available), yesNo(h.Verified), h.Device, strings.Join(h.Encoders, " "), h.Reason,
			})
		}
		hw.Render()
	}

	if codecs {
		ct := newTable(a.stdout, "Codecs", table.Row{"Name", "Type", "Decode", "Encode", "Description"})
		for _, c := range info.Codecs {
			ct.AppendRow(table.Row{c.Name, c.Type, yesNo(c.CanDecode), yesNo(c.CanEncode), c.LongName})
		}
		ct.Render()
	}
}

func orMissing(path string) string {
	if path == "" {
		return "(not found)"
	}
	return path
}
