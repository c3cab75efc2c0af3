package ffmpeg

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"
)

// HWAccelInfo describes one accelerator listed by "ffmpeg -hwaccels".
type HWAccelInfo struct {
	Type HWAccel `json:"type" yaml:"type"`
	// Available is true when the accelerator is listed and, if probing was
	// enabled, its test encode succeeded.
	Available bool `json:"available" yaml:"available"`
	// Verified is true when a test encode was attempted.
	Verified bool     `json:"verified" yaml:"verified"`
	Device   string   `json:"device,omitempty" yaml:"device,omitempty"`
	Encoders []string `json:"encoders,omitempty" yaml:"encoders,omitempty"`
	Reason   string   `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// encoderSuffixes maps accelerators to the suffix of their encoder names.
var encoderSuffixes = map[HWAccel]string{
	HWAccelCUDA:         "_nvenc",
	HWAccelQSV:          "_qsv",
	HWAccelVAAPI:        "_vaapi",
	HWAccelVideoToolbox: "_videotoolbox",
	HWAccelVulkan:       "_vulkan",
}

// accelPlatforms restricts accelerators that only exist on one OS.
var accelPlatforms = map[HWAccel]string{
	HWAccelVAAPI:        "linux",
	HWAccelVideoToolbox: "darwin",
	HWAccelDXVA2:        "windows",
	HWAccelD3D11VA:      "windows",
}

var vaapiDevices = []string{"/dev/dri/renderD128", "/dev/dri/renderD129"}

// HWAccelDetector lists hardware accelerators and optionally verifies each
// with a short test encode of a synthetic source.
type HWAccelDetector struct {
	ffmpegPath string
	opts       []ProcessOption
	probe      bool
	timeout    time.Duration
}

// NewHWAccelDetector creates a detector for the given ffmpeg.
func NewHWAccelDetector(ffmpegPath string, opts ...ProcessOption) *HWAccelDetector {
	return &HWAccelDetector{
		ffmpegPath: ffmpegPath,
		opts:       opts,
		timeout:    10 * time.Second,
	}
}

// WithProbe enables test encodes.
func (d *HWAccelDetector) WithProbe(enabled bool) *HWAccelDetector {
	d.probe = enabled
	return d
}

// Detect lists the accelerators. encoders is the full encoder list of the
// binary and is used to attach matching hardware encoders.
func (d *HWAccelDetector) Detect(ctx context.Context, encoders []string) ([]HWAccelInfo, error) {
	out, err := queryTool(ctx, d.ffmpegPath, d.timeout, d.opts, "-hide_banner", "-hwaccels")
	if err != nil {
		return nil, fmt.Errorf("getting hwaccels: %w", err)
	}

	var results []HWAccelInfo
	for _, accel := range parseHWAccels(out) {
		info := HWAccelInfo{
			Type:      accel,
			Available: true,
			Encoders:  matchEncoders(accel, encoders),
		}
		if goos, ok := accelPlatforms[accel]; ok && goos != runtime.GOOS {
			info.Available = false
			info.Reason = "not supported on " + runtime.GOOS
		} else if d.probe {
			d.verify(ctx, &info)
		}
		results = append(results, info)
	}
	return results, nil
}

func (d *HWAccelDetector) verify(ctx context.Context, info *HWAccelInfo) {
	info.Verified = true

	devices := []string{""}
	if info.Type == HWAccelVAAPI {
		devices = vaapiDevices
	}
	var lastErr error
	for _, device := range devices {
		cmd, err := testEncodeCommand(d.ffmpegPath, info.Type, device, info.Encoders)
		if err != nil {
			lastErr = err
			continue
		}
		opts := append(slices.Clone(d.opts), WithTimeout(d.timeout), WithMonitorInterval(0))
		if _, err := NewProcess(cmd, opts...).Run(ctx); err != nil {
			lastErr = err
			continue
		}
		info.Available = true
		info.Device = device
		info.Reason = ""
		return
	}
	info.Available = false
	if lastErr != nil {
		info.Reason = lastErr.Error()
	}
}

// testEncodeCommand builds a tenth of a second encode of a null source with
// the accelerator's first encoder, or a plain decode test when it has none.
func testEncodeCommand(ffmpegPath string, accel HWAccel, device string, encoders []string) (*Command, error) {
	b := NewTranscodeBuilder().Binary(ffmpegPath)
	in := NewInput("nullsrc=s=320x240:d=0.1").Format("lavfi").HWAccel(HWAccelNone)
	out := NewOutput("-").Format("null").Duration(10 * time.Millisecond)

	switch accel {
	case HWAccelVAAPI:
		b.HWAccel(accel, device).GlobalArgs("-filter_hw_device", "hw").
			Filter(NewFilter("format", "nv12"), NewFilter("hwupload"))
	case HWAccelQSV:
		b.HWAccel(accel, "qsv").
			Filter(NewFilter("hwupload").Arg("extra_hw_frames", "64"), NewFilter("format", "qsv"))
	case HWAccelVulkan:
		b.HWAccel(accel, "0")
	default:
		in.HWAccel(accel)
	}

	if len(encoders) > 0 {
		out.VideoCodec(Codec(preferredEncoder(encoders)))
	}
	return b.Input(in).Output(out).Build()
}

// preferredEncoder picks the h264 encoder when present.
func preferredEncoder(encoders []string) string {
	for _, e := range encoders {
		if strings.HasPrefix(e, "h264_") {
			return e
		}
	}
	return encoders[0]
}

// parseHWAccels reads "ffmpeg -hwaccels" output.
func parseHWAccels(output string) []HWAccel {
	var accels []HWAccel
	inList := false
	for line := range strings.Lines(output) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Hardware acceleration methods") {
			inList = true
			continue
		}
		if inList && line != "" {
			accels = append(accels, HWAccel(line))
		}
	}
	return accels
}

func matchEncoders(accel HWAccel, encoders []string) []string {
	suffix, ok := encoderSuffixes[accel]
	if !ok {
		return nil
	}
	var out []string
	for _, e := range encoders {
		if strings.HasSuffix(e, suffix) {
			out = append(out, e)
		}
	}
	return out
}
