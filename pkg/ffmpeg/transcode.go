package ffmpeg

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jmylchreest/ffwrap/pkg/duration"
)

// streamingMovFlags fragment mp4 output so it can be consumed while written.
var streamingMovFlags = []string{"frag_keyframe", "empty_moov", "default_base_moof"}

// fragmentableFormats accept -movflags.
var fragmentableFormats = map[string]bool{"mp4": true, "mov": true, "ismv": true, "ipod": true}

// TranscodeBuilder assembles an ffmpeg invocation with a fluent API. Setters
// never fail; Build validates everything at once.
type TranscodeBuilder struct {
	binary       string
	global       GlobalOptions
	inputs       []*Input
	outputs      []*Output
	videoFilters []*Filter
	audioFilters []*Filter
	graph        *FilterGraph
}

// NewTranscodeBuilder creates a builder with DefaultGlobalOptions.
func NewTranscodeBuilder() *TranscodeBuilder {
	return &TranscodeBuilder{global: DefaultGlobalOptions()}
}

// Binary sets an explicit ffmpeg path.
func (b *TranscodeBuilder) Binary(path string) *TranscodeBuilder {
	b.binary = path
	return b
}

// Global replaces the global options.
func (b *TranscodeBuilder) Global(g GlobalOptions) *TranscodeBuilder {
	g.Extra = slices.Clone(g.Extra)
	b.global = g
	return b
}

// LogLevel sets -loglevel.
func (b *TranscodeBuilder) LogLevel(level LogLevel) *TranscodeBuilder {
	b.global.LogLevel = level
	return b
}

// Overwrite allows replacing existing output files (-y).
func (b *TranscodeBuilder) Overwrite() *TranscodeBuilder {
	b.global.Overwrite = OverwriteAlways
	return b
}

// NoOverwrite makes the tool fail instead of replacing output files (-n).
func (b *TranscodeBuilder) NoOverwrite() *TranscodeBuilder {
	b.global.Overwrite = OverwriteNever
	return b
}

// HWAccel sets the default acceleration backend for all inputs. A non-empty
// device also initialises it with -init_hw_device.
func (b *TranscodeBuilder) HWAccel(accel HWAccel, device string) *TranscodeBuilder {
	b.global.HWAccel = accel
	b.global.HWDevice = device
	return b
}

// Threads sets the global thread count.
func (b *TranscodeBuilder) Threads(n int) *TranscodeBuilder {
	b.global.Threads = n
	return b
}

// Progress sets a -progress target, e.g. "pipe:2" to interleave machine
// readable progress blocks with the diagnostics.
func (b *TranscodeBuilder) Progress(target string) *TranscodeBuilder {
	b.global.Progress = target
	return b
}

// GlobalArgs appends raw global arguments.
func (b *TranscodeBuilder) GlobalArgs(args ...string) *TranscodeBuilder {
	b.global.Extra = append(b.global.Extra, args...)
	return b
}

// Input appends an input. The input is copied; later changes to in have no
// effect on the builder.
func (b *TranscodeBuilder) Input(in *Input) *TranscodeBuilder {
	b.inputs = append(b.inputs, in.clone())
	return b
}

// Output appends an output. The output is copied.
func (b *TranscodeBuilder) Output(out *Output) *TranscodeBuilder {
	b.outputs = append(b.outputs, out.clone())
	return b
}

// Filter appends filters to the video or audio chain according to their media
// type. Filters run in the order they were added.
func (b *TranscodeBuilder) Filter(filters ...*Filter) *TranscodeBuilder {
	for _, f := range filters {
		if f.media == StreamAudio {
			b.audioFilters = append(b.audioFilters, f)
		} else {
			b.videoFilters = append(b.videoFilters, f)
		}
	}
	return b
}

// FilterComplex sets the complex filtergraph.
func (b *TranscodeBuilder) FilterComplex(g *FilterGraph) *TranscodeBuilder {
	b.graph = g
	return b
}

// Build validates the configuration and returns the command. No partial
// argument vector is ever returned.
func (b *TranscodeBuilder) Build() (*Command, error) {
	if len(b.inputs) == 0 {
		return nil, invalidArg("inputs", "at least one input is required")
	}
	if len(b.outputs) == 0 {
		return nil, invalidArg("outputs", "at least one output is required")
	}

	args, err := b.globalArgs()
	if err != nil {
		return nil, err
	}

	for i, in := range b.inputs {
		inArgs, err := b.inputArgs(fmt.Sprintf("inputs[%d]", i), in)
		if err != nil {
			return nil, err
		}
		args = append(args, inArgs...)
	}

	filterArgs, err := b.filterArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, filterArgs...)

	for i, out := range b.outputs {
		outArgs, err := outputArgs(fmt.Sprintf("outputs[%d]", i), out)
		if err != nil {
			return nil, err
		}
		args = append(args, outArgs...)
	}

	return &Command{Tool: ToolFFmpeg, Binary: b.binary, Args: args}, nil
}

func (b *TranscodeBuilder) globalArgs() ([]string, error) {
	g := b.global
	var args []string

	if g.LogLevel != "" {
		if !g.LogLevel.Valid() {
			return nil, invalidArg("global.log_level", fmt.Sprintf("unknown level %q", g.LogLevel))
		}
		args = append(args, "-loglevel", string(g.LogLevel))
	}
	switch g.Overwrite {
	case OverwriteAlways:
		args = append(args, "-y")
	case OverwriteNever:
		args = append(args, "-n")
	}
	if g.HideBanner {
		args = append(args, "-hide_banner")
	}
	if g.NoStdin {
		args = append(args, "-nostdin")
	}
	if g.Stats {
		args = append(args, "-stats")
	} else {
		args = append(args, "-nostats")
	}
	if g.Progress != "" {
		target, err := ValidateLocator("global.progress", g.Progress)
		if err != nil {
			return nil, err
		}
		args = append(args, "-progress", target)
	}
	if g.Threads < 0 {
		return nil, invalidArg("global.threads", "must not be negative")
	}
	if g.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(g.Threads))
	}
	if g.HWAccel.Enabled() {
		if err := ValidateOptionKey("global.hwaccel", string(g.HWAccel)); err != nil {
			return nil, err
		}
	}
	// auto is valid for -hwaccel but not as a device type.
	if g.HWDevice != "" && g.HWAccel.Enabled() && g.HWAccel != HWAccelAuto {
		if containsControl(g.HWDevice) || strings.HasPrefix(g.HWDevice, "-") {
			return nil, invalidArg("global.hw_device", fmt.Sprintf("invalid device %q", g.HWDevice))
		}
		args = append(args, "-init_hw_device", fmt.Sprintf("%s=hw:%s", g.HWAccel, g.HWDevice))
	}
	if err := ValidateExtraArgs("global.extra", g.Extra); err != nil {
		return nil, err
	}
	return append(args, g.Extra...), nil
}

func (b *TranscodeBuilder) inputArgs(field string, in *Input) ([]string, error) {
	locator, err := ValidateLocator(field+".locator", in.locator)
	if err != nil {
		return nil, err
	}

	var args []string

	accel := in.hwaccel
	if accel == "" {
		accel = b.global.HWAccel
	}
	if accel.Enabled() {
		if err := ValidateOptionKey(field+".hwaccel", string(accel)); err != nil {
			return nil, err
		}
		args = append(args, "-hwaccel", string(accel))
		if in.hwaccelDevice != "" {
			args = append(args, "-hwaccel_device", in.hwaccelDevice)
		}
		if in.hwaccelOutputFormat != "" {
			args = append(args, "-hwaccel_output_format", in.hwaccelOutputFormat)
		}
	}

	if in.hasSeek {
		if in.seek < 0 {
			return nil, invalidArg(field+".seek", "must not be negative")
		}
		args = append(args, "-ss", duration.FormatTimestamp(in.seek))
	}
	if in.duration < 0 {
		return nil, invalidArg(field+".duration", "must not be negative")
	}
	if in.duration > 0 {
		args = append(args, "-t", duration.FormatTimestamp(in.duration))
	}

	str := []struct{ flag, value string }{
		{"-f", in.format},
		{"-c:v", in.decoder},
		{"-framerate", in.framerate},
		{"-video_size", in.videoSize},
		{"-pixel_format", in.pixelFormat},
	}
	for _, s := range str {
		if s.value == "" {
			continue
		}
		if containsControl(s.value) || strings.HasPrefix(s.value, "-") {
			return nil, invalidArg(field+"."+strings.TrimPrefix(s.flag, "-"), fmt.Sprintf("invalid value %q", s.value))
		}
		args = append(args, s.flag, s.value)
	}

	if in.sampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(in.sampleRate))
	}
	if in.channels > 0 {
		args = append(args, "-ac", strconv.Itoa(in.channels))
	}
	if in.hasStreamLoop {
		if in.streamLoop < -1 {
			return nil, invalidArg(field+".stream_loop", "must be -1 or greater")
		}
		args = append(args, "-stream_loop", strconv.Itoa(in.streamLoop))
	}
	if in.realtime {
		args = append(args, "-re")
	}
	if in.threadQueueSize > 0 {
		args = append(args, "-thread_queue_size", strconv.Itoa(in.threadQueueSize))
	}

	if err := in.options.validate(field + ".options"); err != nil {
		return nil, err
	}
	args = append(args, in.options.args()...)

	return append(args, "-i", locator), nil
}

func (b *TranscodeBuilder) filterArgs() ([]string, error) {
	var args []string
	if len(b.videoFilters) > 0 {
		vf, err := joinFilters(b.videoFilters)
		if err != nil {
			return nil, err
		}
		args = append(args, "-vf", vf)
	}
	if len(b.audioFilters) > 0 {
		af, err := joinFilters(b.audioFilters)
		if err != nil {
			return nil, err
		}
		args = append(args, "-af", af)
	}
	if b.graph != nil {
		fc, err := b.graph.Render()
		if err != nil {
			return nil, err
		}
		args = append(args, "-filter_complex", fc)
	}
	return args, nil
}

func outputArgs(field string, out *Output) ([]string, error) {
	locator, err := ValidateLocator(field+".locator", out.locator)
	if err != nil {
		return nil, err
	}

	var args []string

	for _, m := range out.maps {
		if m == "" || containsControl(m) || strings.ContainsAny(m, " \t") {
			return nil, invalidArg(field+".map", fmt.Sprintf("invalid map selector %q", m))
		}
		args = append(args, "-map", m)
	}

	codecs := []struct {
		name  string
		typ   StreamType
		codec *CodecOptions
	}{
		{"video_codec", StreamVideo, out.video},
		{"audio_codec", StreamAudio, out.audio},
		{"subtitle_codec", StreamSubtitle, out.subtitle},
	}
	for _, c := range codecs {
		if c.codec == nil {
			continue
		}
		if err := c.codec.validate(field + "." + c.name); err != nil {
			return nil, err
		}
		args = append(args, c.codec.args(c.typ)...)
	}

	if out.noVideo {
		args = append(args, "-vn")
	}
	if out.noAudio {
		args = append(args, "-an")
	}
	if out.noSubtitle {
		args = append(args, "-sn")
	}

	if out.hasSeek {
		if out.seek < 0 {
			return nil, invalidArg(field+".seek", "must not be negative")
		}
		args = append(args, "-ss", duration.FormatTimestamp(out.seek))
	}
	if out.duration < 0 {
		return nil, invalidArg(field+".duration", "must not be negative")
	}
	if out.duration > 0 {
		args = append(args, "-t", duration.FormatTimestamp(out.duration))
	}
	if out.fileSizeLimit > 0 {
		args = append(args, "-fs", strconv.FormatInt(out.fileSizeLimit, 10))
	}
	if out.videoFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(out.videoFrames))
	}

	str := []struct{ flag, value string }{
		{"-preset", out.preset},
		{"-tune", out.tune},
	}
	for _, s := range str {
		if s.value == "" {
			continue
		}
		if containsControl(s.value) || strings.HasPrefix(s.value, "-") {
			return nil, invalidArg(field+"."+strings.TrimPrefix(s.flag, "-"), fmt.Sprintf("invalid value %q", s.value))
		}
		args = append(args, s.flag, s.value)
	}
	if out.copyTS {
		args = append(args, "-copyts")
	}
	if out.avoidNegativeTS != "" {
		if err := ValidateOptionKey(field+".avoid_negative_ts", out.avoidNegativeTS); err != nil {
			return nil, err
		}
		args = append(args, "-avoid_negative_ts", out.avoidNegativeTS)
	}

	muxArgs, err := muxerArgs(field, out)
	if err != nil {
		return nil, err
	}
	args = append(args, muxArgs...)

	keys := make([]string, 0, len(out.metadata))
	for k := range out.metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		tok, err := MetadataToken(field+".metadata", k, out.metadata[k])
		if err != nil {
			return nil, err
		}
		args = append(args, "-metadata", tok)
	}

	for _, sm := range out.streamMetadata {
		if err := sm.spec.Validate(); err != nil {
			return nil, invalidArg(field+".stream_metadata", err.Error())
		}
		tok, err := MetadataToken(field+".stream_metadata", sm.key, sm.value)
		if err != nil {
			return nil, err
		}
		flag := "-metadata:s"
		if !sm.spec.IsAll() {
			flag += ":" + sm.spec.String()
		}
		args = append(args, flag, tok)
	}

	if err := out.options.validate(field + ".options"); err != nil {
		return nil, err
	}
	args = append(args, out.options.args()...)

	return append(args, locator), nil
}

func muxerArgs(field string, out *Output) ([]string, error) {
	var args []string

	format := out.format
	if format == "" && out.streaming {
		format = "mp4"
	}
	if format != "" {
		if err := ValidateOptionKey(field+".format", format); err != nil {
			return nil, err
		}
		args = append(args, "-f", format)
	}

	flags := slices.Clone(out.movflags)
	if out.streaming && fragmentableFormats[format] {
		for _, f := range streamingMovFlags {
			if !slices.Contains(flags, f) {
				flags = append(flags, f)
			}
		}
	}
	if len(flags) > 0 {
		for _, f := range flags {
			if err := ValidateOptionKey(field+".movflags", strings.TrimPrefix(f, "+")); err != nil {
				return nil, err
			}
		}
		args = append(args, "-movflags", strings.Join(flags, "+"))
	}

	if err := out.muxerOptions.validate(field + ".muxer_options"); err != nil {
		return nil, err
	}
	args = append(args, out.muxerOptions.args()...)

	if out.streaming {
		if _, ok := out.muxerOptions.Get("flush_packets"); !ok {
			args = append(args, "-flush_packets", "1")
		}
	}
	return args, nil
}
