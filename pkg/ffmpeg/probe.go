package ffmpeg

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ProbeSection is an ffprobe output section enabled with -show_<section>.
type ProbeSection string

const (
	SectionFormat   ProbeSection = "format"
	SectionStreams  ProbeSection = "streams"
	SectionChapters ProbeSection = "chapters"
	SectionPrograms ProbeSection = "programs"
	SectionPackets  ProbeSection = "packets"
	SectionFrames   ProbeSection = "frames"
	SectionError    ProbeSection = "error"
)

func (s ProbeSection) valid() bool {
	switch s {
	case SectionFormat, SectionStreams, SectionChapters, SectionPrograms,
		SectionPackets, SectionFrames, SectionError:
		return true
	}
	return false
}

// ProbeBuilder assembles an ffprobe invocation. Output is always JSON.
type ProbeBuilder struct {
	binary          string
	logLevel        LogLevel
	inputs          []*Input
	sections        []ProbeSection
	showEntries     string
	selectStreams   *StreamSpecifier
	countFrames     bool
	countPackets    bool
	readIntervals   string
	probeSize       int64
	analyzeDuration time.Duration
	extra           []string
}

// NewProbeBuilder creates a builder showing the format and streams sections.
func NewProbeBuilder() *ProbeBuilder {
	return &ProbeBuilder{
		logLevel: LogError,
		sections: []ProbeSection{SectionFormat, SectionStreams},
	}
}

// Binary sets an explicit ffprobe path.
func (b *ProbeBuilder) Binary(path string) *ProbeBuilder {
	b.binary = path
	return b
}

// LogLevel sets -loglevel.
func (b *ProbeBuilder) LogLevel(level LogLevel) *ProbeBuilder {
	b.logLevel = level
	return b
}

// Input sets the input. Only the format override and the arbitrary options of
// in are used. The input is copied.
func (b *ProbeBuilder) Input(in *Input) *ProbeBuilder {
	b.inputs = append(b.inputs, in.clone())
	return b
}

// Show adds output sections.
func (b *ProbeBuilder) Show(sections ...ProbeSection) *ProbeBuilder {
	for _, s := range sections {
		if !slices.Contains(b.sections, s) {
			b.sections = append(b.sections, s)
		}
	}
	return b
}

// ClearSections removes all output sections, including the defaults.
func (b *ProbeBuilder) ClearSections() *ProbeBuilder {
	b.sections = nil
	return b
}

// ShowEntries restricts the printed fields, e.g. "stream=codec_name,width".
func (b *ProbeBuilder) ShowEntries(entries string) *ProbeBuilder {
	b.showEntries = entries
	return b
}

// SelectStreams limits stream output to spec.
func (b *ProbeBuilder) SelectStreams(spec StreamSpecifier) *ProbeBuilder {
	b.selectStreams = &spec
	return b
}

// CountFrames counts decoded frames per stream.
func (b *ProbeBuilder) CountFrames() *ProbeBuilder {
	b.countFrames = true
	return b
}

// CountPackets counts packets per stream.
func (b *ProbeBuilder) CountPackets() *ProbeBuilder {
	b.countPackets = true
	return b
}

// ReadIntervals limits reading to the given intervals, e.g. "%+0.5".
func (b *ProbeBuilder) ReadIntervals(intervals string) *ProbeBuilder {
	b.readIntervals = intervals
	return b
}

// ProbeSize limits the bytes analysed to detect the format.
func (b *ProbeBuilder) ProbeSize(bytes int64) *ProbeBuilder {
	b.probeSize = bytes
	return b
}

// AnalyzeDuration limits how much media is analysed for stream info.
func (b *ProbeBuilder) AnalyzeDuration(d time.Duration) *ProbeBuilder {
	b.analyzeDuration = d
	return b
}

// Args appends raw arguments before the input.
func (b *ProbeBuilder) Args(args ...string) *ProbeBuilder {
	b.extra = append(b.extra, args...)
	return b
}

// Build validates the configuration and returns the command.
func (b *ProbeBuilder) Build() (*Command, error) {
	if len(b.inputs) != 1 {
		return nil, invalidArg("inputs", fmt.Sprintf("exactly one input is required, got %d", len(b.inputs)))
	}
	if len(b.sections) == 0 {
		return nil, invalidArg("sections", "at least one output section is required")
	}
	in := b.inputs[0]
	locator, err := ValidateLocator("inputs[0].locator", in.locator)
	if err != nil {
		return nil, err
	}

	var args []string
	if b.logLevel != "" {
		if !b.logLevel.Valid() {
			return nil, invalidArg("log_level", fmt.Sprintf("unknown level %q", b.logLevel))
		}
		args = append(args, "-loglevel", string(b.logLevel))
	}
	args = append(args, "-hide_banner", "-print_format", "json")

	for _, s := range b.sections {
		if !s.valid() {
			return nil, invalidArg("sections", fmt.Sprintf("unknown section %q", s))
		}
		args = append(args, "-show_"+string(s))
	}

	if b.showEntries != "" {
		if containsControl(b.showEntries) || strings.HasPrefix(b.showEntries, "-") {
			return nil, invalidArg("show_entries", "invalid entries")
		}
		args = append(args, "-show_entries", b.showEntries)
	}
	if b.selectStreams != nil {
		if err := b.selectStreams.Validate(); err != nil {
			return nil, invalidArg("select_streams", err.Error())
		}
		if !b.selectStreams.IsAll() {
			args = append(args, "-select_streams", b.selectStreams.String())
		}
	}
	if b.countFrames {
		args = append(args, "-count_frames")
	}
	if b.countPackets {
		args = append(args, "-count_packets")
	}
	if b.readIntervals != "" {
		if containsControl(b.readIntervals) || strings.HasPrefix(b.readIntervals, "-") {
			return nil, invalidArg("read_intervals", "invalid intervals")
		}
		args = append(args, "-read_intervals", b.readIntervals)
	}
	if b.probeSize < 0 {
		return nil, invalidArg("probesize", "must not be negative")
	}
	if b.probeSize > 0 {
		args = append(args, "-probesize", strconv.FormatInt(b.probeSize, 10))
	}
	if b.analyzeDuration < 0 {
		return nil, invalidArg("analyzeduration", "must not be negative")
	}
	if b.analyzeDuration > 0 {
		args = append(args, "-analyzeduration", strconv.FormatInt(b.analyzeDuration.Microseconds(), 10))
	}

	if in.format != "" {
		if err := ValidateOptionKey("inputs[0].format", in.format); err != nil {
			return nil, err
		}
		args = append(args, "-f", in.format)
	}
	if err := in.options.validate("inputs[0].options"); err != nil {
		return nil, err
	}
	args = append(args, in.options.args()...)

	if err := ValidateExtraArgs("extra", b.extra); err != nil {
		return nil, err
	}
	args = append(args, b.extra...)

	args = append(args, "-i", locator)
	return &Command{Tool: ToolFFprobe, Binary: b.binary, Args: args}, nil
}

// Prober runs ffprobe against single inputs and decodes the result.
type Prober struct {
	binary  string
	timeout time.Duration
	opts    []ProcessOption
}

// NewProber creates a prober. An empty binary resolves ffprobe at run time.
func NewProber(binary string, opts ...ProcessOption) *Prober {
	return &Prober{
		binary:  binary,
		timeout: 30 * time.Second,
		opts:    opts,
	}
}

// WithTimeout sets the per-probe timeout.
func (p *Prober) WithTimeout(timeout time.Duration) *Prober {
	p.timeout = timeout
	return p
}

// Probe shows the format and streams of locator.
func (p *Prober) Probe(ctx context.Context, locator string) (*ProbeResult, error) {
	in := NewInput(locator)
	if isNetworkLocator(locator) {
		in.Reconnect()
	}
	return p.Run(ctx, NewProbeBuilder().Input(in).Show(SectionChapters, SectionPrograms))
}

// QuickProbe reads only the first half second of locator with tight analysis
// limits, for fast startup on live sources.
func (p *Prober) QuickProbe(ctx context.Context, locator string) (*StreamInfo, error) {
	b := NewProbeBuilder().
		Input(NewInput(locator)).
		ReadIntervals("%+0.5").
		AnalyzeDuration(2 * time.Second).
		ProbeSize(2_000_000)
	res, err := p.Run(ctx, b)
	if err != nil {
		return nil, err
	}
	return res.Simplify(), nil
}

// Run executes a prepared builder and decodes the JSON document.
func (p *Prober) Run(ctx context.Context, b *ProbeBuilder) (*ProbeResult, error) {
	if p.binary != "" {
		b.Binary(p.binary)
	}
	cmd, err := b.Build()
	if err != nil {
		return nil, err
	}

	opts := slices.Clone(p.opts)
	if p.timeout > 0 {
		opts = append(opts, WithTimeout(p.timeout))
	}
	res, err := NewProcess(cmd, opts...).Run(ctx)
	if err != nil {
		return nil, err
	}
	return DecodeProbeResult(res.Document)
}

func isNetworkLocator(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
