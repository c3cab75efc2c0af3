package ffmpeg

import (
	"iter"
	"maps"
	"slices"
	"time"
)

// Options is an insertion-ordered set of unique option names with values.
// Setting an existing key replaces its value in place. The zero value is ready
// to use.
type Options struct {
	keys   []string
	values map[string]string
}

// Set stores value under key.
func (o *Options) Set(key, value string) {
	if o.values == nil {
		o.values = make(map[string]string)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key.
func (o *Options) Get(key string) (string, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Delete removes key.
func (o *Options) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	o.keys = slices.DeleteFunc(o.keys, func(k string) bool { return k == key })
}

// Len returns the number of options.
func (o *Options) Len() int {
	return len(o.keys)
}

// All iterates options in insertion order.
func (o *Options) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range o.keys {
			if !yield(k, o.values[k]) {
				return
			}
		}
	}
}

func (o *Options) clone() Options {
	return Options{keys: slices.Clone(o.keys), values: maps.Clone(o.values)}
}

// validate checks every key and value. field prefixes the error field.
func (o *Options) validate(field string) error {
	for k, v := range o.All() {
		if err := ValidateOptionKey(field, k); err != nil {
			return err
		}
		if containsControl(v) {
			return invalidArg(field+"."+k, "value contains control characters")
		}
	}
	return nil
}

// args renders options as "-key value" pairs. Empty values emit the flag alone.
func (o *Options) args() []string {
	out := make([]string, 0, o.Len()*2)
	for k, v := range o.All() {
		out = append(out, "-"+k)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Input describes one source for a tool invocation.
type Input struct {
	locator string

	seek     time.Duration
	hasSeek  bool
	duration time.Duration
	format   string

	hwaccel             HWAccel
	hwaccelDevice       string
	hwaccelOutputFormat string

	decoder         string
	framerate       string
	videoSize       string
	pixelFormat     string
	sampleRate      int
	channels        int
	streamLoop      int
	hasStreamLoop   bool
	realtime        bool
	threadQueueSize int

	options Options
}

// NewInput creates an input reading from locator: a file path, device
// identifier, URL, "pipe:N" or "-" for stdin.
func NewInput(locator string) *Input {
	return &Input{locator: locator}
}

// Locator returns the input locator.
func (i *Input) Locator() string { return i.locator }

// Seek sets the input seek offset (-ss before -i).
func (i *Input) Seek(d time.Duration) *Input {
	i.seek = d
	i.hasSeek = true
	return i
}

// Duration limits how much of the input is read (-t before -i).
func (i *Input) Duration(d time.Duration) *Input {
	i.duration = d
	return i
}

// Format forces the demuxer (-f).
func (i *Input) Format(format string) *Input {
	i.format = format
	return i
}

// HWAccel sets the decode acceleration backend for this input.
func (i *Input) HWAccel(h HWAccel) *Input {
	i.hwaccel = h
	return i
}

// HWAccelDevice selects the acceleration device.
func (i *Input) HWAccelDevice(device string) *Input {
	i.hwaccelDevice = device
	return i
}

// HWAccelOutputFormat sets the pixel format frames are kept in after decode.
func (i *Input) HWAccelOutputFormat(format string) *Input {
	i.hwaccelOutputFormat = format
	return i
}

// Decoder forces a video decoder.
func (i *Input) Decoder(codec string) *Input {
	i.decoder = codec
	return i
}

// Framerate sets the input frame rate for raw or device inputs.
func (i *Input) Framerate(rate string) *Input {
	i.framerate = rate
	return i
}

// VideoSize sets the input frame size, e.g. "1280x720".
func (i *Input) VideoSize(size string) *Input {
	i.videoSize = size
	return i
}

// PixelFormat sets the input pixel format.
func (i *Input) PixelFormat(format string) *Input {
	i.pixelFormat = format
	return i
}

// SampleRate sets the input audio sample rate.
func (i *Input) SampleRate(hz int) *Input {
	i.sampleRate = hz
	return i
}

// Channels sets the input audio channel count.
func (i *Input) Channels(n int) *Input {
	i.channels = n
	return i
}

// StreamLoop loops the input n times; -1 loops forever.
func (i *Input) StreamLoop(n int) *Input {
	i.streamLoop = n
	i.hasStreamLoop = true
	return i
}

// Realtime reads the input at its native rate (-re).
func (i *Input) Realtime() *Input {
	i.realtime = true
	return i
}

// ThreadQueueSize sets the demuxer packet queue size.
func (i *Input) ThreadQueueSize(n int) *Input {
	i.threadQueueSize = n
	return i
}

// Reconnect enables automatic reconnection for network streams.
func (i *Input) Reconnect() *Input {
	i.options.Set("reconnect", "1")
	i.options.Set("reconnect_streamed", "1")
	i.options.Set("reconnect_delay_max", "5")
	return i
}

// Option sets an arbitrary input option, given without the leading "-".
func (i *Input) Option(key, value string) *Input {
	i.options.Set(key, value)
	return i
}

func (i *Input) clone() *Input {
	c := *i
	c.options = i.options.clone()
	return &c
}

// Output describes one destination of a transcode.
type Output struct {
	locator string

	video    *CodecOptions
	audio    *CodecOptions
	subtitle *CodecOptions

	noVideo    bool
	noAudio    bool
	noSubtitle bool

	maps []string

	seek            time.Duration
	hasSeek         bool
	duration        time.Duration
	fileSizeLimit   int64
	videoFrames     int
	preset          string
	tune            string
	copyTS          bool
	avoidNegativeTS string

	format       string
	movflags     []string
	muxerOptions Options
	streaming    bool

	metadata       map[string]string
	streamMetadata []streamMetadata

	options Options
}

type streamMetadata struct {
	spec  StreamSpecifier
	key   string
	value string
}

// NewOutput creates an output writing to locator.
func NewOutput(locator string) *Output {
	return &Output{locator: locator}
}

// Locator returns the output locator.
func (o *Output) Locator() string { return o.locator }

// VideoCodec sets the video codec options.
func (o *Output) VideoCodec(c *CodecOptions) *Output {
	o.video = c
	return o
}

// AudioCodec sets the audio codec options.
func (o *Output) AudioCodec(c *CodecOptions) *Output {
	o.audio = c
	return o
}

// SubtitleCodec sets the subtitle codec options.
func (o *Output) SubtitleCodec(c *CodecOptions) *Output {
	o.subtitle = c
	return o
}

// NoVideo drops video streams (-vn).
func (o *Output) NoVideo() *Output {
	o.noVideo = true
	return o
}

// NoAudio drops audio streams (-an).
func (o *Output) NoAudio() *Output {
	o.noAudio = true
	return o
}

// NoSubtitle drops subtitle streams (-sn).
func (o *Output) NoSubtitle() *Output {
	o.noSubtitle = true
	return o
}

// Map adds a -map selector such as "0:v:0", "[out]" or "-0:a".
func (o *Output) Map(selector string) *Output {
	o.maps = append(o.maps, selector)
	return o
}

// MapStream adds a -map for a stream of input index.
func (o *Output) MapStream(input int, spec StreamSpecifier) *Output {
	sel := itoa(input)
	if !spec.IsAll() {
		sel += ":" + spec.String()
	}
	return o.Map(sel)
}

// Seek discards output until the given position.
func (o *Output) Seek(d time.Duration) *Output {
	o.seek = d
	o.hasSeek = true
	return o
}

// Duration stops writing after d.
func (o *Output) Duration(d time.Duration) *Output {
	o.duration = d
	return o
}

// FileSizeLimit stops writing after n bytes (-fs).
func (o *Output) FileSizeLimit(n int64) *Output {
	o.fileSizeLimit = n
	return o
}

// VideoFrames stops after n video frames.
func (o *Output) VideoFrames(n int) *Output {
	o.videoFrames = n
	return o
}

// Preset sets the encoder preset.
func (o *Output) Preset(p string) *Output {
	o.preset = p
	return o
}

// Tune sets the encoder tuning.
func (o *Output) Tune(t string) *Output {
	o.tune = t
	return o
}

// CopyTS keeps input timestamps.
func (o *Output) CopyTS() *Output {
	o.copyTS = true
	return o
}

// AvoidNegativeTS sets the -avoid_negative_ts mode ("auto", "make_zero", ...).
func (o *Output) AvoidNegativeTS(mode string) *Output {
	o.avoidNegativeTS = mode
	return o
}

// Format sets the muxer (-f).
func (o *Output) Format(format string) *Output {
	o.format = format
	return o
}

// MovFlags appends mov/mp4 muxer flags.
func (o *Output) MovFlags(flags ...string) *Output {
	o.movflags = append(o.movflags, flags...)
	return o
}

// MuxerOption sets a muxer option, given without the leading "-".
func (o *Output) MuxerOption(key, value string) *Output {
	o.muxerOptions.Set(key, value)
	return o
}

// Streaming tunes the output for continuous delivery: fragmented mp4 unless
// another format is set, and packets flushed as they are written.
func (o *Output) Streaming() *Output {
	o.streaming = true
	return o
}

// Metadata sets a global metadata tag. Keys are unique; the last value wins.
func (o *Output) Metadata(key, value string) *Output {
	if o.metadata == nil {
		o.metadata = make(map[string]string)
	}
	o.metadata[key] = value
	return o
}

// StreamMetadata sets a metadata tag on the streams selected by spec.
func (o *Output) StreamMetadata(spec StreamSpecifier, key, value string) *Output {
	o.streamMetadata = append(o.streamMetadata, streamMetadata{spec: spec, key: key, value: value})
	return o
}

// Option sets an arbitrary output option, given without the leading "-".
func (o *Output) Option(key, value string) *Output {
	o.options.Set(key, value)
	return o
}

func (o *Output) clone() *Output {
	c := *o
	c.video = o.video.clone()
	c.audio = o.audio.clone()
	c.subtitle = o.subtitle.clone()
	c.maps = slices.Clone(o.maps)
	c.movflags = slices.Clone(o.movflags)
	c.muxerOptions = o.muxerOptions.clone()
	c.metadata = maps.Clone(o.metadata)
	c.streamMetadata = slices.Clone(o.streamMetadata)
	c.options = o.options.clone()
	return &c
}

// GlobalOptions apply once per invocation, ahead of every input.
type GlobalOptions struct {
	// HWAccel is the default acceleration backend for inputs without their own.
	HWAccel HWAccel
	// HWDevice, when set together with HWAccel, emits -init_hw_device.
	HWDevice   string
	Overwrite  OverwritePolicy
	LogLevel   LogLevel
	Threads    int
	HideBanner bool
	NoStdin    bool
	// Stats forces -stats so progress lines are printed at any log level.
	Stats bool
	// Progress is a -progress target such as "pipe:2".
	Progress string
	// Extra are raw arguments appended after the other globals.
	Extra []string
}

// DefaultGlobalOptions returns the options used when a builder is created:
// error level logging, no banner, stdin detached and stats enabled.
func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		LogLevel:   LogError,
		HideBanner: true,
		NoStdin:    true,
		Stats:      true,
	}
}
