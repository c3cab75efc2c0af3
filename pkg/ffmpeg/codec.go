package ffmpeg

import "strconv"

// Common codec names.
const (
	CodecCopy    = "copy"
	CodecH264    = "libx264"
	CodecH265    = "libx265"
	CodecVP8     = "libvpx"
	CodecVP9     = "libvpx-vp9"
	CodecAV1     = "libaom-av1"
	CodecAAC     = "aac"
	CodecOpus    = "libopus"
	CodecMP3     = "libmp3lame"
	CodecFLAC    = "flac"
	CodecMovText = "mov_text"
	CodecWebVTT  = "webvtt"
)

// crfCodecs take constant rate factor quality; everything else gets -q.
var crfCodecs = map[string]bool{
	CodecH264: true,
	CodecH265: true,
	CodecVP8:  true,
	CodecVP9:  true,
}

// CodecOptions selects a codec for one stream type and carries its settings.
// Option values are opaque to the builder.
type CodecOptions struct {
	name string

	bitrate       string
	quality       int
	hasQuality    bool
	pixelFormat   string
	framerate     string
	size          string
	gop           int
	bFrames       int
	hasBFrames    bool
	profile       string
	level         string
	sampleRate    int
	sampleFormat  string
	channels      int
	channelLayout string

	options Options
}

// Codec creates codec options for the named encoder.
func Codec(name string) *CodecOptions {
	return &CodecOptions{name: name}
}

// CopyCodec creates options that copy the stream without re-encoding.
func CopyCodec() *CodecOptions {
	return Codec(CodecCopy)
}

// Name returns the codec name.
func (c *CodecOptions) Name() string { return c.name }

// IsCopy reports whether the stream is copied.
func (c *CodecOptions) IsCopy() bool { return c.name == CodecCopy }

// Bitrate sets the target bitrate, e.g. "2M" or "128k".
func (c *CodecOptions) Bitrate(b string) *CodecOptions {
	c.bitrate = b
	return c
}

// Quality sets constant quality: -crf for x264, x265 and libvpx, -q otherwise.
func (c *CodecOptions) Quality(q int) *CodecOptions {
	c.quality = q
	c.hasQuality = true
	return c
}

// PixelFormat sets the output pixel format.
func (c *CodecOptions) PixelFormat(f string) *CodecOptions {
	c.pixelFormat = f
	return c
}

// Framerate sets the output frame rate.
func (c *CodecOptions) Framerate(r string) *CodecOptions {
	c.framerate = r
	return c
}

// Size sets the output frame size, e.g. "1920x1080".
func (c *CodecOptions) Size(s string) *CodecOptions {
	c.size = s
	return c
}

// GOP sets the keyframe interval in frames.
func (c *CodecOptions) GOP(frames int) *CodecOptions {
	c.gop = frames
	return c
}

// BFrames sets the maximum number of B-frames.
func (c *CodecOptions) BFrames(n int) *CodecOptions {
	c.bFrames = n
	c.hasBFrames = true
	return c
}

// Profile sets the encoder profile.
func (c *CodecOptions) Profile(p string) *CodecOptions {
	c.profile = p
	return c
}

// Level sets the encoder level.
func (c *CodecOptions) Level(l string) *CodecOptions {
	c.level = l
	return c
}

// SampleRate sets the audio sample rate.
func (c *CodecOptions) SampleRate(hz int) *CodecOptions {
	c.sampleRate = hz
	return c
}

// SampleFormat sets the audio sample format.
func (c *CodecOptions) SampleFormat(f string) *CodecOptions {
	c.sampleFormat = f
	return c
}

// Channels sets the audio channel count.
func (c *CodecOptions) Channels(n int) *CodecOptions {
	c.channels = n
	return c
}

// ChannelLayout sets the audio channel layout, e.g. "stereo".
func (c *CodecOptions) ChannelLayout(l string) *CodecOptions {
	c.channelLayout = l
	return c
}

// Option sets an encoder-private option, given without the leading "-".
func (c *CodecOptions) Option(key, value string) *CodecOptions {
	c.options.Set(key, value)
	return c
}

func (c *CodecOptions) clone() *CodecOptions {
	if c == nil {
		return nil
	}
	cp := *c
	cp.options = c.options.clone()
	return &cp
}

func (c *CodecOptions) validate(field string) error {
	if c.name == "" {
		return invalidArg(field, "codec name is empty")
	}
	if err := ValidateOptionKey(field, c.name); err != nil {
		return err
	}
	for _, v := range []string{c.bitrate, c.pixelFormat, c.framerate, c.size, c.profile, c.level, c.sampleFormat, c.channelLayout} {
		if containsControl(v) {
			return invalidArg(field, "value contains control characters")
		}
	}
	return c.options.validate(field)
}

// args renders the codec for stream type t. A copied stream emits only the
// codec flag.
func (c *CodecOptions) args(t StreamType) []string {
	suffix := ":" + string(t)
	args := []string{"-c" + suffix, c.name}
	if c.IsCopy() {
		return args
	}

	if c.bitrate != "" {
		args = append(args, "-b"+suffix, c.bitrate)
	}
	if c.hasQuality {
		if crfCodecs[c.name] {
			args = append(args, "-crf", itoa(c.quality))
		} else {
			args = append(args, "-q"+suffix, itoa(c.quality))
		}
	}
	if c.pixelFormat != "" {
		args = append(args, "-pix_fmt", c.pixelFormat)
	}
	if c.framerate != "" {
		args = append(args, "-r", c.framerate)
	}
	if c.size != "" {
		args = append(args, "-s", c.size)
	}
	if c.gop > 0 {
		args = append(args, "-g", itoa(c.gop))
	}
	if c.hasBFrames {
		args = append(args, "-bf", itoa(c.bFrames))
	}
	if c.profile != "" {
		args = append(args, "-profile"+suffix, c.profile)
	}
	if c.level != "" {
		args = append(args, "-level", c.level)
	}
	if c.sampleRate > 0 {
		args = append(args, "-ar", itoa(c.sampleRate))
	}
	if c.sampleFormat != "" {
		args = append(args, "-sample_fmt", c.sampleFormat)
	}
	if c.channels > 0 {
		args = append(args, "-ac", itoa(c.channels))
	}
	if c.channelLayout != "" {
		args = append(args, "-channel_layout", c.channelLayout)
	}
	return append(args, c.options.args()...)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
