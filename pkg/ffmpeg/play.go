package ffmpeg

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jmylchreest/ffwrap/pkg/duration"
)

// ShowMode selects what ffplay renders in its window.
type ShowMode int

const (
	ShowVideo ShowMode = iota
	ShowWaves
	ShowRDFT
)

// SyncMode selects the master clock.
type SyncMode string

const (
	SyncAudio    SyncMode = "audio"
	SyncVideo    SyncMode = "video"
	SyncExternal SyncMode = "ext"
)

// PlayBuilder assembles an ffplay invocation. The player takes exactly one
// input and produces no outputs.
type PlayBuilder struct {
	binary   string
	logLevel LogLevel
	inputs   []*Input

	width, height int
	fullscreen    bool
	noDisplay     bool
	noBorder      bool
	alwaysOnTop   bool
	windowTitle   string
	left, top     *int
	showMode      *ShowMode

	noAudio, noVideo, noSubtitle bool
	seek                         *time.Duration
	duration                     time.Duration
	loop                         *int
	volume                       *int
	format                       string
	seekInterval                 time.Duration
	fast                         bool
	genPTS                       bool
	sync                         SyncMode
	audioStream                  *StreamSpecifier
	videoStream                  *StreamSpecifier
	subtitleStream               *StreamSpecifier
	autoExit                     bool
	exitOnKeyDown                bool
	exitOnMouseDown              bool

	videoFilters []*Filter
	audioFilters []*Filter
	extra        []string
}

// NewPlayBuilder creates a player builder logging at error level.
func NewPlayBuilder() *PlayBuilder {
	return &PlayBuilder{logLevel: LogError}
}

// Binary sets an explicit ffplay path.
func (b *PlayBuilder) Binary(path string) *PlayBuilder {
	b.binary = path
	return b
}

// LogLevel sets -loglevel.
func (b *PlayBuilder) LogLevel(level LogLevel) *PlayBuilder {
	b.logLevel = level
	return b
}

// Input sets the input to play. The input is copied.
func (b *PlayBuilder) Input(in *Input) *PlayBuilder {
	b.inputs = append(b.inputs, in.clone())
	return b
}

// Size sets the window size.
func (b *PlayBuilder) Size(width, height int) *PlayBuilder {
	b.width, b.height = width, height
	return b
}

// Fullscreen starts in full screen mode.
func (b *PlayBuilder) Fullscreen() *PlayBuilder {
	b.fullscreen = true
	return b
}

// NoDisplay disables the graphical display.
func (b *PlayBuilder) NoDisplay() *PlayBuilder {
	b.noDisplay = true
	return b
}

// NoBorder creates a borderless window.
func (b *PlayBuilder) NoBorder() *PlayBuilder {
	b.noBorder = true
	return b
}

// AlwaysOnTop keeps the window above others.
func (b *PlayBuilder) AlwaysOnTop() *PlayBuilder {
	b.alwaysOnTop = true
	return b
}

// WindowTitle sets the window title.
func (b *PlayBuilder) WindowTitle(title string) *PlayBuilder {
	b.windowTitle = title
	return b
}

// Position places the window at x, y.
func (b *PlayBuilder) Position(x, y int) *PlayBuilder {
	b.left, b.top = &x, &y
	return b
}

// ShowMode selects video, waveform or spectrum rendering.
func (b *PlayBuilder) ShowMode(m ShowMode) *PlayBuilder {
	b.showMode = &m
	return b
}

// NoAudio disables audio.
func (b *PlayBuilder) NoAudio() *PlayBuilder {
	b.noAudio = true
	return b
}

// NoVideo disables video.
func (b *PlayBuilder) NoVideo() *PlayBuilder {
	b.noVideo = true
	return b
}

// NoSubtitle disables subtitles.
func (b *PlayBuilder) NoSubtitle() *PlayBuilder {
	b.noSubtitle = true
	return b
}

// Seek starts playback at position.
func (b *PlayBuilder) Seek(position time.Duration) *PlayBuilder {
	b.seek = &position
	return b
}

// Duration plays only d of the input.
func (b *PlayBuilder) Duration(d time.Duration) *PlayBuilder {
	b.duration = d
	return b
}

// Loop plays the input n times; 0 loops forever.
func (b *PlayBuilder) Loop(n int) *PlayBuilder {
	b.loop = &n
	return b
}

// Volume sets the start volume, 0 to 100.
func (b *PlayBuilder) Volume(v int) *PlayBuilder {
	b.volume = &v
	return b
}

// Format forces the input format.
func (b *PlayBuilder) Format(format string) *PlayBuilder {
	b.format = format
	return b
}

// SeekInterval sets the left/right key seek step.
func (b *PlayBuilder) SeekInterval(d time.Duration) *PlayBuilder {
	b.seekInterval = d
	return b
}

// Fast enables decoding shortcuts that are not strictly standards compliant.
func (b *PlayBuilder) Fast() *PlayBuilder {
	b.fast = true
	return b
}

// GenPTS generates missing presentation timestamps.
func (b *PlayBuilder) GenPTS() *PlayBuilder {
	b.genPTS = true
	return b
}

// Sync sets the master clock.
func (b *PlayBuilder) Sync(m SyncMode) *PlayBuilder {
	b.sync = m
	return b
}

// AudioStream selects the audio stream.
func (b *PlayBuilder) AudioStream(spec StreamSpecifier) *PlayBuilder {
	b.audioStream = &spec
	return b
}

// VideoStream selects the video stream.
func (b *PlayBuilder) VideoStream(spec StreamSpecifier) *PlayBuilder {
	b.videoStream = &spec
	return b
}

// SubtitleStream selects the subtitle stream.
func (b *PlayBuilder) SubtitleStream(spec StreamSpecifier) *PlayBuilder {
	b.subtitleStream = &spec
	return b
}

// AutoExit exits when playback finishes.
func (b *PlayBuilder) AutoExit() *PlayBuilder {
	b.autoExit = true
	return b
}

// ExitOnKeyDown exits on any key press.
func (b *PlayBuilder) ExitOnKeyDown() *PlayBuilder {
	b.exitOnKeyDown = true
	return b
}

// ExitOnMouseDown exits on any mouse click.
func (b *PlayBuilder) ExitOnMouseDown() *PlayBuilder {
	b.exitOnMouseDown = true
	return b
}

// Filter appends video or audio filters in order.
func (b *PlayBuilder) Filter(filters ...*Filter) *PlayBuilder {
	for _, f := range filters {
		if f.media == StreamAudio {
			b.audioFilters = append(b.audioFilters, f)
		} else {
			b.videoFilters = append(b.videoFilters, f)
		}
	}
	return b
}

// Args appends raw arguments before the input.
func (b *PlayBuilder) Args(args ...string) *PlayBuilder {
	b.extra = append(b.extra, args...)
	return b
}

// Build validates the configuration and returns the command.
func (b *PlayBuilder) Build() (*Command, error) {
	if len(b.inputs) != 1 {
		return nil, invalidArg("inputs", fmt.Sprintf("exactly one input is required, got %d", len(b.inputs)))
	}
	locator, err := ValidateLocator("inputs[0].locator", b.inputs[0].locator)
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

	display, err := b.displayArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, display...)

	playback, err := b.playbackArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, playback...)

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

	if err := ValidateExtraArgs("extra", b.extra); err != nil {
		return nil, err
	}
	args = append(args, b.extra...)

	args = append(args, "-i", locator)
	return &Command{Tool: ToolFFplay, Binary: b.binary, Args: args}, nil
}

func (b *PlayBuilder) displayArgs() ([]string, error) {
	var args []string
	if b.width < 0 || b.height < 0 {
		return nil, invalidArg("size", "must not be negative")
	}
	if b.width > 0 {
		args = append(args, "-x", strconv.Itoa(b.width))
	}
	if b.height > 0 {
		args = append(args, "-y", strconv.Itoa(b.height))
	}
	if b.fullscreen {
		args = append(args, "-fs")
	}
	if b.noDisplay {
		args = append(args, "-nodisp")
	}
	if b.noBorder {
		args = append(args, "-noborder")
	}
	if b.alwaysOnTop {
		args = append(args, "-alwaysontop")
	}
	if b.windowTitle != "" {
		if containsControl(b.windowTitle) {
			return nil, invalidArg("window_title", "contains control characters")
		}
		args = append(args, "-window_title", b.windowTitle)
	}
	if b.left != nil {
		args = append(args, "-left", strconv.Itoa(*b.left))
	}
	if b.top != nil {
		args = append(args, "-top", strconv.Itoa(*b.top))
	}
	if b.showMode != nil {
		if *b.showMode < ShowVideo || *b.showMode > ShowRDFT {
			return nil, invalidArg("showmode", fmt.Sprintf("unknown mode %d", *b.showMode))
		}
		args = append(args, "-showmode", strconv.Itoa(int(*b.showMode)))
	}
	return args, nil
}

func (b *PlayBuilder) playbackArgs() ([]string, error) {
	var args []string
	if b.noAudio {
		args = append(args, "-an")
	}
	if b.noVideo {
		args = append(args, "-vn")
	}
	if b.noSubtitle {
		args = append(args, "-sn")
	}
	if b.seek != nil {
		if *b.seek < 0 {
			return nil, invalidArg("seek", "must not be negative")
		}
		args = append(args, "-ss", duration.FormatTimestamp(*b.seek))
	}
	if b.duration < 0 {
		return nil, invalidArg("duration", "must not be negative")
	}
	if b.duration > 0 {
		args = append(args, "-t", duration.FormatTimestamp(b.duration))
	}
	if b.loop != nil {
		if *b.loop < 0 {
			return nil, invalidArg("loop", "must not be negative")
		}
		args = append(args, "-loop", strconv.Itoa(*b.loop))
	}
	if b.volume != nil {
		if *b.volume < 0 || *b.volume > 100 {
			return nil, invalidArg("volume", "must be between 0 and 100")
		}
		args = append(args, "-volume", strconv.Itoa(*b.volume))
	}
	if b.format != "" {
		if err := ValidateOptionKey("format", b.format); err != nil {
			return nil, err
		}
		args = append(args, "-f", b.format)
	}
	if b.seekInterval > 0 {
		args = append(args, "-seek_interval", duration.Seconds(b.seekInterval))
	}
	if b.fast {
		args = append(args, "-fast")
	}
	if b.genPTS {
		args = append(args, "-genpts")
	}
	if b.sync != "" {
		switch b.sync {
		case SyncAudio, SyncVideo, SyncExternal:
		default:
			return nil, invalidArg("sync", fmt.Sprintf("unknown sync mode %q", b.sync))
		}
		args = append(args, "-sync", string(b.sync))
	}
	streams := []struct {
		flag string
		spec *StreamSpecifier
	}{
		{"-ast", b.audioStream},
		{"-vst", b.videoStream},
		{"-sst", b.subtitleStream},
	}
	for _, s := range streams {
		if s.spec == nil {
			continue
		}
		if err := s.spec.Validate(); err != nil {
			return nil, invalidArg(s.flag[1:], err.Error())
		}
		args = append(args, s.flag, s.spec.String())
	}
	if b.autoExit {
		args = append(args, "-autoexit")
	}
	if b.exitOnKeyDown {
		args = append(args, "-exitonkeydown")
	}
	if b.exitOnMouseDown {
		args = append(args, "-exitonmousedown")
	}
	return args, nil
}
