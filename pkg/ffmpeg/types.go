// Package ffmpeg builds and supervises invocations of ffmpeg, ffprobe and ffplay.
//
// A caller assembles a configuration with one of the builders (TranscodeBuilder,
// ProbeBuilder, PlayBuilder). Build validates the whole configuration at once and
// returns an immutable Command. A Process runs the Command as a child process,
// feeds its diagnostic stream through a ProgressParser and classifies the outcome.
package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// Tool identifies one of the supported executables.
type Tool string

const (
	ToolFFmpeg  Tool = "ffmpeg"
	ToolFFprobe Tool = "ffprobe"
	ToolFFplay  Tool = "ffplay"
)

// Tools lists every supported tool in display order.
var Tools = []Tool{ToolFFmpeg, ToolFFprobe, ToolFFplay}

// String returns the executable name.
func (t Tool) String() string {
	return string(t)
}

// Valid reports whether t is a supported tool.
func (t Tool) Valid() bool {
	switch t {
	case ToolFFmpeg, ToolFFprobe, ToolFFplay:
		return true
	}
	return false
}

// LogLevel is a value for -loglevel.
type LogLevel string

const (
	LogQuiet   LogLevel = "quiet"
	LogPanic   LogLevel = "panic"
	LogFatal   LogLevel = "fatal"
	LogError   LogLevel = "error"
	LogWarning LogLevel = "warning"
	LogInfo    LogLevel = "info"
	LogVerbose LogLevel = "verbose"
	LogDebug   LogLevel = "debug"
	LogTrace   LogLevel = "trace"
)

var logLevelValues = map[LogLevel]int{
	LogQuiet:   -8,
	LogPanic:   0,
	LogFatal:   8,
	LogError:   16,
	LogWarning: 24,
	LogInfo:    32,
	LogVerbose: 40,
	LogDebug:   48,
	LogTrace:   56,
}

// Value returns the numeric level ffmpeg uses internally, or -1 if unknown.
func (l LogLevel) Value() int {
	if v, ok := logLevelValues[l]; ok {
		return v
	}
	return -1
}

// Valid reports whether l is a known level.
func (l LogLevel) Valid() bool {
	_, ok := logLevelValues[l]
	return ok
}

// ParseLogLevel parses a level name or its numeric value.
func ParseLogLevel(s string) (LogLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warn" {
		return LogWarning, nil
	}
	if l := LogLevel(s); l.Valid() {
		return l, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		for l, v := range logLevelValues {
			if v == n {
				return l, nil
			}
		}
	}
	return "", invalidArg("log_level", fmt.Sprintf("unknown log level %q", s))
}

// StreamType is a media stream kind as used in stream specifiers.
type StreamType string

const (
	StreamVideo      StreamType = "v"
	StreamVideoOnly  StreamType = "V" // video, excluding attached pictures and thumbnails
	StreamAudio      StreamType = "a"
	StreamSubtitle   StreamType = "s"
	StreamData       StreamType = "d"
	StreamAttachment StreamType = "t"
)

// Valid reports whether t is a known stream type.
func (t StreamType) Valid() bool {
	switch t {
	case StreamVideo, StreamVideoOnly, StreamAudio, StreamSubtitle, StreamData, StreamAttachment:
		return true
	}
	return false
}

// StreamSpecifier selects streams, e.g. "v:0", "p:1", "#0x101", "m:language:eng".
// The zero value selects all streams.
type StreamSpecifier struct {
	kind  specKind
	typ   StreamType
	index int
	id    string
	key   string
	value string
}

type specKind int

const (
	specAll specKind = iota
	specIndex
	specType
	specTypeIndex
	specProgram
	specStreamID
	specMetadata
	specUsable
)

// AllStreams selects every stream.
func AllStreams() StreamSpecifier { return StreamSpecifier{} }

// StreamIndex selects a stream by absolute index.
func StreamIndex(i int) StreamSpecifier { return StreamSpecifier{kind: specIndex, index: i} }

// StreamOfType selects all streams of a type.
func StreamOfType(t StreamType) StreamSpecifier { return StreamSpecifier{kind: specType, typ: t} }

// StreamTypeIndex selects the i-th stream of a type.
func StreamTypeIndex(t StreamType, i int) StreamSpecifier {
	return StreamSpecifier{kind: specTypeIndex, typ: t, index: i}
}

// StreamProgram selects streams belonging to a program.
func StreamProgram(id int) StreamSpecifier { return StreamSpecifier{kind: specProgram, index: id} }

// StreamID selects a stream by its container-level id (e.g. a PID).
func StreamID(id string) StreamSpecifier { return StreamSpecifier{kind: specStreamID, id: id} }

// StreamMetadata selects streams carrying a metadata key, optionally with a value.
func StreamMetadata(key, value string) StreamSpecifier {
	return StreamSpecifier{kind: specMetadata, key: key, value: value}
}

// UsableStreams selects streams with a usable configuration.
func UsableStreams() StreamSpecifier { return StreamSpecifier{kind: specUsable} }

// IsAll reports whether s selects all streams.
func (s StreamSpecifier) IsAll() bool { return s.kind == specAll }

// String renders the specifier in ffmpeg syntax.
func (s StreamSpecifier) String() string {
	switch s.kind {
	case specIndex:
		return strconv.Itoa(s.index)
	case specType:
		return string(s.typ)
	case specTypeIndex:
		return string(s.typ) + ":" + strconv.Itoa(s.index)
	case specProgram:
		return "p:" + strconv.Itoa(s.index)
	case specStreamID:
		return "#" + s.id
	case specMetadata:
		if s.value != "" {
			return "m:" + s.key + ":" + s.value
		}
		return "m:" + s.key
	case specUsable:
		return "u"
	}
	return ""
}

// Validate checks the specifier fields.
func (s StreamSpecifier) Validate() error {
	switch s.kind {
	case specIndex, specProgram:
		if s.index < 0 {
			return fmt.Errorf("negative index %d", s.index)
		}
	case specType:
		if !s.typ.Valid() {
			return fmt.Errorf("unknown stream type %q", s.typ)
		}
	case specTypeIndex:
		if !s.typ.Valid() {
			return fmt.Errorf("unknown stream type %q", s.typ)
		}
		if s.index < 0 {
			return fmt.Errorf("negative index %d", s.index)
		}
	case specStreamID:
		if s.id == "" || strings.ContainsAny(s.id, ": ") {
			return fmt.Errorf("invalid stream id %q", s.id)
		}
	case specMetadata:
		if s.key == "" || strings.ContainsAny(s.key, ": ") {
			return fmt.Errorf("invalid metadata key %q", s.key)
		}
		if containsControl(s.value) {
			return fmt.Errorf("metadata value contains control characters")
		}
	}
	return nil
}

// ParseStreamSpecifier parses ffmpeg stream specifier syntax.
func ParseStreamSpecifier(s string) (StreamSpecifier, error) {
	var spec StreamSpecifier
	switch {
	case s == "":
		return AllStreams(), nil
	case s == "u":
		return UsableStreams(), nil
	case strings.HasPrefix(s, "#"):
		spec = StreamID(s[1:])
	case strings.HasPrefix(s, "p:"):
		n, err := strconv.Atoi(s[2:])
		if err != nil {
			return spec, invalidArg("stream_specifier", fmt.Sprintf("invalid program specifier %q", s))
		}
		spec = StreamProgram(n)
	case strings.HasPrefix(s, "m:"):
		key, value, _ := strings.Cut(s[2:], ":")
		spec = StreamMetadata(key, value)
	default:
		if n, err := strconv.Atoi(s); err == nil {
			spec = StreamIndex(n)
			break
		}
		typ, idx, hasIdx := strings.Cut(s, ":")
		if !hasIdx {
			spec = StreamOfType(StreamType(typ))
			break
		}
		n, err := strconv.Atoi(idx)
		if err != nil {
			return spec, invalidArg("stream_specifier", fmt.Sprintf("invalid stream specifier %q", s))
		}
		spec = StreamTypeIndex(StreamType(typ), n)
	}
	if err := spec.Validate(); err != nil {
		return StreamSpecifier{}, invalidArg("stream_specifier", err.Error())
	}
	return spec, nil
}

// HWAccel names a hardware acceleration backend. Values are passed through to
// ffmpeg unchanged; the constants below are the common ones.
type HWAccel string

const (
	HWAccelNone         HWAccel = "none"
	HWAccelAuto         HWAccel = "auto"
	HWAccelCUDA         HWAccel = "cuda"
	HWAccelQSV          HWAccel = "qsv"
	HWAccelVAAPI        HWAccel = "vaapi"
	HWAccelVideoToolbox HWAccel = "videotoolbox"
	HWAccelDXVA2        HWAccel = "dxva2"
	HWAccelD3D11VA      HWAccel = "d3d11va"
	HWAccelVulkan       HWAccel = "vulkan"
	HWAccelOpenCL       HWAccel = "opencl"
)

// Enabled reports whether the value selects an actual backend.
func (h HWAccel) Enabled() bool {
	return h != "" && h != HWAccelNone
}

// OverwritePolicy controls -y and -n.
type OverwritePolicy int

const (
	OverwriteUnset OverwritePolicy = iota
	OverwriteAlways
	OverwriteNever
)
