package ffmpeg

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProbeResult is a typed view of ffprobe's JSON output. Sections that were
// not requested are empty.
type ProbeResult struct {
	Format   ProbeFormat    `json:"format"`
	Streams  []ProbeStream  `json:"streams"`
	Chapters []ProbeChapter `json:"chapters,omitempty"`
	Programs []ProbeProgram `json:"programs,omitempty"`
}

// ProbeFormat contains container format information.
type ProbeFormat struct {
	Filename       string            `json:"filename"`
	NumStreams     int               `json:"nb_streams"`
	NumPrograms    int               `json:"nb_programs"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	StartTime      string            `json:"start_time"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	ProbeScore     int               `json:"probe_score"`
	Tags           map[string]string `json:"tags,omitempty"`
}

// ProbeStream contains per-stream information.
type ProbeStream struct {
	Index         int               `json:"index"`
	ID            string            `json:"id,omitempty"`
	CodecName     string            `json:"codec_name"`
	CodecLongName string            `json:"codec_long_name"`
	Profile       string            `json:"profile,omitempty"`
	CodecType     string            `json:"codec_type"`
	CodecTag      string            `json:"codec_tag_string,omitempty"`
	Width         int               `json:"width,omitempty"`
	Height        int               `json:"height,omitempty"`
	SampleAspect  string            `json:"sample_aspect_ratio,omitempty"`
	DisplayAspect string            `json:"display_aspect_ratio,omitempty"`
	PixFmt        string            `json:"pix_fmt,omitempty"`
	Level         int               `json:"level,omitempty"`
	FieldOrder    string            `json:"field_order,omitempty"`
	SampleFmt     string            `json:"sample_fmt,omitempty"`
	SampleRate    string            `json:"sample_rate,omitempty"`
	Channels      int               `json:"channels,omitempty"`
	ChannelLayout string            `json:"channel_layout,omitempty"`
	RFrameRate    string            `json:"r_frame_rate,omitempty"`
	AvgFrameRate  string            `json:"avg_frame_rate,omitempty"`
	TimeBase      string            `json:"time_base,omitempty"`
	StartTime     string            `json:"start_time,omitempty"`
	Duration      string            `json:"duration,omitempty"`
	BitRate       string            `json:"bit_rate,omitempty"`
	NumFrames     string            `json:"nb_frames,omitempty"`
	NumReadFrames string            `json:"nb_read_frames,omitempty"`
	NumReadPkts   string            `json:"nb_read_packets,omitempty"`
	Disposition   ProbeDisposition  `json:"disposition"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// ProbeDisposition contains stream disposition flags.
type ProbeDisposition struct {
	Default         int `json:"default"`
	Dub             int `json:"dub"`
	Original        int `json:"original"`
	Comment         int `json:"comment"`
	Forced          int `json:"forced"`
	HearingImpaired int `json:"hearing_impaired"`
	VisualImpaired  int `json:"visual_impaired"`
	AttachedPic     int `json:"attached_pic"`
}

// ProbeChapter is a chapter marker.
type ProbeChapter struct {
	ID        int64             `json:"id"`
	TimeBase  string            `json:"time_base"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// ProbeProgram is a program of a multi-program container such as MPEG-TS.
type ProbeProgram struct {
	ProgramID  int               `json:"program_id"`
	ProgramNum int               `json:"program_num"`
	NumStreams int               `json:"nb_streams"`
	PMTPID     int               `json:"pmt_pid"`
	PCRPID     int               `json:"pcr_pid"`
	Tags       map[string]string `json:"tags,omitempty"`
	Streams    []ProbeStream     `json:"streams,omitempty"`
}

// DecodeProbeResult decodes an ffprobe JSON document.
func DecodeProbeResult(doc []byte) (*ProbeResult, error) {
	if len(strings.TrimSpace(string(doc))) == 0 {
		return nil, &ParseError{Context: "ffprobe output: empty document"}
	}
	var r ProbeResult
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, &ParseError{Context: "ffprobe output", Err: err}
	}
	return &r, nil
}

// VideoStream returns the first video stream, or nil.
func (r *ProbeResult) VideoStream() *ProbeStream {
	return r.firstOfType("video")
}

// AudioStream returns the first audio stream, or nil.
func (r *ProbeResult) AudioStream() *ProbeStream {
	return r.firstOfType("audio")
}

func (r *ProbeResult) firstOfType(codecType string) *ProbeStream {
	for i := range r.Streams {
		if r.Streams[i].CodecType == codecType {
			return &r.Streams[i]
		}
	}
	return nil
}

// StreamsByType returns all streams of a codec type ("video", "audio", ...).
func (r *ProbeResult) StreamsByType(codecType string) []ProbeStream {
	var streams []ProbeStream
	for _, s := range r.Streams {
		if s.CodecType == codecType {
			streams = append(streams, s)
		}
	}
	return streams
}

// Duration returns the container duration, or 0 when unknown (live sources).
func (r *ProbeResult) Duration() time.Duration {
	return parseSeconds(r.Format.Duration)
}

// Bitrate returns the overall bitrate in bits per second.
func (r *ProbeResult) Bitrate() int64 {
	br, err := strconv.ParseInt(r.Format.BitRate, 10, 64)
	if err != nil {
		return 0
	}
	return br
}

// Framerate returns the average frame rate, falling back to the real base rate.
func (s *ProbeStream) Framerate() float64 {
	if f := parseFramerate(s.AvgFrameRate); f > 0 {
		return f
	}
	return parseFramerate(s.RFrameRate)
}

// Language returns the stream's language tag.
func (s *ProbeStream) Language() string {
	return s.Tags["language"]
}

// parseFramerate parses a rate like "30000/1001" or "25".
func parseFramerate(fr string) float64 {
	num, den, ok := strings.Cut(fr, "/")
	if !ok {
		f, err := strconv.ParseFloat(fr, 64)
		if err != nil {
			return 0
		}
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func parseSeconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// TrackInfo summarises one stream.
type TrackInfo struct {
	Index      int     `json:"index" yaml:"index"`
	Type       string  `json:"type" yaml:"type"`
	Codec      string  `json:"codec" yaml:"codec"`
	Profile    string  `json:"profile,omitempty" yaml:"profile,omitempty"`
	Level      string  `json:"level,omitempty" yaml:"level,omitempty"`
	Width      int     `json:"width,omitempty" yaml:"width,omitempty"`
	Height     int     `json:"height,omitempty" yaml:"height,omitempty"`
	Framerate  float64 `json:"framerate,omitempty" yaml:"framerate,omitempty"`
	PixFmt     string  `json:"pix_fmt,omitempty" yaml:"pix_fmt,omitempty"`
	SampleRate int     `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	Channels   int     `json:"channels,omitempty" yaml:"channels,omitempty"`
	Layout     string  `json:"channel_layout,omitempty" yaml:"channel_layout,omitempty"`
	Bitrate    int64   `json:"bitrate,omitempty" yaml:"bitrate,omitempty"`
	Language   string  `json:"language,omitempty" yaml:"language,omitempty"`
	Title      string  `json:"title,omitempty" yaml:"title,omitempty"`
	Default    bool    `json:"default" yaml:"default"`
	Forced     bool    `json:"forced,omitempty" yaml:"forced,omitempty"`
}

// StreamInfo is a simplified summary of a probe.
type StreamInfo struct {
	Container string        `json:"container" yaml:"container"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Bitrate   int64         `json:"bitrate,omitempty" yaml:"bitrate,omitempty"`
	IsLive    bool          `json:"is_live" yaml:"is_live"`
	Title     string        `json:"title,omitempty" yaml:"title,omitempty"`
	Tracks    []TrackInfo   `json:"tracks" yaml:"tracks"`

	// Video and Audio point into Tracks at the default (or first) track of
	// each type.
	Video *TrackInfo `json:"-" yaml:"-"`
	Audio *TrackInfo `json:"-" yaml:"-"`
}

// HasVideo reports whether a video track exists.
func (info *StreamInfo) HasVideo() bool { return info.Video != nil }

// HasAudio reports whether an audio track exists.
func (info *StreamInfo) HasAudio() bool { return info.Audio != nil }

// IsAudioOnly reports audio without video, typical for radio streams.
func (info *StreamInfo) IsAudioOnly() bool { return info.Audio != nil && info.Video == nil }

// Simplify converts the detailed result into a StreamInfo.
func (r *ProbeResult) Simplify() *StreamInfo {
	info := &StreamInfo{
		Container: r.Format.FormatName,
		Duration:  r.Duration(),
		Bitrate:   r.Bitrate(),
		Title:     r.Format.Tags["title"],
		Tracks:    make([]TrackInfo, 0, len(r.Streams)),
	}
	info.IsLive = info.Duration == 0 ||
		strings.Contains(info.Container, "hls") ||
		strings.Contains(info.Container, "mpegts")

	videoIdx, audioIdx := -1, -1
	for _, s := range r.Streams {
		t := TrackInfo{
			Index:    s.Index,
			Type:     s.CodecType,
			Codec:    s.CodecName,
			Profile:  s.Profile,
			Language: s.Language(),
			Title:    s.Tags["title"],
			Default:  s.Disposition.Default == 1,
			Forced:   s.Disposition.Forced == 1,
		}
		t.Bitrate, _ = strconv.ParseInt(s.BitRate, 10, 64)

		switch s.CodecType {
		case "video":
			if s.Disposition.AttachedPic == 1 {
				break
			}
			t.Width, t.Height = s.Width, s.Height
			t.PixFmt = s.PixFmt
			t.Framerate = s.Framerate()
			if s.Level > 0 {
				t.Level = fmt.Sprintf("%.1f", float64(s.Level)/10)
			}
			if videoIdx == -1 || (t.Default && !info.Tracks[videoIdx].Default) {
				videoIdx = len(info.Tracks)
			}
		case "audio":
			t.SampleRate, _ = strconv.Atoi(s.SampleRate)
			t.Channels = s.Channels
			t.Layout = s.ChannelLayout
			if audioIdx == -1 || (t.Default && !info.Tracks[audioIdx].Default) {
				audioIdx = len(info.Tracks)
			}
		}
		info.Tracks = append(info.Tracks, t)
	}

	if videoIdx >= 0 {
		info.Video = &info.Tracks[videoIdx]
	}
	if audioIdx >= 0 {
		info.Audio = &info.Tracks[audioIdx]
	}
	return info
}
