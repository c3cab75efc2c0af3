package ffmpeg

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/ffwrap/pkg/bytesize"
	"github.com/jmylchreest/ffwrap/pkg/duration"
)

// Progress is one point-in-time reading of a running transcode.
type Progress struct {
	Frame      int64         `json:"frame"`
	FPS        float64       `json:"fps"`
	Quality    float64       `json:"q,omitempty"`
	Size       int64         `json:"size"`
	Time       time.Duration `json:"time"`
	Bitrate    float64       `json:"bitrate"`
	Speed      float64       `json:"speed"`
	DupFrames  int64         `json:"dup_frames,omitempty"`
	DropFrames int64         `json:"drop_frames,omitempty"`
	// Done is set on the final block of -progress output.
	Done bool `json:"done,omitempty"`
}

// String renders the snapshot in the tool's own stat line style.
func (p Progress) String() string {
	return fmt.Sprintf("frame=%d fps=%.1f size=%s time=%s bitrate=%s speed=%.2fx",
		p.Frame, p.FPS, bytesize.Size(p.Size), duration.FormatTimestamp(p.Time),
		bytesize.FormatBitrate(p.Bitrate), p.Speed)
}

const (
	// DefaultDiagnosticsCap bounds the retained diagnostic text.
	DefaultDiagnosticsCap = 64 * 1024

	// maxLineLength splits pathological unterminated lines at a fixed offset.
	maxLineLength = 64 * 1024
)

// statFieldPattern matches "key=value" pairs in a stat line. Values may be
// separated from the "=" by padding spaces.
var statFieldPattern = regexp.MustCompile(`([A-Za-z_]+)=\s*(\S+)`)

// blockLinePattern matches one line of -progress output.
var blockLinePattern = regexp.MustCompile(`^([a-z0-9_]+)=\s*(\S*)$`)

var blockKeys = map[string]bool{
	"frame": true, "fps": true, "bitrate": true, "total_size": true,
	"out_time_us": true, "out_time_ms": true, "out_time": true,
	"dup_frames": true, "drop_frames": true, "speed": true, "progress": true,
}

var streamQualityKey = regexp.MustCompile(`^stream_\d+_\d+_q$`)

// ProgressParser turns a diagnostic stream into Progress snapshots. It accepts
// both the periodic stat lines ("frame=  120 fps=30 ... speed=1.0x") and the
// key=value blocks written by -progress. Lines end at "\r" or "\n"; empty
// lines are ignored, so the output does not depend on how the stream is split
// into chunks. Lines that carry no progress are kept as diagnostics, bounded
// to the most recent cap bytes.
//
// A ProgressParser is not safe for concurrent use.
type ProgressParser struct {
	buf []byte

	block    Progress
	last     Progress
	hasLast  bool
	count    int
	diag     []string
	diagSize int
	diagCap  int
	dropped  bool
}

// NewProgressParser creates a parser retaining up to diagCap bytes of
// diagnostics. A non-positive cap uses DefaultDiagnosticsCap.
func NewProgressParser(diagCap int) *ProgressParser {
	if diagCap <= 0 {
		diagCap = DefaultDiagnosticsCap
	}
	return &ProgressParser{diagCap: diagCap}
}

// Feed consumes a chunk and returns the snapshots completed by it, in order.
func (p *ProgressParser) Feed(chunk []byte) []Progress {
	p.buf = append(p.buf, chunk...)

	var out []Progress
	start := 0
	for {
		rest := p.buf[start:]
		i := bytes.IndexAny(rest, "\r\n")
		if i < 0 {
			if len(rest) < maxLineLength {
				break
			}
			i = maxLineLength
			if snap, ok := p.line(string(rest[:i])); ok {
				out = append(out, snap)
			}
			start += i
			continue
		}
		if i > maxLineLength {
			i = maxLineLength
			if snap, ok := p.line(string(rest[:i])); ok {
				out = append(out, snap)
			}
			start += i
			continue
		}
		if snap, ok := p.line(string(rest[:i])); ok {
			out = append(out, snap)
		}
		start += i + 1
	}

	if start > 0 {
		p.buf = append(p.buf[:0], p.buf[start:]...)
	}
	return out
}

// Close flushes a trailing unterminated line.
func (p *ProgressParser) Close() []Progress {
	if len(p.buf) == 0 {
		return nil
	}
	line := string(p.buf)
	p.buf = p.buf[:0]
	if snap, ok := p.line(line); ok {
		return []Progress{snap}
	}
	return nil
}

// Last returns the most recent snapshot.
func (p *ProgressParser) Last() (Progress, bool) {
	return p.last, p.hasLast
}

// Count returns the number of snapshots emitted.
func (p *ProgressParser) Count() int {
	return p.count
}

// Diagnostics returns the retained non-progress lines joined by newlines.
func (p *ProgressParser) Diagnostics() string {
	return strings.Join(p.diag, "\n")
}

// Truncated reports whether older diagnostic lines were discarded.
func (p *ProgressParser) Truncated() bool {
	return p.dropped
}

// Scan returns a lazy sequence of the snapshots parsed from r. Iteration ends
// at EOF or on the first read error.
func (p *ProgressParser) Scan(r io.Reader) iter.Seq[Progress] {
	return func(yield func(Progress) bool) {
		buf := make([]byte, 32*1024)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				for _, snap := range p.Feed(buf[:n]) {
					if !yield(snap) {
						return
					}
				}
			}
			if err != nil {
				break
			}
		}
		for _, snap := range p.Close() {
			if !yield(snap) {
				return
			}
		}
	}
}

// ScanProgress parses r with a fresh parser.
func ScanProgress(r io.Reader) iter.Seq[Progress] {
	return NewProgressParser(0).Scan(r)
}

func (p *ProgressParser) line(s string) (Progress, bool) {
	if strings.TrimSpace(s) == "" {
		return Progress{}, false
	}

	if m := blockLinePattern.FindStringSubmatch(s); m != nil && (blockKeys[m[1]] || streamQualityKey.MatchString(m[1])) {
		return p.blockLine(m[1], m[2])
	}

	if snap, ok := parseStatLine(s); ok {
		p.emit(snap)
		return snap, true
	}

	p.retain(s)
	return Progress{}, false
}

func (p *ProgressParser) blockLine(key, value string) (Progress, bool) {
	b := &p.block
	switch {
	case key == "progress":
		snap := *b
		snap.Done = value == "end"
		p.block = Progress{}
		p.emit(snap)
		return snap, true
	case key == "out_time_us", key == "out_time_ms":
		// Both carry microseconds.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil {
			b.Time = time.Duration(us) * time.Microsecond
		}
	case key == "out_time":
		if b.Time == 0 {
			if d, err := duration.ParseTimestamp(value); err == nil {
				b.Time = d
			}
		}
	case key == "total_size":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			b.Size = n
		}
	case streamQualityKey.MatchString(key):
		if b.Quality == 0 {
			if q, err := strconv.ParseFloat(value, 64); err == nil {
				b.Quality = q
			}
		}
	default:
		applyField(b, key, value)
	}
	return Progress{}, false
}

func (p *ProgressParser) emit(snap Progress) {
	p.last = snap
	p.hasLast = true
	p.count++
}

func (p *ProgressParser) retain(line string) {
	p.diag = append(p.diag, line)
	p.diagSize += len(line) + 1
	for p.diagSize > p.diagCap && len(p.diag) > 1 {
		p.diagSize -= len(p.diag[0]) + 1
		p.diag = p.diag[1:]
		p.dropped = true
	}
	// Compact so the backing array does not grow without bound.
	if cap(p.diag) > 4*len(p.diag)+64 {
		p.diag = append([]string(nil), p.diag...)
	}
}

// parseStatLine parses a periodic stat line. A line qualifies when it has at
// least two key=value fields including frame= or time=, and at least one
// field parses.
func parseStatLine(s string) (Progress, bool) {
	fields := statFieldPattern.FindAllStringSubmatch(s, -1)
	if len(fields) < 2 {
		return Progress{}, false
	}
	anchored := false
	for _, f := range fields {
		if f[1] == "frame" || f[1] == "time" {
			anchored = true
			break
		}
	}
	if !anchored {
		return Progress{}, false
	}

	var snap Progress
	usable := false
	for _, f := range fields {
		if applyField(&snap, f[1], f[2]) {
			usable = true
		}
	}
	return snap, usable
}

// applyField sets one field from its textual value. Unknown keys, N/A and
// malformed values are skipped.
func applyField(p *Progress, key, value string) bool {
	if value == "" || value == "N/A" {
		return false
	}
	switch key {
	case "frame":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return false
		}
		p.Frame = n
	case "fps":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false
		}
		p.FPS = f
	case "q":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false
		}
		p.Quality = f
	case "size", "Lsize":
		n, err := bytesize.Parse(value)
		if err != nil {
			return false
		}
		p.Size = n.Bytes()
	case "time":
		d, err := duration.ParseTimestamp(value)
		if err != nil {
			return false
		}
		p.Time = d
	case "bitrate":
		br, err := bytesize.ParseBitrate(value)
		if err != nil {
			return false
		}
		p.Bitrate = br
	case "speed":
		f, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64)
		if err != nil {
			return false
		}
		p.Speed = f
	case "dup", "dup_frames":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return false
		}
		p.DupFrames = n
	case "drop", "drop_frames":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return false
		}
		p.DropFrames = n
	default:
		return false
	}
	return true
}
