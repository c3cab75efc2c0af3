package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/ffwrap/internal/util"
)

// BinaryEnvVar returns the environment variable that overrides the location
// of tool, e.g. FFWRAP_FFPROBE_BINARY.
func BinaryEnvVar(tool Tool) string {
	return "FFWRAP_" + strings.ToUpper(string(tool)) + "_BINARY"
}

// ResolveBinary finds the executable for tool. An explicit path wins, then
// the tool's environment override, then PATH.
func ResolveBinary(tool Tool, explicit string) (string, error) {
	if !tool.Valid() {
		return "", &ExecutableNotFoundError{Name: string(tool), Err: fmt.Errorf("unknown tool")}
	}
	if explicit != "" {
		path, err := util.ResolveExplicit(explicit)
		if err != nil {
			return "", &ExecutableNotFoundError{Name: explicit, Err: err}
		}
		return path, nil
	}
	path, err := util.FindBinary(string(tool), BinaryEnvVar(tool))
	if err != nil {
		return "", &ExecutableNotFoundError{Name: string(tool), Err: err}
	}
	return path, nil
}

// BinaryInfo describes an installed ffmpeg and its companions.
type BinaryInfo struct {
	FFmpegPath    string        `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath   string        `json:"ffprobe_path,omitempty" yaml:"ffprobe_path,omitempty"`
	FFplayPath    string        `json:"ffplay_path,omitempty" yaml:"ffplay_path,omitempty"`
	Version       string        `json:"version" yaml:"version"`
	MajorVersion  int           `json:"major_version" yaml:"major_version"`
	MinorVersion  int           `json:"minor_version" yaml:"minor_version"`
	BuildInfo     string        `json:"build_info,omitempty" yaml:"build_info,omitempty"`
	Configuration string        `json:"configuration,omitempty" yaml:"configuration,omitempty"`
	Codecs        []CodecInfo   `json:"codecs,omitempty" yaml:"codecs,omitempty"`
	Encoders      []string      `json:"encoders,omitempty" yaml:"encoders,omitempty"`
	Decoders      []string      `json:"decoders,omitempty" yaml:"decoders,omitempty"`
	HWAccels      []HWAccelInfo `json:"hw_accels,omitempty" yaml:"hw_accels,omitempty"`
	Formats       []FormatInfo  `json:"formats,omitempty" yaml:"formats,omitempty"`
}

// CodecInfo is one line of "ffmpeg -codecs".
type CodecInfo struct {
	Name        string `json:"name" yaml:"name"`
	LongName    string `json:"long_name,omitempty" yaml:"long_name,omitempty"`
	Type        string `json:"type" yaml:"type"`
	CanDecode   bool   `json:"can_decode" yaml:"can_decode"`
	CanEncode   bool   `json:"can_encode" yaml:"can_encode"`
	IsLossy     bool   `json:"is_lossy,omitempty" yaml:"is_lossy,omitempty"`
	IsLossless  bool   `json:"is_lossless,omitempty" yaml:"is_lossless,omitempty"`
	IsIntraOnly bool   `json:"is_intra_only,omitempty" yaml:"is_intra_only,omitempty"`
}

// FormatInfo is one line of "ffmpeg -formats".
type FormatInfo struct {
	Name     string `json:"name" yaml:"name"`
	LongName string `json:"long_name,omitempty" yaml:"long_name,omitempty"`
	CanMux   bool   `json:"can_mux" yaml:"can_mux"`
	CanDemux bool   `json:"can_demux" yaml:"can_demux"`
}

// HasEncoder reports whether the encoder is available.
func (info *BinaryInfo) HasEncoder(name string) bool {
	return slices.Contains(info.Encoders, name)
}

// HasDecoder reports whether the decoder is available.
func (info *BinaryInfo) HasDecoder(name string) bool {
	return slices.Contains(info.Decoders, name)
}

// HasFormat reports whether the format is available for muxing.
func (info *BinaryInfo) HasFormat(name string) bool {
	return slices.ContainsFunc(info.Formats, func(f FormatInfo) bool {
		return f.Name == name && f.CanMux
	})
}

// AvailableHWAccels returns the accelerators that passed their test.
func (info *BinaryInfo) AvailableHWAccels() []HWAccel {
	var out []HWAccel
	for _, h := range info.HWAccels {
		if h.Available {
			out = append(out, h.Type)
		}
	}
	return out
}

// SupportsMinVersion reports whether the version is at least major.minor.
func (info *BinaryInfo) SupportsMinVersion(major, minor int) bool {
	if info.MajorVersion != major {
		return info.MajorVersion > major
	}
	return info.MinorVersion >= minor
}

// JSON returns the info as indented JSON.
func (info *BinaryInfo) JSON() string {
	data, _ := json.MarshalIndent(info, "", "  ")
	return string(data)
}

// BinaryDetector detects the installed tools and caches what it finds.
type BinaryDetector struct {
	mu           sync.RWMutex
	info         *BinaryInfo
	lastDetected time.Time
	cacheTTL     time.Duration

	paths      map[Tool]string
	probeHW    bool
	opts       []ProcessOption
	cmdTimeout time.Duration
}

// NewBinaryDetector creates a detector caching results for five minutes.
func NewBinaryDetector(opts ...ProcessOption) *BinaryDetector {
	return &BinaryDetector{
		cacheTTL:   5 * time.Minute,
		paths:      make(map[Tool]string),
		opts:       opts,
		cmdTimeout: 15 * time.Second,
	}
}

// WithCacheTTL sets how long a detection result is reused.
func (d *BinaryDetector) WithCacheTTL(ttl time.Duration) *BinaryDetector {
	d.cacheTTL = ttl
	return d
}

// WithBinary sets an explicit path for tool.
func (d *BinaryDetector) WithBinary(tool Tool, path string) *BinaryDetector {
	d.paths[tool] = path
	return d
}

// WithHWAccelProbe enables test encodes for each listed accelerator. Without
// it accelerators are listed but not verified.
func (d *BinaryDetector) WithHWAccelProbe(enabled bool) *BinaryDetector {
	d.probeHW = enabled
	return d
}

// Detect returns the installation info, from cache when fresh.
func (d *BinaryDetector) Detect(ctx context.Context) (*BinaryInfo, error) {
	d.mu.RLock()
	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		info := d.info
		d.mu.RUnlock()
		return info, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.info != nil && time.Since(d.lastDetected) < d.cacheTTL {
		return d.info, nil
	}

	info, err := d.detect(ctx)
	if err != nil {
		return nil, err
	}
	d.info = info
	d.lastDetected = time.Now()
	return info, nil
}

// Clear drops the cached result.
func (d *BinaryDetector) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info = nil
}

func (d *BinaryDetector) detect(ctx context.Context) (*BinaryInfo, error) {
	ffmpegPath, err := ResolveBinary(ToolFFmpeg, d.paths[ToolFFmpeg])
	if err != nil {
		return nil, err
	}
	info := &BinaryInfo{FFmpegPath: ffmpegPath}

	// The companions are optional.
	if p, err := ResolveBinary(ToolFFprobe, d.paths[ToolFFprobe]); err == nil {
		info.FFprobePath = p
	}
	if p, err := ResolveBinary(ToolFFplay, d.paths[ToolFFplay]); err == nil {
		info.FFplayPath = p
	}

	out, err := d.query(ctx, ffmpegPath, "-version")
	if err != nil {
		return nil, fmt.Errorf("getting ffmpeg version: %w", err)
	}
	v, err := parseVersion(out)
	if err != nil {
		return nil, err
	}
	info.Version = v.Full
	info.MajorVersion = v.Major
	info.MinorVersion = v.Minor
	info.BuildInfo = v.BuildInfo
	info.Configuration = v.Configuration

	if out, err := d.query(ctx, ffmpegPath, "-hide_banner", "-codecs"); err == nil {
		info.Codecs = parseCodecs(out)
	}
	if out, err := d.query(ctx, ffmpegPath, "-hide_banner", "-encoders"); err == nil {
		info.Encoders = parseCoderList(out)
	}
	if out, err := d.query(ctx, ffmpegPath, "-hide_banner", "-decoders"); err == nil {
		info.Decoders = parseCoderList(out)
	}
	if out, err := d.query(ctx, ffmpegPath, "-hide_banner", "-formats"); err == nil {
		info.Formats = parseFormats(out)
	}

	hw := NewHWAccelDetector(ffmpegPath, d.opts...).WithProbe(d.probeHW)
	if accels, err := hw.Detect(ctx, info.Encoders); err == nil {
		info.HWAccels = accels
	}
	return info, nil
}

// query runs ffmpeg with informational flags and returns its stdout.
func (d *BinaryDetector) query(ctx context.Context, path string, args ...string) (string, error) {
	return queryTool(ctx, path, d.cmdTimeout, d.opts, args...)
}

func queryTool(ctx context.Context, path string, timeout time.Duration, opts []ProcessOption, args ...string) (string, error) {
	cmd := &Command{Tool: ToolFFmpeg, Binary: path, Args: args}
	opts = append(slices.Clone(opts), WithTimeout(timeout), WithMonitorInterval(0))
	res, err := NewProcess(cmd, opts...).Run(ctx)
	if err != nil {
		return "", err
	}
	return string(res.Stdout), nil
}

type versionInfo struct {
	Full          string
	Major         int
	Minor         int
	BuildInfo     string
	Configuration string
}

var versionPattern = regexp.MustCompile(`^n?(\d+)\.(\d+)`)

// parseVersion reads "ffmpeg -version" output. Versions look like "6.0",
// "n6.0-2-g..." or "6.0.1"; git snapshots carry no numeric version.
func parseVersion(output string) (*versionInfo, error) {
	info := &versionInfo{}
	for line := range strings.Lines(output) {
		line = strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(line, "ffmpeg version"):
			parts := strings.Fields(line)
			if len(parts) < 3 {
				continue
			}
			info.Full = parts[2]
			if m := versionPattern.FindStringSubmatch(parts[2]); m != nil {
				info.Major, _ = strconv.Atoi(m[1])
				info.Minor, _ = strconv.Atoi(m[2])
			}
		case strings.HasPrefix(line, "built with"):
			info.BuildInfo = strings.TrimPrefix(line, "built with ")
		case strings.HasPrefix(line, "configuration:"):
			info.Configuration = strings.TrimSpace(strings.TrimPrefix(line, "configuration:"))
		}
	}
	if info.Full == "" {
		return nil, &ParseError{Context: "ffmpeg -version output", Err: fmt.Errorf("no version line")}
	}
	return info, nil
}

// parseCodecs reads "ffmpeg -codecs". Each entry after the dashed separator
// has six flag columns: decode, encode, type, intra-only, lossy, lossless.
func parseCodecs(output string) []CodecInfo {
	var codecs []CodecInfo
	inList := false
	for line := range strings.Lines(output) {
		if strings.Contains(line, "-------") {
			inList = true
			continue
		}
		line = strings.TrimSpace(line)
		if !inList || len(line) < 8 {
			continue
		}

		flags := line[:6]
		name, long, _ := strings.Cut(strings.TrimSpace(line[6:]), " ")
		if name == "" {
			continue
		}
		c := CodecInfo{
			Name:        name,
			LongName:    strings.TrimSpace(long),
			CanDecode:   flags[0] == 'D',
			CanEncode:   flags[1] == 'E',
			IsIntraOnly: flags[3] == 'I',
			IsLossy:     flags[4] == 'L',
			IsLossless:  flags[5] == 'S',
		}
		switch flags[2] {
		case 'V':
			c.Type = "video"
		case 'A':
			c.Type = "audio"
		case 'S':
			c.Type = "subtitle"
		case 'D':
			c.Type = "data"
		case 'T':
			c.Type = "attachment"
		default:
			continue
		}
		codecs = append(codecs, c)
	}
	return codecs
}

// parseCoderList reads "ffmpeg -encoders" or "-decoders" and returns names.
func parseCoderList(output string) []string {
	var names []string
	inList := false
	for line := range strings.Lines(output) {
		if strings.Contains(line, "------") {
			inList = true
			continue
		}
		line = strings.TrimSpace(line)
		if !inList || len(line) < 8 {
			continue
		}
		if line[0] != 'V' && line[0] != 'A' && line[0] != 'S' {
			continue
		}
		if fields := strings.Fields(line[6:]); len(fields) > 0 {
			names = append(names, fields[0])
		}
	}
	return names
}

// parseFormats reads "ffmpeg -formats". Flags are D (demux) and E (mux).
func parseFormats(output string) []FormatInfo {
	var formats []FormatInfo
	inList := false
	for line := range strings.Lines(output) {
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "--" {
			inList = true
			continue
		}
		if !inList || len(line) < 5 {
			continue
		}
		flags := line[:4]
		name, long, _ := strings.Cut(strings.TrimSpace(line[4:]), " ")
		if name == "" {
			continue
		}
		formats = append(formats, FormatInfo{
			Name:     name,
			LongName: strings.TrimSpace(long),
			CanDemux: strings.Contains(flags, "D"),
			CanMux:   strings.Contains(flags, "E"),
		})
	}
	return formats
}
