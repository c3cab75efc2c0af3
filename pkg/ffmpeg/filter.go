package ffmpeg

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	filterNamePattern  = regexp.MustCompile(`^[A-Za-z0-9_]+(@[A-Za-z0-9_]+)?$`)
	filterLabelPattern = regexp.MustCompile(`^[A-Za-z0-9_:.]+$`)
)

// Filter is a single filter applied to video or audio. It is either a named
// filter with positional and keyword parameters (NewFilter) or a raw filter
// chain expression (RawFilter). Named parameters are escaped when rendered;
// raw expressions are only validated.
type Filter struct {
	media StreamType

	name       string
	positional []string
	keyword    Options

	raw   string
	isRaw bool
}

// NewFilter creates a named video filter with positional parameters.
func NewFilter(name string, positional ...string) *Filter {
	return &Filter{media: StreamVideo, name: name, positional: positional}
}

// NewAudioFilter creates a named audio filter with positional parameters.
func NewAudioFilter(name string, positional ...string) *Filter {
	return &Filter{media: StreamAudio, name: name, positional: positional}
}

// RawFilter wraps a video filter chain expression used verbatim.
func RawFilter(expr string) *Filter {
	return &Filter{media: StreamVideo, raw: expr, isRaw: true}
}

// RawAudioFilter wraps an audio filter chain expression used verbatim.
func RawAudioFilter(expr string) *Filter {
	return &Filter{media: StreamAudio, raw: expr, isRaw: true}
}

// Arg adds a keyword parameter. It has no effect on raw filters.
func (f *Filter) Arg(key, value string) *Filter {
	if !f.isRaw {
		f.keyword.Set(key, value)
	}
	return f
}

// Media returns the stream type the filter applies to.
func (f *Filter) Media() StreamType { return f.media }

// Render validates the filter and returns its filtergraph text.
func (f *Filter) Render() (string, error) {
	const field = "filter"
	if f.isRaw {
		if strings.TrimSpace(f.raw) == "" {
			return "", invalidArg(field, "raw filter expression is empty")
		}
		if err := ValidateFilterExpression(field, f.raw); err != nil {
			return "", err
		}
		return f.raw, nil
	}

	if !filterNamePattern.MatchString(f.name) {
		return "", invalidArg(field, fmt.Sprintf("invalid filter name %q", f.name))
	}

	params := make([]string, 0, len(f.positional)+f.keyword.Len())
	for _, p := range f.positional {
		if containsControl(p) {
			return "", invalidArg(field+"."+f.name, "parameter contains control characters")
		}
		params = append(params, EscapeFilterValue(p))
	}
	for k, v := range f.keyword.All() {
		if !filterNamePattern.MatchString(k) {
			return "", invalidArg(field+"."+f.name, fmt.Sprintf("invalid parameter name %q", k))
		}
		if containsControl(v) {
			return "", invalidArg(field+"."+f.name+"."+k, "parameter contains control characters")
		}
		params = append(params, k+"="+EscapeFilterValue(v))
	}

	if len(params) == 0 {
		return f.name, nil
	}
	return f.name + "=" + strings.Join(params, ":"), nil
}

// String renders the filter, or a placeholder if it is invalid.
func (f *Filter) String() string {
	s, err := f.Render()
	if err != nil {
		return "<invalid filter>"
	}
	return s
}

// joinFilters renders filters in order and joins them into one chain.
func joinFilters(filters []*Filter) (string, error) {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		s, err := f.Render()
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ","), nil
}

// FilterChain is one node of a FilterGraph: labelled inputs, a sequence of
// filters and labelled outputs.
type FilterChain struct {
	Inputs  []string
	Filters []*Filter
	Outputs []string
}

// FilterGraph is a complex filtergraph for -filter_complex. Chains are
// rendered in the order they were added and joined with ";".
type FilterGraph struct {
	chains []FilterChain
}

// NewFilterGraph creates an empty graph.
func NewFilterGraph() *FilterGraph {
	return &FilterGraph{}
}

// Chain appends a chain reading from inputs and writing to outputs. Labels
// are given without brackets, e.g. "0:v" or "scaled".
func (g *FilterGraph) Chain(inputs []string, outputs []string, filters ...*Filter) *FilterGraph {
	g.chains = append(g.chains, FilterChain{Inputs: inputs, Filters: filters, Outputs: outputs})
	return g
}

// Len returns the number of chains.
func (g *FilterGraph) Len() int { return len(g.chains) }

// Render validates the graph and returns its text.
func (g *FilterGraph) Render() (string, error) {
	const field = "filter_complex"
	if len(g.chains) == 0 {
		return "", invalidArg(field, "filter graph is empty")
	}

	parts := make([]string, 0, len(g.chains))
	for i, c := range g.chains {
		if len(c.Filters) == 0 {
			return "", invalidArg(field, fmt.Sprintf("chain %d has no filters", i))
		}
		var sb strings.Builder
		for _, l := range c.Inputs {
			if !filterLabelPattern.MatchString(l) {
				return "", invalidArg(field, fmt.Sprintf("invalid label %q", l))
			}
			sb.WriteString("[" + l + "]")
		}
		body, err := joinFilters(c.Filters)
		if err != nil {
			return "", err
		}
		sb.WriteString(body)
		for _, l := range c.Outputs {
			if !filterLabelPattern.MatchString(l) {
				return "", invalidArg(field, fmt.Sprintf("invalid label %q", l))
			}
			sb.WriteString("[" + l + "]")
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, ";"), nil
}

// Scale resizes video. Use -1 or -2 for one dimension to keep aspect ratio.
func Scale(width, height int) *Filter {
	return NewFilter("scale", itoa(width), itoa(height))
}

// Crop cuts a width x height region at x, y.
func Crop(width, height, x, y int) *Filter {
	return NewFilter("crop", itoa(width), itoa(height), itoa(x), itoa(y))
}

// Pad extends the frame to width x height, placing the input at x, y.
func Pad(width, height, x, y int, color string) *Filter {
	f := NewFilter("pad", itoa(width), itoa(height), itoa(x), itoa(y))
	if color != "" {
		f.Arg("color", color)
	}
	return f
}

// FPS converts to a constant frame rate.
func FPS(rate string) *Filter {
	return NewFilter("fps", rate)
}

// PixelFormats converts to the first supported pixel format of the list.
func PixelFormats(formats ...string) *Filter {
	return NewFilter("format", strings.Join(formats, "|"))
}

// HFlip mirrors video horizontally.
func HFlip() *Filter { return NewFilter("hflip") }

// VFlip mirrors video vertically.
func VFlip() *Filter { return NewFilter("vflip") }

// Transpose rotates by 90 degrees; dir follows ffmpeg (0-3).
func Transpose(dir int) *Filter {
	return NewFilter("transpose", itoa(dir))
}

// Rotate rotates by an angle expression in radians, e.g. "PI/6".
func Rotate(angle string) *Filter {
	return NewFilter("rotate", angle)
}

// SetPTS rewrites video timestamps with expr, e.g. "PTS-STARTPTS".
func SetPTS(expr string) *Filter {
	return NewFilter("setpts", expr)
}

// DrawText renders text at x, y.
func DrawText(text, x, y string, fontSize int) *Filter {
	f := NewFilter("drawtext").Arg("text", text)
	if x != "" {
		f.Arg("x", x)
	}
	if y != "" {
		f.Arg("y", y)
	}
	if fontSize > 0 {
		f.Arg("fontsize", itoa(fontSize))
	}
	return f
}

// Fade fades video "in" or "out" over frames starting at frame start.
func Fade(direction string, start, frames int) *Filter {
	return NewFilter("fade", direction, itoa(start), itoa(frames))
}

// Volume scales audio volume, e.g. "0.5" or "3dB".
func Volume(v string) *Filter {
	return NewAudioFilter("volume", v)
}

// ATempo changes audio speed without changing pitch.
func ATempo(factor float64) *Filter {
	return NewAudioFilter("atempo", strconv.FormatFloat(factor, 'f', -1, 64))
}

// AResample resamples audio to hz.
func AResample(hz int) *Filter {
	return NewAudioFilter("aresample", itoa(hz))
}

// Loudnorm applies EBU R128 loudness normalization with default targets.
func Loudnorm() *Filter {
	return NewAudioFilter("loudnorm")
}

// AFade fades audio "in" or "out" from start seconds over duration seconds.
func AFade(direction string, start, duration float64) *Filter {
	return NewAudioFilter("afade").
		Arg("t", direction).
		Arg("st", strconv.FormatFloat(start, 'f', -1, 64)).
		Arg("d", strconv.FormatFloat(duration, 'f', -1, 64))
}

// Highpass attenuates frequencies below hz.
func Highpass(hz int) *Filter {
	return NewAudioFilter("highpass").Arg("f", itoa(hz))
}

// Lowpass attenuates frequencies above hz.
func Lowpass(hz int) *Filter {
	return NewAudioFilter("lowpass").Arg("f", itoa(hz))
}
