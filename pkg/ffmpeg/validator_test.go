package ffmpeg

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateLocator(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		want    string
		wantErr bool
	}{
		{name: "file", locator: "in.mp4", want: "in.mp4"},
		{name: "nested path", locator: "media/in.mp4", want: filepath.FromSlash("media/in.mp4")},
		{name: "url", locator: "https://example.com/a.m3u8?x=1", want: "https://example.com/a.m3u8?x=1"},
		{name: "rtsp", locator: "rtsp://cam.local/stream", want: "rtsp://cam.local/stream"},
		{name: "pipe", locator: "pipe:1", want: "pipe:1"},
		{name: "stdio", locator: "-", want: "-"},
		{name: "empty", locator: "", wantErr: true},
		{name: "flag", locator: "-i", wantErr: true},
		{name: "newline", locator: "a\nb", wantErr: true},
		{name: "nul", locator: "a\x00b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateLocator("locator", tt.locator)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindInvalidArgument, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEscapeFilterValue(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a:b", `a\\:b`},
		{"it's", `it\\\'s`},
		{"[x]", `\[x\]`},
		{"a,b;c=d", `a\,b\;c\\=d`},
		{`back\slash`, `back\\\\slash`},
		{" pad ", `\\ pad\\\ `},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeFilterValue(tt.in), tt.in)
	}
}

func TestFilterToken(t *testing.T) {
	tests := []struct {
		in, term  string
		tok, rest string
	}{
		{in: "  scale=1:2,hflip", term: filterGraphTerm, tok: "scale=1:2", rest: ",hflip"},
		{in: `a\,b[out]`, term: filterGraphTerm, tok: "a,b", rest: "[out]"},
		{in: "'a, b' c ;x", term: filterGraphTerm, tok: "a, b c", rest: ";x"},
		{in: `12\:30:x=1`, term: filterOptionTerm, tok: "12:30", rest: ":x=1"},
		{in: `keep\  `, term: filterOptionTerm, tok: "keep ", rest: ""},
		{in: `' spaced '`, term: filterOptionTerm, tok: " spaced ", rest: ""},
		{in: `dangling\`, term: filterOptionTerm, tok: `dangling\`, rest: ""},
		{in: "'open", term: filterOptionTerm, tok: "open", rest: ""},
	}
	for _, tt := range tests {
		tok, rest := filterToken(tt.in, tt.term)
		assert.Equal(t, tt.tok, tok, tt.in)
		assert.Equal(t, tt.rest, rest, tt.in)
	}
}

var filterValueInputs = []string{
	"plain",
	"12:30",
	"Hello: World",
	`C:\fonts\arial.ttf`,
	"'quoted' [label], list; k=v",
	"a=b",
	`trailing\`,
	" leading",
	"trailing  ",
	"   ",
	"unicode ✓ : ok",
	strings.Repeat(`\:`, 10),
}

func TestFilterValueRoundTrip(t *testing.T) {
	for _, in := range filterValueInputs {
		assert.Equal(t, in, UnescapeFilterValue(EscapeFilterValue(in)), "round trip of %q", in)
	}
}

// parseFilter splits a rendered filter the way the filtergraph parser does:
// the arguments are read as one graph-level token, then split into options.
func parseFilter(t *testing.T, rendered string) (string, []string) {
	t.Helper()
	name, args, ok := strings.Cut(rendered, "=")
	if !ok {
		return name, nil
	}
	graph, rest := filterToken(args, filterGraphTerm)
	require.Empty(t, rest, "filter %q leaks into the graph", rendered)

	var opts []string
	for {
		opt, more := filterToken(graph, filterOptionTerm)
		opts = append(opts, opt)
		if more == "" {
			return name, opts
		}
		graph = more[1:]
	}
}

func TestFilter_RenderedValuesSurviveParsing(t *testing.T) {
	for _, in := range filterValueInputs {
		rendered, err := NewFilter("drawtext").Arg("text", in).Arg("x", "10").Render()
		require.NoError(t, err)
		name, opts := parseFilter(t, rendered)
		assert.Equal(t, "drawtext", name)
		assert.Equal(t, []string{"text=" + in, "x=10"}, opts, rendered)

		rendered, err = NewFilter("pad", in, "ih").Render()
		require.NoError(t, err)
		_, opts = parseFilter(t, rendered)
		assert.Equal(t, []string{in, "ih"}, opts, rendered)
	}

	rendered, err := NewFilter("drawtext").Arg("text", "12:30").Render()
	require.NoError(t, err)
	assert.Equal(t, `drawtext=text=12\\:30`, rendered)
}

func TestValidateFilterExpression(t *testing.T) {
	valid := []string{
		"scale=1280:-2",
		"drawtext=text='a, b':x=10",
		`drawtext=text=it\'s`,
		"[0:v][1:v]overlay=10:10[out]",
		"select='eq(pict_type\\,I)'",
	}
	for _, expr := range valid {
		assert.NoError(t, ValidateFilterExpression("filter", expr), expr)
	}

	invalid := []string{
		"drawtext=text='open",
		"[0:v]scale=1:1[out",
		"select=eq(n,1",
		"scale=1:1\n",
	}
	for _, expr := range invalid {
		assert.Error(t, ValidateFilterExpression("filter", expr), expr)
	}
}

func TestMetadataToken(t *testing.T) {
	values := []string{
		"a=b",
		`C:\media\clip`,
		"one\r\ntwo\\",
		"tab\tand bell\a",
		"",
	}
	for _, v := range values {
		tok, err := MetadataToken("metadata", "comment", v)
		require.NoError(t, err, v)
		key, stored, ok := strings.Cut(tok, "=")
		require.True(t, ok)
		assert.Equal(t, "comment", key)
		assert.Equal(t, v, stored)
	}

	_, err := MetadataToken("metadata", "", "v")
	assert.Error(t, err)

	_, err = MetadataToken("metadata", "a=b", "v")
	assert.Error(t, err)

	_, err = MetadataToken("metadata", "title", "nul\x00")
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestValidateOptionKey(t *testing.T) {
	for _, key := range []string{"crf", "b:v", "x264-params", "profile:v:0", "movflags", "+genpts"} {
		assert.NoError(t, ValidateOptionKey("opt", key), key)
	}
	for _, key := range []string{"", "-crf", "a b", "k=v", "semi;colon"} {
		assert.Error(t, ValidateOptionKey("opt", key), key)
	}
}

func TestValidateExtraArgs(t *testing.T) {
	assert.NoError(t, ValidateExtraArgs("extra", []string{"-fflags", "+genpts", "-max_delay", "500000"}))

	for _, args := range [][]string{
		{"-i", "other.mp4"},
		{"-y"},
		{"-filter_script:v", "f.txt"},
		{"-filter_script:v:0", "f.txt"},
		{"-protocol_whitelist=file,http"},
		{"-metadata", "a\nb"},
	} {
		err := ValidateExtraArgs("extra", args)
		require.Error(t, err, args)
		assert.Equal(t, KindInvalidArgument, KindOf(err))
	}
}

func TestExtraArgWarnings(t *testing.T) {
	w := ExtraArgWarnings([]string{"-c:v", "libx264", "-re", "-fflags", "+genpts"})
	require.Len(t, w, 2)
	assert.Contains(t, w[0], "-c:v")
	assert.Contains(t, w[1], "-re")
}

func TestParseOptionsString(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "-preset fast -crf 23", want: []string{"-preset", "fast", "-crf", "23"}},
		{in: `-metadata "title=My Show"`, want: []string{"-metadata", "title=My Show"}},
		{in: `-vf 'scale=1280:-2'`, want: []string{"-vf", "scale=1280:-2"}},
		{in: `a\ b c`, want: []string{"a b", "c"}},
		{in: `""`, want: []string{""}},
		{in: `-x 'it\s'`, want: []string{"-x", `it\s`}},
		{in: `"open`, wantErr: true},
		{in: `trailing\`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOptionsString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
