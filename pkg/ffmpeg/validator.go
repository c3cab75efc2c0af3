package ffmpeg

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// blockedFlags may never appear in raw pass-through arguments.
var blockedFlags = map[string]string{
	"-i":                  "input is controlled separately",
	"-y":                  "overwrite mode is controlled separately",
	"-n":                  "no-overwrite mode is controlled separately",
	"-filter_script":      "could load arbitrary script files",
	"-filter_script:v":    "could load arbitrary script files",
	"-filter_script:a":    "could load arbitrary script files",
	"-protocol_whitelist": "could enable dangerous protocols",
	"-protocol_blacklist": "affects protocol handling",
	"-safe":               "security setting should not be overridden",
	"-dump":               "could expose sensitive data",
	"-hex":                "could expose sensitive data",
}

// warnFlags are allowed in raw arguments but usually belong in typed settings.
var warnFlags = map[string]string{
	"-f":        "format is usually set on the input or output",
	"-c:v":      "video codec is usually set with VideoCodec",
	"-c:a":      "audio codec is usually set with AudioCodec",
	"-vcodec":   "video codec is usually set with VideoCodec",
	"-acodec":   "audio codec is usually set with AudioCodec",
	"-threads":  "thread count is usually set in global options",
	"-re":       "realtime reading is usually set on the input",
	"-progress": "progress output is managed by the supervisor",
}

var (
	urlPattern       = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
	optionKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_:.+-]+$`)
)

// A filter description is tokenized twice: once by the graph parser, which
// stops at [ ] , ; and then per option, which stops at : (and = for keys).
const (
	filterWhitespace    = " \n\t\r"
	filterOptionSpecial = `\':=`
	filterGraphSpecial  = `\'[],;`
	filterGraphTerm     = "[],;"
	filterOptionTerm    = ":"
)

func containsControl(s string) bool {
	return strings.ContainsFunc(s, unicode.IsControl)
}

// ValidateLocator checks an input or output locator and returns the token to
// pass to the tool. URLs and pipe: locators are returned unchanged, "-" means
// stdio, and file paths get native separators.
func ValidateLocator(field, locator string) (string, error) {
	switch {
	case locator == "":
		return "", invalidArg(field, "locator is empty")
	case strings.ContainsRune(locator, 0):
		return "", invalidArg(field, "locator contains a NUL byte")
	case containsControl(locator):
		return "", invalidArg(field, "locator contains control characters")
	case locator == "-":
		return locator, nil
	case strings.HasPrefix(locator, "-"):
		return "", invalidArg(field, fmt.Sprintf("locator %q would be read as an option", locator))
	case urlPattern.MatchString(locator), strings.HasPrefix(locator, "pipe:"):
		return locator, nil
	}
	return filepath.FromSlash(locator), nil
}

// EscapeFilterValue escapes a value for use as a filter parameter inside a
// filtergraph. The option level is escaped first (\ ' : = and edge
// whitespace), then the result is escaped again for the graph level
// (\ ' [ ] , ; and edge whitespace).
func EscapeFilterValue(s string) string {
	return escapeFilterLevel(escapeFilterLevel(s, filterOptionSpecial), filterGraphSpecial)
}

// UnescapeFilterValue reads a value back through both tokenizer levels, giving
// what the filter receives for a value rendered by EscapeFilterValue.
func UnescapeFilterValue(s string) string {
	graph, _ := filterToken(s, filterGraphTerm)
	value, _ := filterToken(graph, filterOptionTerm)
	return value
}

func escapeFilterLevel(s, special string) string {
	lead := len(s) - len(strings.TrimLeft(s, filterWhitespace))
	trail := len(strings.TrimRight(s, filterWhitespace))
	if lead == 0 && trail == len(s) && !strings.ContainsAny(s, special) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if i < lead || i >= trail || strings.IndexByte(special, c) >= 0 {
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// filterToken reads one token the way ffmpeg's av_get_token does. Leading
// whitespace is skipped. A backslash takes the next byte literally, and '...'
// is a literal run. Unescaped trailing whitespace is dropped. Reading stops at
// the first unescaped byte from term, and rest starts at that byte.
func filterToken(s, term string) (tok, rest string) {
	s = strings.TrimLeft(s, filterWhitespace)
	out := make([]byte, 0, len(s))
	end, i := 0, 0
	for i < len(s) && strings.IndexByte(term, s[i]) < 0 {
		c := s[i]
		i++
		switch {
		case c == '\\' && i < len(s):
			out = append(out, s[i])
			i++
			end = len(out)
		case c == '\'':
			for i < len(s) && s[i] != '\'' {
				out = append(out, s[i])
				i++
			}
			if i < len(s) {
				i++
				end = len(out)
			}
		default:
			out = append(out, c)
		}
	}
	for len(out) > end && strings.IndexByte(filterWhitespace, out[len(out)-1]) >= 0 {
		out = out[:len(out)-1]
	}
	return string(out), s[i:]
}

// ValidateFilterExpression checks a raw filtergraph expression for control
// characters and unbalanced quotes or brackets.
func ValidateFilterExpression(field, expr string) error {
	if containsControl(expr) {
		return invalidArg(field, "filter expression contains control characters")
	}
	if msg := checkQuoteBalance(expr); msg != "" {
		return invalidArg(field, msg)
	}
	if msg := checkBracketBalance(expr); msg != "" {
		return invalidArg(field, msg)
	}
	return nil
}

// ValidateMetadataKey checks a metadata tag name.
func ValidateMetadataKey(field, key string) error {
	switch {
	case key == "":
		return invalidArg(field, "metadata key is empty")
	case strings.Contains(key, "="):
		return invalidArg(field, fmt.Sprintf("metadata key %q contains '='", key))
	case containsControl(key):
		return invalidArg(field, "metadata key contains control characters")
	}
	return nil
}

// MetadataToken renders a validated key=value token. The tool splits the token
// at the first '=' and stores the rest as is, so the value is passed through
// unchanged and only a NUL byte, which cannot travel in an argument, is
// rejected.
func MetadataToken(field, key, value string) (string, error) {
	if err := ValidateMetadataKey(field, key); err != nil {
		return "", err
	}
	if strings.ContainsRune(value, 0) {
		return "", invalidArg(field+"."+key, "metadata value contains a NUL byte")
	}
	return key + "=" + value, nil
}

// ValidateOptionKey checks an option name given without its leading "-".
func ValidateOptionKey(field, key string) error {
	switch {
	case key == "":
		return invalidArg(field, "option name is empty")
	case strings.HasPrefix(key, "-"):
		return invalidArg(field, fmt.Sprintf("option %q must be given without a leading '-'", key))
	case !optionKeyPattern.MatchString(key):
		return invalidArg(field, fmt.Sprintf("option name %q contains invalid characters", key))
	}
	return nil
}

// ValidateExtraArgs checks raw pass-through arguments for blocked flags and
// control characters.
func ValidateExtraArgs(field string, args []string) error {
	for _, a := range args {
		if containsControl(a) {
			return invalidArg(field, "argument contains control characters")
		}
		flag := a
		if i := strings.IndexByte(a, '='); i > 0 && strings.HasPrefix(a, "-") {
			flag = a[:i]
		}
		if reason, blocked := blockedFlags[flag]; blocked {
			return invalidArg(field, fmt.Sprintf("flag %s is blocked: %s", flag, reason))
		}
		if strings.HasPrefix(flag, "-filter_script") {
			return invalidArg(field, fmt.Sprintf("flag %s is blocked: could load arbitrary script files", flag))
		}
	}
	return nil
}

// ExtraArgWarnings returns advisory messages for raw arguments that duplicate
// typed settings.
func ExtraArgWarnings(args []string) []string {
	var warnings []string
	for _, a := range args {
		if reason, ok := warnFlags[a]; ok {
			warnings = append(warnings, a+": "+reason)
		}
	}
	return warnings
}

// ParseOptionsString splits a user-supplied options string into arguments.
// Single and double quotes group words and are removed; a backslash escapes
// the next character.
func ParseOptionsString(s string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inToken bool
		quote   rune
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inToken = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				args = append(args, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, fmt.Errorf("trailing backslash")
	}
	if inToken {
		args = append(args, current.String())
	}
	return args, nil
}

// checkQuoteBalance verifies that single quotes are balanced outside of
// backslash escapes.
func checkQuoteBalance(s string) string {
	inQuote := false
	escaped := false

	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		// Backslash is literal inside a quoted section of a filtergraph.
		if r == '\\' && !inQuote {
			escaped = true
			continue
		}
		if r == '\'' {
			inQuote = !inQuote
		}
	}

	if inQuote {
		return "unbalanced single quotes"
	}
	return ""
}

// checkBracketBalance verifies that brackets and parentheses are balanced,
// ignoring escaped and quoted characters.
func checkBracketBalance(s string) string {
	stack := []rune{}
	pairs := map[rune]rune{
		')': '(',
		']': '[',
		'}': '{',
	}
	openers := map[rune]bool{'(': true, '[': true, '{': true}

	inQuote := false
	escaped := false

	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		if r == '\\' && !inQuote {
			escaped = true
			continue
		}
		if r == '\'' {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}

		if openers[r] {
			stack = append(stack, r)
		} else if opener, isCloser := pairs[r]; isCloser {
			if len(stack) == 0 || stack[len(stack)-1] != opener {
				return "unbalanced brackets: unexpected '" + string(r) + "'"
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > 0 {
		return "unbalanced brackets: unclosed '" + string(stack[len(stack)-1]) + "'"
	}
	return ""
}
