package ffmpeg

import (
	"slices"
	"strings"
)

// Command is a built, validated invocation. Builders return a fresh Command
// from every Build call; its argument slice is not shared with the builder.
type Command struct {
	Tool Tool
	// Binary is an explicit executable path. When empty the tool is resolved
	// at run time.
	Binary string
	Args   []string
}

// Argv returns a copy of the argument vector without the executable.
func (c *Command) Argv() []string {
	return slices.Clone(c.Args)
}

// String renders the command for logs with shell-style quoting. It is never
// passed to a shell.
func (c *Command) String() string {
	name := c.Binary
	if name == "" {
		name = c.Tool.String()
	}
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quoteArg(name))
	for _, a := range c.Args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
