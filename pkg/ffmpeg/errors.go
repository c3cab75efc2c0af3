package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCancelled indicates the invocation was stopped by Kill or by its context
// before the tool finished. It is wrapped together with the cancellation cause.
var ErrCancelled = errors.New("invocation cancelled")

// errKilled is the cancellation cause recorded by Process.Kill.
var errKilled = errors.New("killed by caller")

// ErrorKind classifies a failed invocation.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindExecutableNotFound
	KindInvalidArgument
	KindSpawnFailed
	KindProcessFailed
	KindTimeout
	KindCancelled
	KindParse
	KindUnknown
)

var kindNames = [...]string{
	KindNone:               "none",
	KindExecutableNotFound: "executable_not_found",
	KindInvalidArgument:    "invalid_argument",
	KindSpawnFailed:        "spawn_failed",
	KindProcessFailed:      "process_failed",
	KindTimeout:            "timeout",
	KindCancelled:          "cancelled",
	KindParse:              "parse_error",
	KindUnknown:            "unknown",
}

// String returns the snake_case name of the kind.
func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// KindOf classifies err. It returns KindNone for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		notFound *ExecutableNotFoundError
		invalid  *InvalidArgumentError
		spawn    *SpawnError
		proc     *ProcessError
		timeout  *TimeoutError
		parse    *ParseError
	)
	switch {
	case errors.As(err, &timeout):
		return KindTimeout
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.As(err, &notFound):
		return KindExecutableNotFound
	case errors.As(err, &invalid):
		return KindInvalidArgument
	case errors.As(err, &spawn):
		return KindSpawnFailed
	case errors.As(err, &proc):
		return KindProcessFailed
	case errors.As(err, &parse):
		return KindParse
	}
	return KindUnknown
}

// ExecutableNotFoundError reports that a tool binary could not be resolved.
type ExecutableNotFoundError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *ExecutableNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("executable %q not found: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("executable %q not found", e.Name)
}

// Unwrap returns the underlying error.
func (e *ExecutableNotFoundError) Unwrap() error {
	return e.Err
}

// InvalidArgumentError reports a configuration that failed validation. It is
// returned before any process is started.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

func invalidArg(field, reason string) *InvalidArgumentError {
	return &InvalidArgumentError{Field: field, Reason: reason}
}

// SpawnError reports that the operating system refused to start the process.
type SpawnError struct {
	Binary string
	Err    error
}

// Error implements the error interface.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Binary, e.Err)
}

// Unwrap returns the underlying error.
func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ProcessError reports a tool that ran and exited unsuccessfully. ExitCode is
// the raw exit status, or -1 if the process was ended by a signal.
type ProcessError struct {
	Tool        Tool
	ExitCode    int
	Diagnostics string
}

// Error implements the error interface. Only the last diagnostic line is
// included; the full text is in Diagnostics.
func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	if last := lastLine(e.Diagnostics); last != "" {
		msg += ": " + last
	}
	return msg
}

// TimeoutError reports that the invocation exceeded its time limit and the
// process was terminated.
type TimeoutError struct {
	Tool    Tool
	Elapsed time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Tool, e.Elapsed.Round(time.Millisecond))
}

// Is matches context.DeadlineExceeded so callers can test for either.
func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// ParseError reports tool output that could not be interpreted.
type ParseError struct {
	Context string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %v", e.Context, e.Err)
	}
	return "parse " + e.Context
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n ")
	if i := strings.LastIndexAny(s, "\r\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
