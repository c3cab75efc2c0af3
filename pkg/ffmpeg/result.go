package ffmpeg

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Result describes a finished invocation.
type Result struct {
	InvocationID string   `json:"invocation_id"`
	Tool         Tool     `json:"tool"`
	Binary       string   `json:"binary"`
	Args         []string `json:"args"`
	PID          int      `json:"pid"`
	// ExitCode is the raw exit status, -1 when ended by a signal.
	ExitCode int `json:"exit_code"`

	Diagnostics          string    `json:"diagnostics,omitempty"`
	DiagnosticsTruncated bool      `json:"diagnostics_truncated,omitempty"`
	LastProgress         *Progress `json:"last_progress,omitempty"`
	ProgressCount        int       `json:"progress_count"`

	// Stdout holds captured standard output. It is empty when output was
	// streamed with WithStdout; BytesWritten counts it instead.
	Stdout       []byte `json:"-"`
	BytesWritten uint64 `json:"bytes_written,omitempty"`
	// Document is the validated JSON output of ffprobe.
	Document json.RawMessage `json:"document,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
	Stats     ProcessStats  `json:"stats"`
}

// Success reports a zero exit status.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// LogValue implements slog.LogValuer. Diagnostics and output are left out.
func (r *Result) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("pid", r.PID),
		slog.Int("exit_code", r.ExitCode),
		slog.Duration("elapsed", r.Elapsed),
		slog.Int("progress_events", r.ProgressCount),
	}
	if r.Stats.PeakRSSBytes > 0 {
		attrs = append(attrs, slog.Uint64("peak_rss_bytes", r.Stats.PeakRSSBytes))
	}
	if r.Stats.CPUTotal > 0 {
		attrs = append(attrs, slog.Duration("cpu_total", r.Stats.CPUTotal))
	}
	if r.BytesWritten > 0 {
		attrs = append(attrs, slog.Uint64("bytes_written", r.BytesWritten))
	}
	if r.LastProgress != nil {
		attrs = append(attrs, slog.Duration("media_time", r.LastProgress.Time))
	}
	return slog.GroupValue(attrs...)
}
