package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/ffwrap/pkg/ffmpeg"
)

// progressView renders progress snapshots. On a terminal it redraws a single
// status line; otherwise snapshots are logged at most once per logEvery.
type progressView struct {
	w      io.Writer
	live   bool
	total  time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	lastLog  time.Time
	lastLen  int
	logEvery time.Duration
}

func newProgressView(w io.Writer, live bool, total time.Duration, logger *slog.Logger) *progressView {
	return &progressView{w: w, live: live, total: total, logger: logger, logEvery: 10 * time.Second}
}

func (v *progressView) update(p ffmpeg.Progress) {
	v.mu.Lock()
	defer v.mu.Unlock()

	line := p.String()
	if pct, ok := v.percent(p); ok {
		line = fmt.Sprintf("%5.1f%% %s", pct, line)
	}

	if v.live {
		pad := ""
		if n := v.lastLen - len(line); n > 0 {
			pad = strings.Repeat(" ", n)
		}
		fmt.Fprintf(v.w, "\r%s%s", line, pad)
		v.lastLen = len(line)
		return
	}

	if now := time.Now(); now.Sub(v.lastLog) >= v.logEvery || p.Done {
		v.lastLog = now
		v.logger.Info("progress", slog.String("status", line))
	}
}

func (v *progressView) percent(p ffmpeg.Progress) (float64, bool) {
	if v.total <= 0 {
		return 0, false
	}
	pct := float64(p.Time) / float64(v.total) * 100
	return min(max(pct, 0), 100), true
}

// finish terminates the live status line.
func (v *progressView) finish() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.live && v.lastLen > 0 {
		fmt.Fprintln(v.w)
		v.lastLen = 0
	}
}

// summary describes a finished run in one line.
func summary(res *ffmpeg.Result) string {
	var b strings.Builder
	if p := res.LastProgress; p != nil {
		b.WriteString(numbers.Sprintf("%d frames, ", p.Frame))
		b.WriteString(p.Time.Truncate(time.Millisecond).String())
		b.WriteString(" of media")
	} else {
		b.WriteString("no progress reported")
	}
	b.WriteString(" in ")
	b.WriteString(res.Elapsed.Truncate(time.Millisecond).String())
	if res.Stats.PeakRSSBytes > 0 {
		b.WriteString(numbers.Sprintf(", peak RSS %d KiB", res.Stats.PeakRSSBytes/1024))
	}
	return b.String()
}
