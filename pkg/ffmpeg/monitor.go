package ffmpeg

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessStats contains resource usage of a supervised process, sampled while
// it runs.
type ProcessStats struct {
	PID int `json:"pid"`

	CPUUser    time.Duration `json:"cpu_user"`
	CPUSystem  time.Duration `json:"cpu_system"`
	CPUTotal   time.Duration `json:"cpu_total"`
	CPUPercent float64       `json:"cpu_percent"` // per core, may exceed 100

	MemoryRSSBytes uint64  `json:"memory_rss_bytes"`
	PeakRSSBytes   uint64  `json:"peak_rss_bytes"`
	MemoryVMSBytes uint64  `json:"memory_vms_bytes"`
	MemoryPercent  float32 `json:"memory_percent"`

	// BytesWritten counts stdout bytes forwarded to the caller's writer.
	BytesWritten uint64 `json:"bytes_written"`

	Samples     int           `json:"samples"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	LastUpdated time.Time     `json:"last_updated"`
}

// ProcessMonitor samples CPU and memory usage of one process at a fixed
// interval until stopped.
type ProcessMonitor struct {
	pid       int
	startedAt time.Time
	interval  time.Duration

	mu    sync.RWMutex
	stats ProcessStats
	proc  *process.Process

	lastCPU   time.Duration
	lastCheck time.Time

	bytesWritten atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewProcessMonitor creates a monitor for pid sampling every interval. A
// non-positive interval defaults to one second.
func NewProcessMonitor(pid int, interval time.Duration) *ProcessMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessMonitor{
		pid:       pid,
		startedAt: time.Now(),
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins sampling in the background. Calling Start twice is a no-op.
func (pm *ProcessMonitor) Start() {
	pm.startOnce.Do(func() {
		pm.wg.Add(1)
		go pm.monitorLoop()
	})
}

// Stop ends sampling and returns the final statistics.
func (pm *ProcessMonitor) Stop() ProcessStats {
	pm.stopOnce.Do(func() {
		pm.cancel()
		pm.wg.Wait()
	})
	return pm.Stats()
}

// Stats returns the current statistics.
func (pm *ProcessMonitor) Stats() ProcessStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	stats := pm.stats
	stats.PID = pm.pid
	stats.StartedAt = pm.startedAt
	stats.BytesWritten = pm.bytesWritten.Load()
	return stats
}

// AddBytesWritten adds to the written byte counter.
func (pm *ProcessMonitor) AddBytesWritten(n uint64) {
	pm.bytesWritten.Add(n)
}

func (pm *ProcessMonitor) monitorLoop() {
	defer pm.wg.Done()

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	pm.sample()
	for {
		select {
		case <-pm.ctx.Done():
			return
		case <-ticker.C:
			pm.sample()
		}
	}
}

// sample takes one reading. Failures are ignored: the process may already
// have exited, in which case the last reading stands.
func (pm *ProcessMonitor) sample() {
	now := time.Now()

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.proc == nil {
		p, err := process.NewProcessWithContext(pm.ctx, int32(pm.pid))
		if err != nil {
			return
		}
		pm.proc = p
	}

	if times, err := pm.proc.TimesWithContext(pm.ctx); err == nil {
		user := secondsToDuration(times.User)
		system := secondsToDuration(times.System)
		total := user + system
		pm.stats.CPUUser = user
		pm.stats.CPUSystem = system
		pm.stats.CPUTotal = total

		if elapsed := now.Sub(pm.lastCheck); !pm.lastCheck.IsZero() && elapsed > 0 {
			pm.stats.CPUPercent = float64(total-pm.lastCPU) / float64(elapsed) * 100
		}
		pm.lastCPU = total
		pm.lastCheck = now
	}

	if mem, err := pm.proc.MemoryInfoWithContext(pm.ctx); err == nil {
		pm.stats.MemoryRSSBytes = mem.RSS
		pm.stats.MemoryVMSBytes = mem.VMS
		pm.stats.PeakRSSBytes = max(pm.stats.PeakRSSBytes, mem.RSS)
	}
	if pct, err := pm.proc.MemoryPercentWithContext(pm.ctx); err == nil {
		pm.stats.MemoryPercent = pct
	}

	pm.stats.Samples++
	pm.stats.Duration = now.Sub(pm.startedAt)
	pm.stats.LastUpdated = now
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// CountingWriter wraps a writer and reports the bytes written to a monitor.
type CountingWriter struct {
	w       io.Writer
	monitor *ProcessMonitor
	count   atomic.Uint64
}

// NewCountingWriter creates a counting writer. monitor may be nil.
func NewCountingWriter(w io.Writer, monitor *ProcessMonitor) *CountingWriter {
	return &CountingWriter{w: w, monitor: monitor}
}

// Write implements io.Writer.
func (cw *CountingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.count.Add(uint64(n))
		if cw.monitor != nil {
			cw.monitor.AddBytesWritten(uint64(n))
		}
	}
	return n, err
}

// Count returns the total bytes written.
func (cw *CountingWriter) Count() uint64 {
	return cw.count.Load()
}
