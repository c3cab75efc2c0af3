package ffmpeg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels are bounded: tool names and fixed reasons only, never arguments or
// locators.
var (
	processStartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ffwrap_process_start_total",
		Help: "Total number of tool invocations, by tool and start result (ok/not_found/spawn_failed).",
	}, []string{"tool", "result"})

	processExitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ffwrap_process_exit_total",
		Help: "Total number of finished invocations, by tool and reason.",
	}, []string{"tool", "reason"})

	processDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ffwrap_process_duration_seconds",
		Help:    "Wall clock duration of supervised invocations.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900, 3600},
	}, []string{"tool"})

	processActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ffwrap_process_active",
		Help: "Number of supervised processes currently running, by tool.",
	}, []string{"tool"})

	progressEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ffwrap_progress_events_total",
		Help: "Total number of progress snapshots delivered, by tool.",
	}, []string{"tool"})
)

// Start results.
const (
	startOK          = "ok"
	startNotFound    = "not_found"
	startSpawnFailed = "spawn_failed"
)

// Exit reasons.
const (
	exitSuccess   = "success"
	exitFailure   = "failure"
	exitTimeout   = "timeout"
	exitCancelled = "cancelled"
	exitParse     = "parse_error"
)
