// Package cmd implements the CLI commands for ffwrap.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/ffwrap/internal/config"
	"github.com/jmylchreest/ffwrap/internal/observability"
	"github.com/jmylchreest/ffwrap/internal/version"
	"github.com/jmylchreest/ffwrap/pkg/ffmpeg"
)

// app carries the state shared by every subcommand of one execution.
type app struct {
	cfgFile   string
	logLevel  string
	logFormat string
	binaries  map[ffmpeg.Tool]*string
	timeout   string

	cfg    *config.Config
	logger *slog.Logger

	stdout io.Writer
	stderr io.Writer
	// isTerminal reports whether stderr is an interactive terminal.
	isTerminal bool
	gatherer   prometheus.Gatherer
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{
		stdout:     stdout,
		stderr:     stderr,
		isTerminal: isTerminal(stderr),
		gatherer:   prometheus.DefaultGatherer,
	}
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if merr := a.writeMetrics(); merr != nil {
		err = errors.Join(err, merr)
	}
	if err != nil {
		fmt.Fprintln(stderr, "Error:", observability.ScrubURLCredentials(err.Error()))
	}
	return exitCode(err)
}

func (a *app) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "ffwrap",
		Short:   "Build and supervise ffmpeg, ffprobe and ffplay runs",
		Version: version.Short(),
		Long: `ffwrap builds validated command lines for ffmpeg, ffprobe and ffplay,
runs them under supervision with timeouts and cancellation, and reports
progress, probe results and failures in a structured form.

Executables are resolved from the --ffmpeg/--ffprobe/--ffplay flags, the
configuration file, FFWRAP_<TOOL>_BINARY, and finally PATH.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	a.binaries = make(map[ffmpeg.Tool]*string, len(ffmpeg.Tools))
	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.ffwrap.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "text", "log format (text, json)")
	flags.StringVar(&a.timeout, "timeout", "", `wall-clock limit per run, e.g. "90s" or "2 minutes"`)
	for _, tool := range ffmpeg.Tools {
		a.binaries[tool] = flags.String(tool.String(), "", "path to the "+tool.String()+" executable")
	}

	root.AddCommand(
		a.newTranscodeCmd(),
		a.newProbeCmd(),
		a.newPlayCmd(),
		a.newDetectCmd(),
		a.newVersionCmd(),
		a.newConfigCmd(),
	)
	return root
}

// setup loads configuration and installs the logger.
//
// Priority order (highest to lowest): explicitly set flags, environment
// variables, config file, built-in defaults.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return usageErrorf("%v", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = strings.ToLower(a.logLevel)
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = strings.ToLower(a.logFormat)
	}
	if flags.Changed("timeout") {
		d, err := config.ParseDuration(a.timeout)
		if err != nil {
			return usageErrorf("invalid --timeout: %v", err)
		}
		cfg.Process.Timeout = d
	}
	for tool, path := range a.binaries {
		if *path == "" {
			continue
		}
		switch tool {
		case ffmpeg.ToolFFmpeg:
			cfg.FFmpeg.FFmpegPath = *path
		case ffmpeg.ToolFFprobe:
			cfg.FFmpeg.FFprobePath = *path
		case ffmpeg.ToolFFplay:
			cfg.FFmpeg.FFplayPath = *path
		}
	}
	if err := cfg.Validate(); err != nil {
		return usageErrorf("%v", err)
	}
	a.cfg = cfg

	correlationID := uuid.NewString()
	logger := observability.NewLoggerWithWriter(cfg.Logging, a.stderr)
	logger = observability.WithCorrelationID(logger, correlationID)
	a.logger = logger
	slog.SetDefault(logger)

	ctx := observability.ContextWithLogger(cmd.Context(), logger)
	ctx = observability.ContextWithCorrelationID(ctx, correlationID)
	cmd.SetContext(ctx)
	return nil
}

// processOptions returns the supervision options every run shares.
func (a *app) processOptions() []ffmpeg.ProcessOption {
	return append(a.cfg.Process.Options(), ffmpeg.WithLogger(a.logger))
}

// writeMetrics exports the process counters for node_exporter's textfile
// collector when a path is configured.
func (a *app) writeMetrics() error {
	if a.cfg == nil || a.cfg.Metrics.TextfilePath == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.cfg.Metrics.TextfilePath, a.gatherer); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// usageError marks errors in the command line or configuration.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// Exit codes.
const (
	exitOK            = 0
	exitOther         = 1
	exitInvalid       = 2
	exitNotFound      = 3
	exitProcessFailed = 4
	exitTimeout       = 5
	exitCancelled     = 130
)

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var usage *usageError
	if errors.As(err, &usage) {
		return exitInvalid
	}
	switch ffmpeg.KindOf(err) {
	case ffmpeg.KindInvalidArgument:
		return exitInvalid
	case ffmpeg.KindExecutableNotFound:
		return exitNotFound
	case ffmpeg.KindProcessFailed, ffmpeg.KindSpawnFailed:
		return exitProcessFailed
	case ffmpeg.KindTimeout:
		return exitTimeout
	case ffmpeg.KindCancelled:
		return exitCancelled
	}
	if errors.Is(err, context.Canceled) {
		return exitCancelled
	}
	return exitOther
}
