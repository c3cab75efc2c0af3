package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/ffwrap/internal/procgroup"
)

// State is the lifecycle state of a Process.
type State int32

const (
	StateCreated State = iota
	StateSpawned
	StateRunning
	StateCompleted
	StateTimedOut
	StateKilled
	StateSpawnFailed
)

var stateNames = [...]string{
	StateCreated:     "created",
	StateSpawned:     "spawned",
	StateRunning:     "running",
	StateCompleted:   "completed",
	StateTimedOut:    "timed_out",
	StateKilled:      "killed",
	StateSpawnFailed: "spawn_failed",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

const (
	// DefaultGracePeriod is how long a process gets to exit after SIGTERM.
	DefaultGracePeriod = 5 * time.Second
	// DefaultKillTimeout bounds the wait after SIGKILL.
	DefaultKillTimeout = 5 * time.Second
	// DefaultEventBuffer is the capacity of the Events channel.
	DefaultEventBuffer = 64
	// DefaultMonitorInterval is the resource sampling period.
	DefaultMonitorInterval = time.Second
)

var errTimedOut = errors.New("time limit exceeded")

// ProcessOption configures a Process.
type ProcessOption func(*Process)

// WithTimeout bounds the whole invocation. Zero means no limit.
func WithTimeout(d time.Duration) ProcessOption {
	return func(p *Process) { p.timeout = d }
}

// WithGracePeriod sets the wait between SIGTERM and SIGKILL.
func WithGracePeriod(d time.Duration) ProcessOption {
	return func(p *Process) {
		if d > 0 {
			p.grace = d
		}
	}
}

// WithKillTimeout sets the wait after SIGKILL before giving up.
func WithKillTimeout(d time.Duration) ProcessOption {
	return func(p *Process) {
		if d > 0 {
			p.killTimeout = d
		}
	}
}

// WithLogger sets the logger. Records carry component, tool and
// invocation_id attributes.
func WithLogger(l *slog.Logger) ProcessOption {
	return func(p *Process) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithDiagnosticsCap bounds the retained diagnostic text in bytes.
func WithDiagnosticsCap(n int) ProcessOption {
	return func(p *Process) { p.diagCap = n }
}

// WithMonitorInterval sets the resource sampling period. Zero disables
// sampling.
func WithMonitorInterval(d time.Duration) ProcessOption {
	return func(p *Process) { p.monitorInterval = d }
}

// WithStdin connects r to the process's standard input.
func WithStdin(r io.Reader) ProcessOption {
	return func(p *Process) { p.stdin = r }
}

// WithStdout streams standard output to w instead of capturing it.
func WithStdout(w io.Writer) ProcessOption {
	return func(p *Process) { p.stdout = w }
}

// WithEnv adds "KEY=value" entries to the inherited environment.
func WithEnv(env ...string) ProcessOption {
	return func(p *Process) { p.env = append(p.env, env...) }
}

// WithDir sets the working directory.
func WithDir(dir string) ProcessOption {
	return func(p *Process) { p.dir = dir }
}

// WithEventBuffer sets the capacity of the Events channel.
func WithEventBuffer(n int) ProcessOption {
	return func(p *Process) {
		if n >= 0 {
			p.eventBuffer = n
		}
	}
}

// WithProgressHandler registers a progress observer, as OnProgress does.
func WithProgressHandler(fn func(Progress)) ProcessOption {
	return func(p *Process) {
		if fn != nil {
			p.observers = append(p.observers, fn)
		}
	}
}

// Process supervises one run of a Command. It resolves the executable,
// starts it in its own process group, drains both output streams, parses
// progress from the diagnostic stream and guarantees that the group is gone
// when Run returns.
//
// A Process runs once.
type Process struct {
	cmd *Command
	id  ulid.ULID

	timeout         time.Duration
	grace           time.Duration
	killTimeout     time.Duration
	monitorInterval time.Duration
	diagCap         int
	eventBuffer     int
	logger          *slog.Logger
	stdin           io.Reader
	stdout          io.Writer
	env             []string
	dir             string

	state atomic.Int32
	ran   atomic.Bool
	pid   atomic.Int64

	mu        sync.Mutex
	observers []func(Progress)
	events    chan Progress
	started   bool
	cancel    context.CancelCauseFunc
	killed    bool
}

// NewProcess prepares cmd for execution. The command is copied.
func NewProcess(cmd *Command, opts ...ProcessOption) *Process {
	p := &Process{
		cmd:             &Command{Tool: cmd.Tool, Binary: cmd.Binary, Args: slices.Clone(cmd.Args)},
		id:              ulid.Make(),
		grace:           DefaultGracePeriod,
		killTimeout:     DefaultKillTimeout,
		monitorInterval: DefaultMonitorInterval,
		eventBuffer:     DefaultEventBuffer,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(
		slog.String("component", "ffmpeg"),
		slog.String("tool", p.cmd.Tool.String()),
		slog.String("invocation_id", p.id.String()),
	)
	return p
}

// Run starts cmd with opts and waits for it.
func (c *Command) Run(ctx context.Context, opts ...ProcessOption) (*Result, error) {
	return NewProcess(c, opts...).Run(ctx)
}

// ID returns the invocation id.
func (p *Process) ID() string { return p.id.String() }

// State returns the current lifecycle state.
func (p *Process) State() State { return State(p.state.Load()) }

// PID returns the process id once spawned, otherwise 0.
func (p *Process) PID() int { return int(p.pid.Load()) }

// OnProgress registers an observer called synchronously, in order, for every
// progress snapshot. Observers run on the goroutine draining the diagnostic
// stream; a slow observer slows the tool down.
func (p *Process) OnProgress(fn func(Progress)) *Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fn != nil {
		p.observers = append(p.observers, fn)
	}
	return p
}

// Events returns a channel receiving every progress snapshot. It is closed
// before Run returns. The caller must keep receiving until it is closed:
// sends block when the buffer is full. Snapshots produced after the
// invocation was cancelled may be dropped. Called after Run has started, it
// returns a closed channel.
func (p *Process) Events() <-chan Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = make(chan Progress, p.eventBuffer)
		if p.started {
			close(p.events)
		}
	}
	return p.events
}

// Kill requests termination. Run returns once the process group is gone,
// with an error wrapping ErrCancelled. Killing before Run prevents the spawn.
func (p *Process) Kill() {
	p.mu.Lock()
	p.killed = true
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel(errKilled)
	}
}

// Run executes the command and blocks until the process and everything it
// spawned in its group have exited. When the process was started the Result
// is returned even alongside an error.
func (p *Process) Run(ctx context.Context) (*Result, error) {
	if !p.ran.CompareAndSwap(false, true) {
		return nil, errors.New("ffmpeg: process already run")
	}

	p.mu.Lock()
	p.started = true
	events := p.events
	p.mu.Unlock()
	if events != nil {
		defer close(events)
	}

	tool := p.cmd.Tool.String()
	logger := p.logger

	binary, err := ResolveBinary(p.cmd.Tool, p.cmd.Binary)
	if err != nil {
		p.state.Store(int32(StateSpawnFailed))
		processStartTotal.WithLabelValues(tool, startNotFound).Inc()
		logger.Warn("executable not found", slog.String("error", err.Error()))
		return nil, err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if p.timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeoutCause(runCtx, p.timeout, errTimedOut)
		defer cancelTimeout()
	}

	p.mu.Lock()
	p.cancel = cancel
	killed := p.killed
	p.mu.Unlock()
	if killed {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, errKilled)
	}
	if runCtx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, context.Cause(runCtx))
	}

	c := exec.Command(binary, p.cmd.Args...)
	procgroup.Set(c)
	c.Dir = p.dir
	if len(p.env) > 0 {
		c.Env = append(os.Environ(), p.env...)
	}
	if p.stdin != nil {
		c.Stdin = p.stdin
		c.WaitDelay = p.killTimeout
	}

	// The write ends are handed to the child directly, so Wait does not
	// depend on our readers.
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		return nil, p.spawnFailed(binary, err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stderrR.Close()
		stderrW.Close()
		return nil, p.spawnFailed(binary, err)
	}
	c.Stderr = stderrW
	c.Stdout = stdoutW

	start := time.Now()
	err = c.Start()
	stderrW.Close()
	stdoutW.Close()
	if err != nil {
		stderrR.Close()
		stdoutR.Close()
		return nil, p.spawnFailed(binary, err)
	}
	defer stderrR.Close()
	defer stdoutR.Close()

	pid := c.Process.Pid
	p.pid.Store(int64(pid))
	p.state.Store(int32(StateSpawned))
	processStartTotal.WithLabelValues(tool, startOK).Inc()
	processActive.WithLabelValues(tool).Inc()
	defer processActive.WithLabelValues(tool).Dec()
	logger.Debug("process started", slog.Int("pid", pid), slog.String("command", p.cmd.String()))

	var waitErr error
	exited := make(chan struct{})
	go func() {
		waitErr = c.Wait()
		close(exited)
	}()

	// Whatever path leaves Run, the group does not outlive it.
	defer func() {
		select {
		case <-exited:
		default:
			_ = procgroup.Kill(c)
			select {
			case <-exited:
			case <-time.After(p.killTimeout):
			}
		}
	}()

	var monitor *ProcessMonitor
	if p.monitorInterval > 0 {
		monitor = NewProcessMonitor(pid, p.monitorInterval)
		monitor.Start()
	}

	parser := NewProgressParser(p.diagCap)
	var stdoutBuf bytes.Buffer
	var counter *CountingWriter
	var stdoutDst io.Writer = &stdoutBuf
	if p.stdout != nil {
		counter = NewCountingWriter(p.stdout, monitor)
		stdoutDst = counter
	}

	var g errgroup.Group
	g.Go(func() error {
		err := p.drainDiagnostics(stderrR, parser, events, runCtx.Done(), tool)
		if err != nil {
			cancel(err)
		}
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(stdoutDst, stdoutR)
		if err != nil && !errors.Is(err, os.ErrClosed) {
			err = fmt.Errorf("writing output: %w", err)
			cancel(err)
			return err
		}
		return nil
	})

	var (
		terminated bool
		termErr    error
	)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-exited:
		case <-runCtx.Done():
			logger.Info("terminating process",
				slog.Int("pid", pid),
				slog.String("reason", context.Cause(runCtx).Error()))
			var outcome procgroup.Outcome
			outcome, termErr = procgroup.Terminate(c, exited, p.grace, p.killTimeout)
			terminated = outcome != procgroup.Exited
			logger.Debug("process terminated", slog.String("outcome", outcome.String()))
		}
	}()
	p.state.Store(int32(StateRunning))

	<-watchDone
	var state *os.ProcessState
	if termErr != nil {
		logger.Error("process group survived SIGKILL", slog.Int("pid", pid), slog.String("error", termErr.Error()))
	} else {
		<-exited
		state = c.ProcessState
		// Members that outlived the leader would hold the pipes open.
		if swept, err := procgroup.Sweep(c); swept {
			logger.Debug("killed processes left in group", slog.Int("pid", pid), slog.Any("error", err))
		}
	}

	readersDone := make(chan error, 1)
	go func() { readersDone <- g.Wait() }()
	var readErr error
	select {
	case readErr = <-readersDone:
	case <-time.After(p.killTimeout):
		logger.Warn("output streams still open after exit, closing")
		stderrR.Close()
		stdoutR.Close()
		readErr = <-readersDone
	}

	var stats ProcessStats
	if monitor != nil {
		stats = monitor.Stop()
	}
	stats.PID = pid
	if state != nil {
		stats.CPUUser = state.UserTime()
		stats.CPUSystem = state.SystemTime()
		stats.CPUTotal = stats.CPUUser + stats.CPUSystem
	}

	elapsed := time.Since(start)
	processDuration.WithLabelValues(tool).Observe(elapsed.Seconds())

	res := &Result{
		InvocationID:         p.id.String(),
		Tool:                 p.cmd.Tool,
		Binary:               binary,
		Args:                 slices.Clone(p.cmd.Args),
		PID:                  pid,
		ExitCode:             exitCode(state),
		Diagnostics:          parser.Diagnostics(),
		DiagnosticsTruncated: parser.Truncated(),
		ProgressCount:        parser.Count(),
		StartedAt:            start,
		Elapsed:              elapsed,
		Stats:                stats,
	}
	if last, ok := parser.Last(); ok {
		res.LastProgress = &last
	}
	if counter != nil {
		res.BytesWritten = counter.Count()
	} else {
		res.Stdout = stdoutBuf.Bytes()
	}

	if state == nil {
		// Never reaped; waitErr is still owned by the wait goroutine.
		err = p.classify(runCtx, res, true, nil, readErr)
	} else {
		err = p.classify(runCtx, res, terminated, waitErr, readErr)
	}
	if termErr != nil {
		err = errors.Join(err, termErr)
	}

	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx, level, "process finished",
		slog.Any("result", res),
		slog.String("state", p.State().String()),
		slog.String("error_kind", KindOf(err).String()))
	return res, err
}

func (p *Process) spawnFailed(binary string, err error) error {
	tool := p.cmd.Tool.String()
	p.state.Store(int32(StateSpawnFailed))
	processStartTotal.WithLabelValues(tool, startSpawnFailed).Inc()
	p.logger.Warn("process failed to start", slog.String("binary", binary), slog.String("error", err.Error()))
	return &SpawnError{Binary: binary, Err: err}
}

// classify sets the terminal state and maps the outcome to an error.
func (p *Process) classify(ctx context.Context, res *Result, terminated bool, waitErr, readErr error) error {
	tool := res.Tool.String()

	if terminated {
		cause := context.Cause(ctx)
		if errors.Is(cause, errTimedOut) || errors.Is(cause, context.DeadlineExceeded) {
			p.state.Store(int32(StateTimedOut))
			processExitTotal.WithLabelValues(tool, exitTimeout).Inc()
			return &TimeoutError{Tool: res.Tool, Elapsed: res.Elapsed}
		}
		p.state.Store(int32(StateKilled))
		processExitTotal.WithLabelValues(tool, exitCancelled).Inc()
		return fmt.Errorf("%w: %w", ErrCancelled, cause)
	}

	p.state.Store(int32(StateCompleted))

	if waitErr != nil {
		processExitTotal.WithLabelValues(tool, exitFailure).Inc()
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return &ProcessError{Tool: res.Tool, ExitCode: res.ExitCode, Diagnostics: res.Diagnostics}
		}
		return fmt.Errorf("waiting for %s: %w", tool, waitErr)
	}
	if readErr != nil {
		processExitTotal.WithLabelValues(tool, exitFailure).Inc()
		return fmt.Errorf("reading %s output: %w", tool, readErr)
	}

	if res.Tool == ToolFFprobe && p.stdout == nil {
		doc := bytes.TrimSpace(res.Stdout)
		if len(doc) == 0 {
			processExitTotal.WithLabelValues(tool, exitParse).Inc()
			return &ParseError{Context: "ffprobe output: empty document"}
		}
		if !json.Valid(doc) {
			processExitTotal.WithLabelValues(tool, exitParse).Inc()
			return &ParseError{Context: "ffprobe output", Err: errors.New("invalid JSON document")}
		}
		res.Document = json.RawMessage(doc)
	}

	processExitTotal.WithLabelValues(tool, exitSuccess).Inc()
	return nil
}

// drainDiagnostics reads the diagnostic stream to EOF, feeding the parser and
// delivering snapshots. A panicking observer is reported as an error.
func (p *Process) drainDiagnostics(r io.Reader, parser *ProgressParser, events chan<- Progress, done <-chan struct{}, tool string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("progress observer panicked: %v", rec)
		}
	}()

	buf := make([]byte, 32*1024)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			for _, snap := range parser.Feed(buf[:n]) {
				p.deliver(snap, events, done, tool)
			}
		}
		if rerr != nil {
			for _, snap := range parser.Close() {
				p.deliver(snap, events, done, tool)
			}
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, os.ErrClosed) {
				return nil
			}
			return rerr
		}
	}
}

func (p *Process) deliver(snap Progress, events chan<- Progress, done <-chan struct{}, tool string) {
	progressEventsTotal.WithLabelValues(tool).Inc()

	p.mu.Lock()
	observers := p.observers
	p.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}

	if events != nil {
		select {
		case events <- snap:
		case <-done:
		}
	}
}

func exitCode(ps *os.ProcessState) int {
	if ps == nil {
		return -1
	}
	return ps.ExitCode()
}
