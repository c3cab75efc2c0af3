// Package procgroup starts child processes in their own process group and
// terminates the whole group: SIGTERM first, SIGKILL after a grace period.
package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"time"
)

// ErrKillFailed is returned when the group is still running after SIGKILL
// and the kill timeout.
var ErrKillFailed = errors.New("process group did not exit after SIGKILL")

// Outcome records how a group ended during Terminate.
type Outcome int

const (
	// Exited means the process had already exited before any signal.
	Exited Outcome = iota
	// Terminated means the process exited within the grace period after SIGTERM.
	Terminated
	// Killed means SIGKILL was required.
	Killed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Exited:
		return "exited"
	case Terminated:
		return "terminated"
	case Killed:
		return "killed"
	}
	return "unknown"
}

// Set configures cmd to start as the leader of a new process group. It must be
// called before cmd.Start.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Terminate stops the group led by cmd. It sends SIGTERM, waits up to grace
// for exited to close, then sends SIGKILL and waits up to timeout more.
// exited must be closed by the caller once cmd.Wait has returned.
func Terminate(cmd *exec.Cmd, exited <-chan struct{}, grace, timeout time.Duration) (Outcome, error) {
	if cmd == nil || cmd.Process == nil {
		return Exited, nil
	}

	select {
	case <-exited:
		return Exited, nil
	default:
	}

	_ = Stop(cmd)

	graceTimer := time.NewTimer(grace)
	defer graceTimer.Stop()
	select {
	case <-exited:
		return Terminated, nil
	case <-graceTimer.C:
	}

	_ = Kill(cmd)

	killTimer := time.NewTimer(timeout)
	defer killTimer.Stop()
	select {
	case <-exited:
		return Killed, nil
	case <-killTimer.C:
		return Killed, ErrKillFailed
	}
}

// errProcessDone is returned by os.Process methods once Wait has reaped it.
var errProcessDone = os.ErrProcessDone
