//go:build unix

package procgroup

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func set(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Stop sends SIGTERM to the group led by cmd.
func Stop(cmd *exec.Cmd) error {
	return signalGroup(cmd, unix.SIGTERM)
}

// Kill sends SIGKILL to the group led by cmd. It also reaches members that
// outlived the leader.
func Kill(cmd *exec.Cmd) error {
	return signalGroup(cmd, unix.SIGKILL)
}

// Alive reports whether any process of the group led by pid still exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(-pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Sweep kills members of the group led by cmd that outlived the leader and
// reports whether any were found. It signals only while the group still has
// members: once it is empty the id may be handed to an unrelated process. A
// member exiting between the check and the signal still leaves a short window.
func Sweep(cmd *exec.Cmd) (bool, error) {
	if cmd == nil || cmd.Process == nil || !Alive(cmd.Process.Pid) {
		return false, nil
	}
	return true, Kill(cmd)
}

func signalGroup(cmd *exec.Cmd, sig unix.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	// The leader's pid is the group id because of Setpgid. After the leader
	// is reaped the id is only safe to signal while members remain; see Sweep.
	pgid := cmd.Process.Pid
	if err := unix.Kill(-pgid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		// Fall back to the leader alone.
		if perr := cmd.Process.Signal(sig); perr != nil && !errors.Is(perr, errProcessDone) {
			return err
		}
	}
	return nil
}
