//go:build !unix

package procgroup

import (
	"errors"
	"os"
	"os/exec"
)

func set(cmd *exec.Cmd) {}

// Stop interrupts the process. Groups and graceful signals are not available
// on this platform, so only the leader is reached.
func Stop(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := cmd.Process.Signal(os.Interrupt)
	if errors.Is(err, errProcessDone) {
		return nil
	}
	return err
}

// Kill forcibly ends the process.
func Kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := cmd.Process.Kill()
	if errors.Is(err, errProcessDone) {
		return nil
	}
	return err
}

// Sweep is Kill on this platform. Without groups only the leader is known, and
// signalling it after Wait is a no-op.
func Sweep(cmd *exec.Cmd) (bool, error) {
	return false, Kill(cmd)
}

// Alive reports whether the process with pid exists.
func Alive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
