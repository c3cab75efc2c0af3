//go:build unix

package procgroup

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func startGroup(t *testing.T, script string) (*exec.Cmd, chan struct{}) {
	t.Helper()
	cmd := exec.Command("sh", "-c", script)
	Set(cmd)
	require.NoError(t, cmd.Start())

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()
	t.Cleanup(func() {
		select {
		case <-exited:
		default:
			_ = Kill(cmd)
			<-exited
		}
		_, _ = Sweep(cmd)
	})
	return cmd, exited
}

func TestSetMakesGroupLeader(t *testing.T) {
	cmd, _ := startGroup(t, "sleep 10")

	pgid, err := unix.Getpgid(cmd.Process.Pid)
	require.NoError(t, err)
	assert.Equal(t, cmd.Process.Pid, pgid)
}

func TestTerminateGraceful(t *testing.T) {
	cmd, exited := startGroup(t, "sleep 10 & sleep 10; wait")
	time.Sleep(50 * time.Millisecond)

	outcome, err := Terminate(cmd, exited, 2*time.Second, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Terminated, outcome)

	assert.Eventually(t, func() bool { return !Alive(cmd.Process.Pid) },
		2*time.Second, 20*time.Millisecond, "process group should be gone")
}

func TestTerminateEscalatesToKill(t *testing.T) {
	// The shell ignores SIGTERM, so only SIGKILL ends it.
	cmd, exited := startGroup(t, "trap '' TERM; sleep 10 & sleep 10; wait")
	time.Sleep(50 * time.Millisecond)

	outcome, err := Terminate(cmd, exited, 100*time.Millisecond, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Killed, outcome)

	assert.Eventually(t, func() bool { return !Alive(cmd.Process.Pid) },
		2*time.Second, 20*time.Millisecond, "process group should be gone")
}

func TestTerminateAlreadyExited(t *testing.T) {
	cmd, exited := startGroup(t, "exit 0")
	<-exited

	outcome, err := Terminate(cmd, exited, 10*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, Exited, outcome)
}

func TestSweep(t *testing.T) {
	cmd, exited := startGroup(t, "sleep 30 >/dev/null 2>&1 &")
	<-exited

	require.True(t, Alive(cmd.Process.Pid), "background member should outlive the leader")
	swept, err := Sweep(cmd)
	require.NoError(t, err)
	assert.True(t, swept)
	assert.Eventually(t, func() bool { return !Alive(cmd.Process.Pid) },
		2*time.Second, 10*time.Millisecond, "member should be killed")

	// An empty group is never signalled.
	swept, err = Sweep(cmd)
	require.NoError(t, err)
	assert.False(t, swept)
}

func TestSweepLeaderOnly(t *testing.T) {
	cmd, exited := startGroup(t, "exit 0")
	<-exited

	swept, err := Sweep(cmd)
	require.NoError(t, err)
	assert.False(t, swept)
}

func TestKillNilCommand(t *testing.T) {
	assert.NoError(t, Kill(nil))
	swept, err := Sweep(nil)
	require.NoError(t, err)
	assert.False(t, swept)
	assert.NoError(t, Stop(&exec.Cmd{}))
	outcome, err := Terminate(nil, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, Exited, outcome)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "exited", Exited.String())
	assert.Equal(t, "terminated", Terminated.String())
	assert.Equal(t, "killed", Killed.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
