//go:build linux

package supervisor

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/containerrt/pkg/rterrors"
)

func startSleep(t *testing.T, seconds string) *exec.Cmd {
	t.Helper()
	cmd := exec.Command("/bin/sleep", seconds)
	require.NoError(t, cmd.Start())
	return cmd
}

func TestStopUnmanagedPidFails(t *testing.T) {
	s := New()
	_, err := s.Stop(999999, 1)
	require.Error(t, err)
	assert.Equal(t, rterrors.ProcessNotFound, rterrors.KindOf(err))
}

func TestStopIsIdempotentOnStoppedProcess(t *testing.T) {
	cmd := startSleep(t, "0.1")
	s := New()
	s.Manage(cmd.Process.Pid, nil)

	time.Sleep(300 * time.Millisecond) // let it exit on its own

	ok, err := s.Stop(cmd.Process.Pid, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStopGracefulWithinTimeout(t *testing.T) {
	cmd := startSleep(t, "30")
	s := New()

	var exitedPid, exitedCode int
	var reason string
	done := make(chan struct{})
	s.Manage(cmd.Process.Pid, func(pid, code int, r string) {
		exitedPid, exitedCode, reason = pid, code, r
		close(done)
	})

	ok, err := s.Stop(cmd.Process.Pid, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("exit callback never fired")
	}
	assert.Equal(t, cmd.Process.Pid, exitedPid)
	assert.Equal(t, -15, exitedCode) // SIGTERM == 15
	assert.Contains(t, reason, "signal 15")
}

func TestStatusUnknownForNonexistentPid(t *testing.T) {
	s := New()
	assert.Equal(t, Unknown, s.Status(999999))
}
