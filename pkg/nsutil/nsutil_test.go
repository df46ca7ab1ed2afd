//go:build linux

package nsutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromFDRejectsNegative(t *testing.T) {
	_, err := NewFromFD(PID, -1)
	assert.Error(t, err)
}

func TestReleaseIsIdempotent(t *testing.T) {
	h := &Handle{kind: UTS, fd: -1}
	require.NoError(t, h.Release())
	require.NoError(t, h.Release())
}

func TestTakeLeavesSourceInert(t *testing.T) {
	h := &Handle{kind: Mount, fd: 42}
	moved := h.Take()

	assert.Equal(t, 42, moved.FD())
	assert.Equal(t, Mount, moved.Kind())
	assert.Equal(t, -1, h.FD())
	assert.NoError(t, h.Release()) // no-op, fd already -1
}

func TestJoinUnknownKindFails(t *testing.T) {
	err := Join(os.Getpid(), Kind(99))
	assert.Error(t, err)
}

func TestProcNameMapping(t *testing.T) {
	assert.Equal(t, "pid", ProcName(PID))
	assert.Equal(t, "net", ProcName(Network))
	assert.Equal(t, "mnt", ProcName(Mount))
	assert.Equal(t, "uts", ProcName(UTS))
	assert.Equal(t, "ipc", ProcName(IPC))
	assert.Equal(t, "user", ProcName(User))
	assert.Equal(t, "cgroup", ProcName(Cgroup))
}
