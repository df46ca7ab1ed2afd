//go:build linux

package launcher

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/containerrt/pkg/rterrors"
)

func TestLaunchRejectsEmptyExecutable(t *testing.T) {
	_, err := Launch(&Request{})
	require.Error(t, err)
	assert.Equal(t, rterrors.InvalidArgument, rterrors.KindOf(err))
}

func TestLaunchTrueSucceeds(t *testing.T) {
	if os.Getuid() != 0 {
		t.Skip("namespace creation requires root")
	}
	info, err := Launch(&Request{Executable: "/bin/true", Argv: []string{"/bin/true"}})
	require.NoError(t, err)
	assert.Greater(t, info.PID, 0)
	assert.Equal(t, "RUNNING", info.Status)
}

func TestLaunchNonexistentExecutableFails(t *testing.T) {
	if os.Getuid() != 0 {
		t.Skip("namespace creation requires root")
	}
	_, err := Launch(&Request{Executable: "/nonexistent/binary"})
	require.Error(t, err)
	assert.Equal(t, rterrors.ProcessCreationFailed, rterrors.KindOf(err))
	assert.Contains(t, err.Error(), "no such file")
}
