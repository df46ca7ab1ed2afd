package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/containerrt/pkg/rterrors"
	"github.com/cuemby/containerrt/pkg/types"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "container.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesMinimalConfig(t *testing.T) {
	path := writeTempConfig(t, `
image: "x"
name: "t1"
command: ["/bin/true"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "x", cfg.Image)
	assert.Equal(t, "t1", cfg.Name)
	assert.Equal(t, []string{"/bin/true"}, cfg.Command)
	assert.True(t, cfg.Security.NoNewPrivileges) // default
	assert.Equal(t, "0022", cfg.Security.Umask)   // default
}

func TestLoadRejectsInvalidName(t *testing.T) {
	path := writeTempConfig(t, `
image: "x"
name: "1abc"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, rterrors.InvalidArgument, rterrors.KindOf(err))
}

func TestValidateRejectsEmptyImage(t *testing.T) {
	err := Validate(&types.ContainerConfig{})
	require.Error(t, err)
	assert.Equal(t, rterrors.InvalidArgument, rterrors.KindOf(err))
}

func TestValidateRejectsRelativeWorkingDir(t *testing.T) {
	err := Validate(&types.ContainerConfig{Image: "x", WorkingDir: "relative/path"})
	require.Error(t, err)
}

func TestValidateRejectsEnvWithoutEquals(t *testing.T) {
	err := Validate(&types.ContainerConfig{Image: "x", Env: []string{"NOEQUALS"}})
	require.Error(t, err)
}

func TestValidateRejectsQuotaExceedingPeriod(t *testing.T) {
	err := Validate(&types.ContainerConfig{
		Image:     "x",
		Resources: types.ResourceLimits{CPUQuota: 200000, CPUPeriod: 100000},
	})
	require.Error(t, err)
}

func TestValidateRejectsSwapBelowMemoryLimit(t *testing.T) {
	err := Validate(&types.ContainerConfig{
		Image:     "x",
		Resources: types.ResourceLimits{MemoryLimit: 200, MemorySwapLimit: 100},
	})
	require.Error(t, err)
}

func TestValidateAcceptsUIDGIDOrUsernameUser(t *testing.T) {
	assert.NoError(t, Validate(&types.ContainerConfig{Image: "x", Security: types.SecurityConfig{User: "1000:1000"}}))
	assert.NoError(t, Validate(&types.ContainerConfig{Image: "x", Security: types.SecurityConfig{User: "app"}}))
	assert.Error(t, Validate(&types.ContainerConfig{Image: "x", Security: types.SecurityConfig{User: "@bad"}}))
}

func TestValidateRejectsBadPortMapping(t *testing.T) {
	err := Validate(&types.ContainerConfig{
		Image: "x",
		Network: types.NetworkConfig{
			PortMappings: []types.PortMapping{{ContainerPort: 0, Protocol: "tcp"}},
		},
	})
	require.Error(t, err)

	err = Validate(&types.ContainerConfig{
		Image: "x",
		Network: types.NetworkConfig{
			PortMappings: []types.PortMapping{{ContainerPort: 80, Protocol: "sctp"}},
		},
	})
	require.Error(t, err)
}
