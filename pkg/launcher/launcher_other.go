//go:build !linux

package launcher

import (
	"time"

	"github.com/cuemby/containerrt/pkg/rterrors"
	"github.com/cuemby/containerrt/pkg/types"
)

// Request mirrors the Linux build's configuration surface so callers compile
// unchanged on non-Linux platforms.
type Request struct {
	Executable string
	Argv       []string
	Env        []string
	WorkingDir string
	Namespaces types.NamespaceRequest
	Hostname   string
	UID, GID   int
}

// ProcessInfo mirrors the Linux build's result type.
type ProcessInfo struct {
	PID         int
	Status      string
	StartTime   time.Time
	CommandLine string
	HasPID      bool
	HasNetwork  bool
	HasMount    bool
	HasUTS      bool
	HasIPC      bool
	HasUser     bool
	HasCgroup   bool
}

// Launch always fails: namespace/cgroup process launching is Linux-only.
func Launch(req *Request) (*ProcessInfo, error) {
	return nil, rterrors.New(rterrors.NotSupported, "process launcher requires Linux namespaces")
}

// IsReexec always reports false on non-Linux builds: there is no child-init
// reexec path to dispatch to.
func IsReexec() bool { return false }

// RunReexec is unreachable on non-Linux builds; it exists only so callers
// compile unchanged.
func RunReexec() {}
