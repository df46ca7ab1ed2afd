//go:build linux

package launcher

import (
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/cuemby/containerrt/pkg/launcher/internal/childinit"
	"github.com/cuemby/containerrt/pkg/nsutil"
	"github.com/cuemby/containerrt/pkg/rterrors"
	"github.com/cuemby/containerrt/pkg/types"
)

// Request is the launcher's configuration surface (spec.md §4.5).
type Request struct {
	Executable string
	Argv       []string
	Env        []string
	WorkingDir string
	Namespaces types.NamespaceRequest
	Hostname   string
	UID, GID   int
}

// ProcessInfo is what a successful Launch returns.
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

// IsReexec reports whether the current process was invoked as the child-init
// reexec target rather than as the normal entry point. A binary that embeds
// this package must check IsReexec before any other startup work and, if
// true, call RunReexec and return without executing its normal main.
func IsReexec() bool {
	return childinit.IsChildInit()
}

// RunReexec completes child bring-up (hostname, signal-handler reset,
// chdir, final execve) and never returns on success; on failure it reports
// the errno to the parent's error pipe and exits the process directly.
func RunReexec() {
	childinit.Run()
}

// selfExe is overridable in tests; defaults to /proc/self/exe so the
// reexec always runs the exact binary currently executing, regardless of
// argv[0] or PATH.
var selfExe = "/proc/self/exe"

// Launch forks a child with the requested namespaces unshared at clone
// time, reexecs into childinit to finish bring-up, and execves req.Executable.
func Launch(req *Request) (*ProcessInfo, error) {
	if req.Executable == "" {
		return nil, rterrors.New(rterrors.InvalidArgument, "executable is required")
	}

	var cloneflags uintptr
	if req.Namespaces.PID {
		cloneflags |= nsutil.CloneFlag(nsutil.PID)
	}
	if req.Namespaces.Network {
		cloneflags |= nsutil.CloneFlag(nsutil.Network)
	}
	if req.Namespaces.Mount {
		cloneflags |= nsutil.CloneFlag(nsutil.Mount)
	}
	if req.Namespaces.UTS {
		cloneflags |= nsutil.CloneFlag(nsutil.UTS)
	}
	if req.Namespaces.IPC {
		cloneflags |= nsutil.CloneFlag(nsutil.IPC)
	}
	if req.Namespaces.User {
		cloneflags |= nsutil.CloneFlag(nsutil.User)
	}
	if req.Namespaces.Cgroup {
		cloneflags |= nsutil.CloneFlag(nsutil.Cgroup)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, rterrors.Wrap(rterrors.ProcessCreationFailed, err, "create error pipe")
	}
	defer r.Close()

	params := childinit.Params{
		Exe:        req.Executable,
		Argv:       req.Argv,
		Env:        req.Env,
		WorkingDir: req.WorkingDir,
		Hostname:   req.Hostname,
		HasUTS:     req.Namespaces.UTS,
		ErrPipeFD:  3, // first fd after stdin/stdout/stderr via ExtraFiles
	}

	cmd := exec.Command(selfExe)
	cmd.Args = []string{childinit.Marker}
	cmd.Env = append(os.Environ(), childinit.Encode(params)...)
	cmd.ExtraFiles = []*os.File{w}
	cmd.SysProcAttr = &syscall.SysProcAttr{Cloneflags: uintptr(cloneflags)}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr

	if err := cmd.Start(); err != nil {
		w.Close()
		return nil, rterrors.Wrap(rterrors.ProcessCreationFailed, err, "start reexec")
	}
	w.Close() // parent's copy; child (and its own reexec) hold the real one

	buf := make([]byte, 4)
	n, readErr := r.Read(buf)

	switch {
	case n == 4:
		errno := int32(buf[0]) | int32(buf[1])<<8 | int32(buf[2])<<16 | int32(buf[3])<<24
		_, _ = cmd.Process.Wait()
		return nil, rterrors.Wrap(rterrors.ProcessCreationFailed, syscall.Errno(errno), "child bring-up failed")
	case readErr == nil || n == 0:
		// EOF: execve succeeded.
	default:
		_, _ = cmd.Process.Wait()
		return nil, rterrors.Wrap(rterrors.ProcessCreationFailed, readErr, "read error pipe")
	}

	return &ProcessInfo{
		PID:         cmd.Process.Pid,
		Status:      "RUNNING",
		StartTime:   time.Now(),
		CommandLine: req.Executable + " " + strings.Join(req.Argv, " "),
		HasPID:      req.Namespaces.PID,
		HasNetwork:  req.Namespaces.Network,
		HasMount:    req.Namespaces.Mount,
		HasUTS:      req.Namespaces.UTS,
		HasIPC:      req.Namespaces.IPC,
		HasUser:     req.Namespaces.User,
		HasCgroup:   req.Namespaces.Cgroup,
	}, nil
}
