//go:build linux

package nsutil

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/cuemby/containerrt/pkg/rterrors"
)

// Kind identifies one of the seven Linux namespace types.
type Kind int

const (
	PID Kind = iota
	Network
	Mount
	UTS
	IPC
	User
	Cgroup
)

// cloneFlag maps a Kind to its CLONE_NEW* unshare/clone flag.
var cloneFlag = map[Kind]uintptr{
	PID:     unix.CLONE_NEWPID,
	Network: unix.CLONE_NEWNET,
	Mount:   unix.CLONE_NEWNS,
	UTS:     unix.CLONE_NEWUTS,
	IPC:     unix.CLONE_NEWIPC,
	User:    unix.CLONE_NEWUSER,
	Cgroup:  unix.CLONE_NEWCGROUP,
}

// procName is the canonical /proc/<pid>/ns/<name> entry for each Kind.
var procName = map[Kind]string{
	PID:     "pid",
	Network: "net",
	Mount:   "mnt",
	UTS:     "uts",
	IPC:     "ipc",
	User:    "user",
	Cgroup:  "cgroup",
}

// CloneFlag returns the CLONE_NEW* flag for kind, for callers (pkg/launcher)
// building a syscall.SysProcAttr.Cloneflags mask directly.
func CloneFlag(kind Kind) uintptr { return cloneFlag[kind] }

// ProcName returns the canonical /proc/<pid>/ns/<name> component for kind.
func ProcName(kind Kind) string { return procName[kind] }

// Handle is a scoped reference to one namespace file descriptor.
type Handle struct {
	mu   sync.Mutex
	kind Kind
	fd   int
}

// New creates a new namespace of kind in the current process via unshare.
func New(kind Kind) (*Handle, error) {
	flag, ok := cloneFlag[kind]
	if !ok {
		return nil, rterrors.New(rterrors.InvalidArgument, "unknown namespace kind %d", kind)
	}
	if err := unix.Unshare(int(flag)); err != nil {
		return nil, rterrors.Wrap(rterrors.NamespaceCreationFailed, err, "unshare kind %d", kind)
	}
	return &Handle{kind: kind, fd: -1}, nil
}

// NewFromFD wraps a pre-opened file descriptor referencing a namespace.
func NewFromFD(kind Kind, fd int) (*Handle, error) {
	if fd < 0 {
		return nil, rterrors.New(rterrors.NamespaceNotFound, "invalid fd %d for kind %d", fd, kind)
	}
	return &Handle{kind: kind, fd: fd}, nil
}

// Join opens /proc/<pid>/ns/<kind> close-on-exec and setns()s into it,
// closing the temporary fd afterward. It does not return a Handle: joining
// is a one-shot operation on the calling thread's namespace, not a resource
// the caller continues to own.
func Join(pid int, kind Kind) error {
	name, ok := procName[kind]
	if !ok {
		return rterrors.New(rterrors.InvalidArgument, "unknown namespace kind %d", kind)
	}
	path := fmt.Sprintf("/proc/%d/ns/%s", pid, name)
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return rterrors.Wrap(rterrors.NamespaceJoinFailed, err, "open %s", path)
	}
	defer unix.Close(fd)

	if err := unix.Setns(fd, int(cloneFlag[kind])); err != nil {
		return rterrors.Wrap(rterrors.NamespaceJoinFailed, err, "setns %s", path)
	}
	return nil
}

// FD returns the handle's current file descriptor, or -1 if moved/released.
func (h *Handle) FD() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fd
}

// Kind returns the namespace kind this handle refers to.
func (h *Handle) Kind() Kind {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.kind
}

// Release closes the handle's fd if valid. Safe to call more than once.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fd < 0 {
		return nil
	}
	err := unix.Close(h.fd)
	h.fd = -1
	if err != nil {
		return rterrors.Wrap(rterrors.IoError, err, "close namespace fd")
	}
	return nil
}

// Take transfers fd ownership to a new Handle, leaving h's kind intact but
// its fd at -1 so a later Release on h is a no-op.
func (h *Handle) Take() *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	moved := &Handle{kind: h.kind, fd: h.fd}
	h.fd = -1
	return moved
}
