//go:build linux

package cgroup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/cuemby/containerrt/pkg/log"
	"github.com/cuemby/containerrt/pkg/rterrors"
	"github.com/cuemby/containerrt/pkg/types"
)

// Root is the standard cgroup-v2 unified hierarchy mount point.
const Root = "/sys/fs/cgroup"

// controllerFile is the shared name of the platform-detection file.
const controllerFile = "cgroup.controllers"

// requestableControllers lists the controllers Create will delegate into
// subtree_control when present in the caller's request.
var requestableControllers = map[string]bool{
	"cpu":    true,
	"memory": true,
	"io":     true,
	"pids":   true,
}

// IsV2Supported reports whether the host exposes a cgroup-v2 unified
// hierarchy, defined as cgroup.controllers being readable at Root.
func IsV2Supported() bool {
	_, err := os.ReadFile(filepath.Join(Root, controllerFile))
	return err == nil
}

// ListControllers reads the whitespace-separated controller list from
// Root/cgroup.controllers.
func ListControllers() ([]string, error) {
	return readControllerFile(Root)
}

func readControllerFile(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, controllerFile))
	if err != nil {
		return nil, rterrors.Wrap(rterrors.IoError, err, "read %s", filepath.Join(dir, controllerFile))
	}
	return strings.Fields(string(data)), nil
}

// IsControllerAvailable reports whether name is present in the root
// controller list.
func IsControllerAvailable(name string) (bool, error) {
	names, err := ListControllers()
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// Handle owns one cgroup-v2 directory for the lifetime of a container.
type Handle struct {
	mu                 sync.Mutex
	path               string
	parentPath         string
	controllersEnabled map[string]bool
	config             types.ResourceLimits
	destroyed          bool
	logger             zerolog.Logger
}

// Create makes parentPath/name (or Root/name when parentPath is empty),
// delegates controllers into the parent's subtree_control, and applies the
// initial limit snapshot.
func Create(parentPath, name string, controllers []string, limits types.ResourceLimits) (*Handle, error) {
	parent := parentPath
	if parent == "" {
		parent = Root
	}
	path := filepath.Join(parent, name)

	if _, err := os.Stat(path); err == nil {
		return nil, rterrors.New(rterrors.InvalidArgument, "cgroup %s already exists", path)
	}

	if err := os.Mkdir(path, 0o755); err != nil {
		return nil, rterrors.Wrap(rterrors.CgroupCreationFailed, err, "mkdir %s", path)
	}

	h := &Handle{
		path:               path,
		parentPath:         parent,
		controllersEnabled: make(map[string]bool),
		logger:             log.WithCgroupPath(path),
	}

	for _, c := range controllers {
		if !requestableControllers[c] {
			continue
		}
		if err := h.enableController(parent, c); err != nil {
			h.logger.Warn().Err(err).Str("controller", c).Msg("failed to delegate controller, continuing")
			continue
		}
		h.controllersEnabled[c] = true
	}

	if err := h.ApplyLimits(limits); err != nil {
		_ = h.Destroy()
		return nil, err
	}

	return h, nil
}

func (h *Handle) enableController(parentDir, controller string) error {
	subtreeFile := filepath.Join(parentDir, "cgroup.subtree_control")
	data, err := os.ReadFile(subtreeFile)
	if err != nil {
		return rterrors.Wrap(rterrors.CgroupConfigFailed, err, "read %s", subtreeFile)
	}
	current := make(map[string]bool)
	for _, c := range strings.Fields(string(data)) {
		current[c] = true
	}
	if current[controller] {
		return nil
	}
	if err := os.WriteFile(subtreeFile, []byte("+"+controller), 0o644); err != nil {
		return rterrors.Wrap(rterrors.CgroupConfigFailed, err, "enable %s in %s", controller, subtreeFile)
	}
	return nil
}

// Path returns the handle's cgroup directory.
func (h *Handle) Path() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.path
}

// ControllersEnabled returns the set of controllers this handle delegated.
func (h *Handle) ControllersEnabled() map[string]bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]bool, len(h.controllersEnabled))
	for k, v := range h.controllersEnabled {
		out[k] = v
	}
	return out
}

// Destroy moves any remaining processes to the parent cgroup and removes the
// directory. Destroying an already-destroyed or absent cgroup is a no-op.
func (h *Handle) Destroy() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return nil
	}
	if _, err := os.Stat(h.path); os.IsNotExist(err) {
		h.destroyed = true
		return nil
	}

	if procs, err := os.ReadFile(filepath.Join(h.path, "cgroup.procs")); err == nil {
		for _, pidStr := range strings.Fields(string(procs)) {
			parentProcs := filepath.Join(h.parentPath, "cgroup.procs")
			if werr := os.WriteFile(parentProcs, []byte(pidStr), 0o644); werr != nil {
				h.logger.Warn().Err(werr).Str("pid", pidStr).Msg("failed to evacuate pid before destroy")
			}
		}
	}

	if err := os.Remove(h.path); err != nil {
		return rterrors.Wrap(rterrors.IoError, err, "rmdir %s", h.path)
	}
	h.destroyed = true
	return nil
}

// Destroyed reports whether Destroy has completed successfully.
func (h *Handle) Destroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// AttachProcess checks pid is live and writes it to cgroup.procs.
func (h *Handle) AttachProcess(pid int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return rterrors.New(rterrors.CgroupNotFound, "cgroup %s destroyed", h.path)
	}
	if err := unix.Kill(pid, 0); err != nil {
		return rterrors.Wrap(rterrors.ProcessNotFound, err, "pid %d not live", pid)
	}
	procsFile := filepath.Join(h.path, "cgroup.procs")
	if err := os.WriteFile(procsFile, []byte(fmt.Sprintf("%d", pid)), 0o644); err != nil {
		return rterrors.Wrap(rterrors.CgroupConfigFailed, err, "attach pid %d", pid)
	}
	return nil
}

// DetachProcess moves pid to the parent's cgroup.procs; the kernel exposes
// no direct "remove" operation.
func (h *Handle) DetachProcess(pid int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	parentProcs := filepath.Join(h.parentPath, "cgroup.procs")
	if err := os.WriteFile(parentProcs, []byte(fmt.Sprintf("%d", pid)), 0o644); err != nil {
		return rterrors.Wrap(rterrors.CgroupConfigFailed, err, "detach pid %d", pid)
	}
	return nil
}

// Freeze suspends every process in the cgroup via the freezer controller.
func (h *Handle) Freeze() error {
	return h.writeFreezeState("1")
}

// Thaw resumes a frozen cgroup.
func (h *Handle) Thaw() error {
	return h.writeFreezeState("0")
}

func (h *Handle) writeFreezeState(state string) error {
	h.mu.Lock()
	path := h.path
	h.mu.Unlock()
	freezeFile := filepath.Join(path, "cgroup.freeze")
	if err := os.WriteFile(freezeFile, []byte(state), 0o644); err != nil {
		return rterrors.Wrap(rterrors.CgroupConfigFailed, err, "write %s=%s", freezeFile, state)
	}
	return nil
}

// UpdateConfig replaces the stored limit snapshot and, if the cgroup still
// exists, re-applies every limit.
func (h *Handle) UpdateConfig(limits types.ResourceLimits) error {
	h.mu.Lock()
	destroyed := h.destroyed
	h.mu.Unlock()
	if destroyed {
		h.mu.Lock()
		h.config = limits
		h.mu.Unlock()
		return nil
	}
	return h.ApplyLimits(limits)
}
