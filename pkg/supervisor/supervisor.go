//go:build linux

package supervisor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/cuemby/containerrt/pkg/log"
	"github.com/cuemby/containerrt/pkg/rterrors"
)

// Status is the supervisor's view of a managed process.
type Status string

const (
	Unknown Status = "unknown"
	Running Status = "running"
	Zombie  Status = "zombie"
	Stopped Status = "stopped"
)

const pollInterval = 100 * time.Millisecond
const monitorInterval = 500 * time.Millisecond

// ExitCallback is invoked once when a managed process is reaped, on the
// goroutine that reaped it: the caller of Stop or Wait, or the monitor loop.
type ExitCallback func(pid int, exitCode int, reason string)

type entry struct {
	pid          int
	onExit       ExitCallback
	exited       bool
}

// Supervisor tracks a set of managed child PIDs.
type Supervisor struct {
	mu      sync.Mutex
	managed map[int]*entry

	monitorOnce sync.Once
	stopCh      chan struct{}
	stopped     atomic.Bool
	wg          sync.WaitGroup

	logger zerolog.Logger
}

// New creates an empty Supervisor.
func New() *Supervisor {
	return &Supervisor{
		managed: make(map[int]*entry),
		stopCh:  make(chan struct{}),
		logger:  log.WithComponent("supervisor"),
	}
}

// Manage begins tracking pid; onExit (optional) fires when it is reaped.
func (s *Supervisor) Manage(pid int, onExit ExitCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managed[pid] = &entry{pid: pid, onExit: onExit}
}

// Status resolves the kernel-observed state of pid.
func (s *Supervisor) Status(pid int) Status {
	if err := unix.Kill(pid, 0); err != nil {
		return Unknown
	}
	// WNOWAIT leaves an exited child unreaped, so reap's blocking wait still
	// collects its exit status.
	var info unix.Siginfo
	err := unix.Waitid(unix.P_PID, pid, &info, unix.WEXITED|unix.WNOHANG|unix.WNOWAIT, nil)
	if err == nil && info.Signo == int32(unix.SIGCHLD) {
		return Zombie
	}
	return Running
}

func (s *Supervisor) isManaged(pid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.managed[pid]
	return ok
}

// Stop sends SIGTERM, polls every 100ms up to timeoutS seconds, escalates to
// SIGKILL if still running, then reaps and fires the exit callback. It
// returns true if the process stopped gracefully within timeoutS, false if
// SIGKILL was required. Stop is idempotent: a non-Running pid returns true
// immediately without error.
func (s *Supervisor) Stop(pid int, timeoutS int) (bool, error) {
	if !s.isManaged(pid) {
		return false, rterrors.New(rterrors.ProcessNotFound, "pid %d not managed", pid)
	}
	if s.Status(pid) != Running {
		return true, nil
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return false, rterrors.Wrap(rterrors.ProcessStopFailed, err, "SIGTERM pid %d", pid)
	}

	deadline := time.Now().Add(time.Duration(timeoutS) * time.Second)
	graceful := true
	for time.Now().Before(deadline) {
		if s.Status(pid) != Running {
			break
		}
		time.Sleep(pollInterval)
	}
	if s.Status(pid) == Running {
		graceful = false
		if err := unix.Kill(pid, unix.SIGKILL); err != nil {
			return false, rterrors.Wrap(rterrors.ProcessStopFailed, err, "SIGKILL pid %d", pid)
		}
		for s.Status(pid) == Running {
			time.Sleep(pollInterval)
		}
	}

	s.reap(pid)
	return graceful, nil
}

// Kill sends sig directly to pid without driving any state transition.
func (s *Supervisor) Kill(pid int, sig syscall.Signal) error {
	if err := unix.Kill(pid, sig); err != nil {
		return rterrors.Wrap(rterrors.ProcessStopFailed, err, "signal %d to pid %d", sig, pid)
	}
	return nil
}

// Wait polls pid at 100ms until it leaves Running or timeoutS elapses.
// timeoutS == 0 waits indefinitely. Returns true if the process exited.
func (s *Supervisor) Wait(pid int, timeoutS int) bool {
	indefinite := timeoutS == 0
	deadline := time.Now().Add(time.Duration(timeoutS) * time.Second)
	for indefinite || time.Now().Before(deadline) {
		if s.Status(pid) != Running {
			s.reap(pid)
			return true
		}
		time.Sleep(pollInterval)
	}
	return s.Status(pid) != Running
}

// reap performs a blocking waitpid, decodes the exit status, evicts pid
// from the managed set, and invokes its exit callback if one was set.
func (s *Supervisor) reap(pid int) {
	s.mu.Lock()
	e, ok := s.managed[pid]
	s.mu.Unlock()
	if !ok || e.exited {
		return
	}

	var ws unix.WaitStatus
	_, err := unix.Wait4(pid, &ws, 0, nil)
	exitCode := 0
	reason := ""
	if err != nil {
		s.logger.Warn().Err(err).Int("pid", pid).Msg("waitpid failed during reap")
	} else {
		switch {
		case ws.Exited():
			exitCode = ws.ExitStatus()
		case ws.Signaled():
			exitCode = -int(ws.Signal())
			reason = fmt.Sprintf("Killed by signal %d", ws.Signal())
		}
	}

	s.mu.Lock()
	e.exited = true
	delete(s.managed, pid)
	s.mu.Unlock()

	if e.onExit != nil {
		e.onExit(pid, exitCode, reason)
	}
}

// StartMonitor begins the background loop that reaps any managed process
// that exits without an explicit Stop/Wait call. Safe to call multiple
// times; only the first call starts a goroutine.
func (s *Supervisor) StartMonitor() {
	s.monitorOnce.Do(func() {
		s.wg.Add(1)
		go s.monitorLoop()
	})
}

// StopMonitor terminates the background monitor loop.
func (s *Supervisor) StopMonitor() {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.stopCh)
	}
	s.wg.Wait()
}

func (s *Supervisor) monitorLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.scanOnce()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Supervisor) scanOnce() {
	s.mu.Lock()
	pids := make([]int, 0, len(s.managed))
	for pid := range s.managed {
		pids = append(pids, pid)
	}
	s.mu.Unlock()

	for _, pid := range pids {
		if s.Status(pid) != Running {
			s.reap(pid)
		}
	}
}
