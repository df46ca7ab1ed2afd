package container

import (
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/containerrt/pkg/cgroup"
	"github.com/cuemby/containerrt/pkg/events"
	"github.com/cuemby/containerrt/pkg/launcher"
	"github.com/cuemby/containerrt/pkg/log"
	"github.com/cuemby/containerrt/pkg/rterrors"
	"github.com/cuemby/containerrt/pkg/supervisor"
	"github.com/cuemby/containerrt/pkg/types"
)

// Listener is invoked under the container's lock on every legal transition.
type Listener func(c *Container, old, new types.ContainerState)

// Container is the per-container state machine and orchestrator described
// in spec.md §4.7. It owns at most one cgroup handle at a time and drives
// the launcher and supervisor for its managed process.
type Container struct {
	mu sync.Mutex

	id     string
	name   string
	config types.ContainerConfig

	state      types.ContainerState
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time

	pid        int
	exitCode   int
	exitReason string

	cgroup *cgroup.Handle

	listener Listener

	bus        *events.Bus
	supervisor *supervisor.Supervisor
	logger     zerolog.Logger
}

// New constructs a Container in the CREATED state. id/name uniqueness is the
// registry's responsibility, not this constructor's.
func New(id, name string, config types.ContainerConfig, bus *events.Bus, sup *supervisor.Supervisor) *Container {
	return &Container{
		id:         id,
		name:       name,
		config:     config,
		state:      types.StateCreated,
		createdAt:  time.Now(),
		bus:        bus,
		supervisor: sup,
		logger:     log.WithContainerID(id),
	}
}

func (c *Container) ID() string     { return c.id }
func (c *Container) Name() string   { return c.name }
func (c *Container) State() types.ContainerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
func (c *Container) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid
}
func (c *Container) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode
}
func (c *Container) FinishedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finishedAt
}

// SetListener replaces the single registered event-transition listener.
func (c *Container) SetListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

// transition moves the container from its current state to to, failing with
// InvalidContainerState if the move is not in the table. Caller must hold
// c.mu. Emits exactly one event and invokes the listener on success.
func (c *Container) transition(to types.ContainerState) error {
	from := c.state
	if !isLegalTransition(from, to) {
		return rterrors.New(rterrors.InvalidContainerState, "container %s: illegal transition %s -> %s", c.id, from, to)
	}
	c.state = to

	if c.bus != nil {
		c.bus.Publish(&events.Event{
			Type:     "container." + strings.ToLower(string(to)),
			Data:     c.id,
			Priority: events.Normal,
			Metadata: map[string]events.MetaValue{"container_id": events.StringMeta(c.id)},
		})
	}
	if c.listener != nil {
		c.listener(c, from, to)
	}
	return nil
}

// Start drives CREATED|STOPPED -> STARTING -> RUNNING, provisioning the
// cgroup and launching the process. On any failure the container rolls to
// ERROR and the error is returned.
func (c *Container) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transition(types.StateStarting); err != nil {
		return err
	}

	handle, err := cgroup.Create("", c.id, []string{"cpu", "memory", "io", "pids"}, c.config.Resources)
	if err != nil {
		c.failLocked(err)
		return err
	}
	c.cgroup = handle

	req := &launcher.Request{
		Executable: firstOrEmpty(c.config.Command),
		Argv:       append(append([]string{}, c.config.Command...), c.config.Args...),
		Env:        c.config.Env,
		WorkingDir: c.config.WorkingDir,
		Hostname:   c.config.Hostname,
		UID:        c.config.UID,
		GID:        c.config.GID,
		Namespaces: c.config.Namespaces,
	}
	info, err := launcher.Launch(req)
	if err != nil {
		_ = c.cgroup.Destroy()
		c.cgroup = nil
		c.failLocked(err)
		return err
	}

	if err := c.cgroup.AttachProcess(info.PID); err != nil {
		c.failLocked(err)
		return err
	}

	c.pid = info.PID
	c.startedAt = info.StartTime
	if c.supervisor != nil {
		c.supervisor.Manage(info.PID, c.onChildExit)
		c.supervisor.StartMonitor()
	}

	if err := c.transition(types.StateRunning); err != nil {
		return err
	}
	if c.bus != nil {
		c.bus.Publish(&events.Event{
			Type:     "container.started",
			Data:     c.id,
			Priority: events.Normal,
			Metadata: map[string]events.MetaValue{
				"container_id": events.StringMeta(c.id),
				"pid":          events.IntMeta(int64(c.pid)),
			},
		})
	}
	return nil
}

// failLocked transitions to ERROR and emits container.error. Caller holds c.mu.
func (c *Container) failLocked(cause error) {
	c.state = types.StateError
	if c.bus != nil {
		c.bus.Publish(&events.Event{
			Type:     "container.error",
			Data:     c.id,
			Priority: events.High,
			Metadata: map[string]events.MetaValue{
				"container_id": events.StringMeta(c.id),
				"error":        events.StringMeta(cause.Error()),
			},
		})
	}
	if c.listener != nil {
		c.listener(c, types.StateStarting, types.StateError)
	}
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// onChildExit is the supervisor's exit callback for this container's PID.
// It records exit status and drives the state to STOPPED; a RUNNING or
// PAUSED container passes through STOPPING on the way.
func (c *Container) onChildExit(pid int, exitCode int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pid != pid {
		return
	}
	c.exitCode = exitCode
	c.exitReason = reason
	c.finishedAt = time.Now()

	if c.state == types.StateRunning || c.state == types.StatePaused {
		if err := c.transition(types.StateStopping); err != nil {
			c.logger.Warn().Err(err).Msg("unexpected transition failure recording child exit")
			return
		}
	}
	if c.state == types.StateStopping {
		if err := c.transition(types.StateStopped); err != nil {
			c.logger.Warn().Err(err).Msg("unexpected transition failure recording child exit")
			return
		}
		if c.bus != nil {
			c.bus.Publish(&events.Event{
				Type:     "container.stopped",
				Data:     c.id,
				Priority: events.Normal,
				Metadata: map[string]events.MetaValue{
					"container_id": events.StringMeta(c.id),
					"exit_code":    events.IntMeta(int64(exitCode)),
				},
			})
		}
	}
}

// Stop sends SIGTERM (escalating to SIGKILL on timeout) to the managed
// process and waits for it to be reaped. Idempotent: a non-running
// container returns nil without changing state.
func (c *Container) Stop(timeoutS int) error {
	c.mu.Lock()
	if c.state != types.StateRunning && c.state != types.StatePaused {
		c.mu.Unlock()
		return nil
	}
	if err := c.transition(types.StateStopping); err != nil {
		c.mu.Unlock()
		return err
	}
	pid := c.pid
	c.mu.Unlock()

	if c.supervisor == nil {
		return nil
	}
	_, err := c.supervisor.Stop(pid, timeoutS)
	return err
}

// Pause freezes the container's cgroup. A no-op if already PAUSED. The
// transition is checked against transitions.go's table before anything
// else, so a container whose current state cannot legally reach PAUSED
// (e.g. CREATED) fails with InvalidContainerState rather than CgroupNotFound,
// even though it also has no cgroup yet.
func (c *Container) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == types.StatePaused {
		return nil
	}
	if !isLegalTransition(c.state, types.StatePaused) {
		return rterrors.New(rterrors.InvalidContainerState, "container %s: illegal transition %s -> %s", c.id, c.state, types.StatePaused)
	}
	if c.cgroup == nil {
		return rterrors.New(rterrors.CgroupNotFound, "container %s has no cgroup", c.id)
	}
	if err := c.cgroup.Freeze(); err != nil {
		return err
	}
	return c.transition(types.StatePaused)
}

// Resume thaws the container's cgroup. A no-op if already RUNNING. As with
// Pause, the transition is checked before the cgroup-nil check so an
// illegal source state reports InvalidContainerState.
func (c *Container) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == types.StateRunning {
		return nil
	}
	if !isLegalTransition(c.state, types.StateRunning) {
		return rterrors.New(rterrors.InvalidContainerState, "container %s: illegal transition %s -> %s", c.id, c.state, types.StateRunning)
	}
	if c.cgroup == nil {
		return rterrors.New(rterrors.CgroupNotFound, "container %s has no cgroup", c.id)
	}
	if err := c.cgroup.Thaw(); err != nil {
		return err
	}
	return c.transition(types.StateRunning)
}

// Restart stops (if running) and starts the container again, passing
// through an intermediate RESTARTING state.
func (c *Container) Restart(timeoutS int) error {
	if err := c.Stop(timeoutS); err != nil {
		return err
	}

	c.mu.Lock()
	if err := c.transition(types.StateRestarting); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	return c.Start()
}

// Remove tears down the container's cgroup and transitions to REMOVED.
// Fails with InvalidContainerState if the container is RUNNING and force is
// false. A RUNNING (forced) or PAUSED container is killed with SIGKILL and
// reaped first.
func (c *Container) Remove(force bool) error {
	c.mu.Lock()
	running := c.state == types.StateRunning || c.state == types.StatePaused
	if c.state == types.StateRunning && !force {
		c.mu.Unlock()
		return rterrors.New(rterrors.InvalidContainerState, "container %s is running; remove requires force", c.id)
	}
	pid := c.pid
	sup := c.supervisor
	c.mu.Unlock()

	if running && sup != nil {
		_ = sup.Kill(pid, syscall.SIGKILL)
		sup.Wait(pid, 0)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transition(types.StateRemoving); err != nil {
		return err
	}
	if c.cgroup != nil {
		if err := c.cgroup.Destroy(); err != nil {
			c.logger.Warn().Err(err).Msg("cgroup destroy failed during remove")
		}
		c.cgroup = nil
	}
	if err := c.transition(types.StateRemoved); err != nil {
		return err
	}
	if c.bus != nil {
		c.bus.Publish(&events.Event{
			Type:     "container.removed",
			Data:     c.id,
			Priority: events.Normal,
			Metadata: map[string]events.MetaValue{"container_id": events.StringMeta(c.id)},
		})
	}
	return nil
}

// Kill sends signal directly to the managed process without itself driving
// a state transition; the supervisor's monitor will observe the exit.
func (c *Container) Kill(signal int) error {
	c.mu.Lock()
	pid := c.pid
	sup := c.supervisor
	c.mu.Unlock()
	if sup == nil {
		return rterrors.New(rterrors.ProcessNotFound, "no supervisor attached")
	}
	return sup.Kill(pid, syscall.Signal(signal))
}

const waitPollInterval = 100 * time.Millisecond

// WaitForState blocks until the container's state equals desired or
// timeoutS elapses, polling at waitPollInterval. timeoutS == 0 waits
// indefinitely. Returns InvalidContainerState if the timeout elapses
// before desired is reached.
func (c *Container) WaitForState(desired types.ContainerState, timeoutS int) error {
	indefinite := timeoutS == 0
	deadline := time.Now().Add(time.Duration(timeoutS) * time.Second)
	for indefinite || time.Now().Before(deadline) {
		if current := c.State(); current == desired {
			return nil
		}
		time.Sleep(waitPollInterval)
	}
	return rterrors.New(rterrors.InvalidContainerState, "container %s: timed out after %ds waiting for state %s (current %s)", c.id, timeoutS, desired, c.State())
}

// WaitForStateAsync is the non-blocking form of WaitForState: it returns
// immediately with a channel that receives exactly one value once the wait
// completes or times out.
func (c *Container) WaitForStateAsync(desired types.ContainerState, timeoutS int) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- c.WaitForState(desired, timeoutS)
	}()
	return ch
}
