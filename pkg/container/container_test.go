package container

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/containerrt/pkg/events"
	"github.com/cuemby/containerrt/pkg/rterrors"
	"github.com/cuemby/containerrt/pkg/supervisor"
	"github.com/cuemby/containerrt/pkg/types"
)

func newTestContainer() *Container {
	bus := events.NewBus(16)
	sup := supervisor.New()
	return New("deadbeef", "test-container", types.ContainerConfig{}, bus, sup)
}

func TestNewStartsInCreatedState(t *testing.T) {
	c := newTestContainer()
	assert.Equal(t, types.StateCreated, c.State())
	assert.Equal(t, "deadbeef", c.ID())
	assert.Equal(t, "test-container", c.Name())
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	c := newTestContainer()
	c.mu.Lock()
	err := c.transition(types.StateRunning)
	c.mu.Unlock()
	require.Error(t, err)
	assert.Equal(t, rterrors.InvalidContainerState, rterrors.KindOf(err))
	assert.Equal(t, types.StateCreated, c.State())
}

func TestTransitionInvokesListenerOnSuccess(t *testing.T) {
	c := newTestContainer()
	var gotOld, gotNew types.ContainerState
	c.SetListener(func(c *Container, old, new types.ContainerState) {
		gotOld, gotNew = old, new
	})
	c.mu.Lock()
	err := c.transition(types.StateStarting)
	c.mu.Unlock()
	require.NoError(t, err)
	assert.Equal(t, types.StateCreated, gotOld)
	assert.Equal(t, types.StateStarting, gotNew)
}

func TestRemoveFromCreatedNeedsNoForce(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, c.Remove(false))
	assert.Equal(t, types.StateRemoved, c.State())
}

func TestRemoveRefusesRunningWithoutForce(t *testing.T) {
	c := newTestContainer()
	c.mu.Lock()
	c.state = types.StateRunning
	c.mu.Unlock()

	err := c.Remove(false)
	require.Error(t, err)
	assert.Equal(t, rterrors.InvalidContainerState, rterrors.KindOf(err))
	assert.Equal(t, types.StateRunning, c.State())
}

func TestStopIsNoopWhenNotRunning(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, c.Stop(1))
	assert.Equal(t, types.StateCreated, c.State())
}

func TestPauseFailsWithoutCgroup(t *testing.T) {
	c := newTestContainer()
	c.mu.Lock()
	c.state = types.StateRunning
	c.mu.Unlock()

	err := c.Pause()
	require.Error(t, err)
	assert.Equal(t, rterrors.CgroupNotFound, rterrors.KindOf(err))
}

func TestResumeFailsWithoutCgroup(t *testing.T) {
	c := newTestContainer()
	c.mu.Lock()
	c.state = types.StatePaused
	c.mu.Unlock()

	err := c.Resume()
	require.Error(t, err)
	assert.Equal(t, rterrors.CgroupNotFound, rterrors.KindOf(err))
}

func TestPauseFromCreatedFailsInvalidState(t *testing.T) {
	c := newTestContainer()
	err := c.Pause()
	require.Error(t, err, "CREATED -> PAUSED is not in transitions.go's table regardless of cgroup presence")
	assert.Equal(t, rterrors.InvalidContainerState, rterrors.KindOf(err))
	assert.Equal(t, types.StateCreated, c.State())
}

func TestResumeFromCreatedFailsInvalidState(t *testing.T) {
	c := newTestContainer()
	err := c.Resume()
	require.Error(t, err, "CREATED -> RUNNING is not in transitions.go's table regardless of cgroup presence")
	assert.Equal(t, rterrors.InvalidContainerState, rterrors.KindOf(err))
	assert.Equal(t, types.StateCreated, c.State())
}

func TestResumeIsNoopWhenAlreadyRunning(t *testing.T) {
	c := newTestContainer()
	c.mu.Lock()
	c.state = types.StateRunning
	c.mu.Unlock()
	require.NoError(t, c.Resume())
}

func TestKillWithoutSupervisorFails(t *testing.T) {
	c := New("deadbeef", "test-container", types.ContainerConfig{}, events.NewBus(16), nil)
	err := c.Kill(9)
	require.Error(t, err)
	assert.Equal(t, rterrors.ProcessNotFound, rterrors.KindOf(err))
}

func TestOnChildExitTransitionsRunningToStopped(t *testing.T) {
	c := newTestContainer()
	c.mu.Lock()
	c.state = types.StateRunning
	c.pid = 4242
	c.mu.Unlock()

	c.onChildExit(4242, 7, "")

	assert.Equal(t, types.StateStopped, c.State())
	assert.Equal(t, 7, c.ExitCode())
	assert.WithinDuration(t, time.Now(), c.FinishedAt(), 2*time.Second)
}

func TestOnChildExitIgnoresMismatchedPID(t *testing.T) {
	c := newTestContainer()
	c.mu.Lock()
	c.state = types.StateRunning
	c.pid = 4242
	c.mu.Unlock()

	c.onChildExit(999, 1, "")

	assert.Equal(t, types.StateRunning, c.State())
}

func TestRestartOnNonRunningContainerFailsAtRestartingTransition(t *testing.T) {
	c := newTestContainer()
	err := c.Restart(1)
	require.Error(t, err, "Stop no-ops on CREATED, but CREATED -> RESTARTING is not a legal transition")
	assert.Equal(t, rterrors.InvalidContainerState, rterrors.KindOf(err))
	assert.Equal(t, types.StateCreated, c.State())
}

func TestWaitForStateReturnsImmediatelyWhenAlreadyThere(t *testing.T) {
	c := newTestContainer()
	require.NoError(t, c.WaitForState(types.StateCreated, 1))
}

func TestWaitForStateObservesALaterTransition(t *testing.T) {
	c := newTestContainer()
	go func() {
		time.Sleep(50 * time.Millisecond)
		c.mu.Lock()
		_ = c.transition(types.StateStarting)
		c.mu.Unlock()
	}()
	require.NoError(t, c.WaitForState(types.StateStarting, 2))
}

func TestWaitForStateTimesOut(t *testing.T) {
	c := newTestContainer()
	err := c.WaitForState(types.StateRunning, 1)
	require.Error(t, err)
	assert.Equal(t, rterrors.InvalidContainerState, rterrors.KindOf(err))
}

func TestWaitForStateAsyncDeliversOnChannel(t *testing.T) {
	c := newTestContainer()
	ch := c.WaitForStateAsync(types.StateCreated, 1)
	select {
	case err := <-ch:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForStateAsync never delivered")
	}
}
