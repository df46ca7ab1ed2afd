package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/containerrt/pkg/events"
	"github.com/cuemby/containerrt/pkg/rterrors"
	"github.com/cuemby/containerrt/pkg/supervisor"
	"github.com/cuemby/containerrt/pkg/types"
)

func newTestRegistry() *Registry {
	return New(events.NewBus(64), supervisor.New())
}

func TestCreateGeneratesIDAndName(t *testing.T) {
	r := newTestRegistry()
	c, err := r.Create(types.ContainerConfig{Image: "x"})
	require.NoError(t, err)
	assert.Len(t, c.ID(), 64)
	assert.Regexp(t, `^docker-cpp-[0-9a-z]{6}$`, c.Name())
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Create(types.ContainerConfig{ID: "deadbeef", Image: "x"})
	require.NoError(t, err)

	_, err = r.Create(types.ContainerConfig{ID: "deadbeef", Image: "y"})
	require.Error(t, err)
	assert.Equal(t, rterrors.ContainerAlreadyExists, rterrors.KindOf(err))
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Create(types.ContainerConfig{Name: "web-1", Image: "x"})
	require.NoError(t, err)

	_, err = r.Create(types.ContainerConfig{Name: "web-1", Image: "y"})
	require.Error(t, err)
	assert.Equal(t, rterrors.ContainerAlreadyExists, rterrors.KindOf(err))
}

func TestGetAndGetByNameResolveSameContainer(t *testing.T) {
	r := newTestRegistry()
	c, err := r.Create(types.ContainerConfig{Name: "web-1", Image: "x"})
	require.NoError(t, err)

	byID, ok := r.Get(c.ID())
	require.True(t, ok)
	assert.Same(t, c, byID)

	byName, ok := r.GetByName("web-1")
	require.True(t, ok)
	assert.Same(t, c, byName)

	_, ok = r.Get("nonexistent")
	assert.False(t, ok)
	_, ok = r.GetByName("nonexistent")
	assert.False(t, ok)
}

func TestListFiltersToRunningUnlessAll(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Create(types.ContainerConfig{Name: "a", Image: "x"})
	require.NoError(t, err)
	_, err = r.Create(types.ContainerConfig{Name: "b", Image: "x"})
	require.NoError(t, err)

	// Freshly created containers are CREATED, not RUNNING.
	assert.Len(t, r.List(false), 0)
	assert.Len(t, r.List(true), 2)
}

func TestValidateNameRejectsLeadingPunctuationAndOverlength(t *testing.T) {
	assert.True(t, ValidateName("web-1"))
	assert.True(t, ValidateName("a"))
	assert.False(t, ValidateName(""))
	assert.False(t, ValidateName("-web"))
	assert.False(t, ValidateName(string(make([]byte, 64))))
}

func TestCleanupRemovedDropsRemovedContainersFromBothMaps(t *testing.T) {
	r := newTestRegistry()
	c, err := r.Create(types.ContainerConfig{Name: "gone", Image: "x"})
	require.NoError(t, err)

	// Drive straight to REMOVED without a real process: remove from CREATED
	// never needs a live pid.
	require.NoError(t, c.Remove(false))

	r.CleanupRemoved()
	_, ok := r.Get(c.ID())
	assert.False(t, ok)
	_, ok = r.GetByName("gone")
	assert.False(t, ok)
}

func TestCleanupStoppedRespectsRetentionWindow(t *testing.T) {
	r := newTestRegistry()
	c, err := r.Create(types.ContainerConfig{Name: "old", Image: "x"})
	require.NoError(t, err)

	// A container that never reached STOPPED/DEAD/ERROR must never be swept,
	// regardless of age; CleanupStopped only inspects those three states.
	r.CleanupStopped()
	_, ok := r.Get(c.ID())
	assert.True(t, ok)
}

func TestWaitForContainerFailsForUnknownID(t *testing.T) {
	r := newTestRegistry()
	err := r.WaitForContainer("no-such-id", types.StateRunning, 1)
	require.Error(t, err)
	assert.Equal(t, rterrors.ContainerNotFound, rterrors.KindOf(err))
}

func TestWaitForContainerReturnsImmediatelyWhenAlreadyThere(t *testing.T) {
	r := newTestRegistry()
	c, err := r.Create(types.ContainerConfig{Name: "waiter", Image: "x"})
	require.NoError(t, err)
	require.NoError(t, r.WaitForContainer(c.ID(), types.StateCreated, 1))
}
