package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/containerrt/pkg/container"
	"github.com/cuemby/containerrt/pkg/events"
	"github.com/cuemby/containerrt/pkg/log"
	"github.com/cuemby/containerrt/pkg/rterrors"
	"github.com/cuemby/containerrt/pkg/supervisor"
	"github.com/cuemby/containerrt/pkg/types"
)

const stoppedRetention = 5 * time.Minute
const bulkShutdownTimeoutS = 5

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,62}$`)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Registry is the dual id/name index over live *container.Container values.
// While holding its own mutex it calls only a container's read accessors
// (State, FinishedAt, Name), never a lifecycle operation such as Stop,
// matching spec.md §5's registry -> container -> event-bus lock ordering.
type Registry struct {
	mu         sync.RWMutex
	byID       map[string]*container.Container
	nameToID   map[string]string
	bus        *events.Bus
	supervisor *supervisor.Supervisor
	logger     zerolog.Logger
}

// New constructs an empty Registry. bus and sup are shared with every
// container the registry creates.
func New(bus *events.Bus, sup *supervisor.Supervisor) *Registry {
	return &Registry{
		byID:       make(map[string]*container.Container),
		nameToID:   make(map[string]string),
		bus:        bus,
		supervisor: sup,
		logger:     log.WithComponent("registry"),
	}
}

// Create allocates an id and name if not supplied and registers the
// resulting Container. It does not validate config (config.Load and
// config.Validate do that). Returns ContainerAlreadyExists if the
// caller-supplied id or name is already taken.
func (r *Registry) Create(config types.ContainerConfig) (*container.Container, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := config.ID
	if id == "" {
		id = r.generateIDLocked()
	} else if _, exists := r.byID[id]; exists {
		return nil, rterrors.New(rterrors.ContainerAlreadyExists, "container id %q already registered", id)
	}

	name := config.Name
	if name == "" {
		name = r.generateNameLocked()
	} else if _, exists := r.nameToID[name]; exists {
		return nil, rterrors.New(rterrors.ContainerAlreadyExists, "container name %q already registered", name)
	}

	config.ID = id
	config.Name = name

	c := container.New(id, name, config, r.bus, r.supervisor)
	r.byID[id] = c
	r.nameToID[name] = id
	return c, nil
}

// generateIDLocked produces a 64-hex-digit id: the SHA-256 digest of a fresh
// random UUID, retried on the astronomically unlikely event of a collision.
// Caller holds r.mu.
func (r *Registry) generateIDLocked() string {
	for {
		sum := sha256.Sum256([]byte(uuid.NewString()))
		id := hex.EncodeToString(sum[:])
		if _, exists := r.byID[id]; !exists {
			return id
		}
	}
}

// generateNameLocked produces docker-cpp-<6 random base36>, appending -<n>
// on collision until unique. Caller holds r.mu.
func (r *Registry) generateNameLocked() string {
	base := fmt.Sprintf("docker-cpp-%s", randomBase36(6))
	if _, exists := r.nameToID[base]; !exists {
		return base
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if _, exists := r.nameToID[candidate]; !exists {
			return candidate
		}
	}
}

func randomBase36(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36Alphabet[rand.Intn(len(base36Alphabet))]
	}
	return string(b)
}

// ValidateName reports whether name satisfies spec.md §3 invariant 2:
// non-empty, alphanumeric-led, body in [A-Za-z0-9_.-], <=63 chars.
func ValidateName(name string) bool {
	return namePattern.MatchString(name)
}

// Get returns the container registered under id, or ok=false if absent.
func (r *Registry) Get(id string) (*container.Container, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// GetByName returns the container registered under name, or ok=false if
// absent. Resolves in one step via the name -> id index.
func (r *Registry) GetByName(name string) (*container.Container, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	c, ok := r.byID[id]
	return c, ok
}

// List returns every container if all is true, otherwise only those
// currently RUNNING.
func (r *Registry) List(all bool) []*container.Container {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*container.Container, 0, len(r.byID))
	for _, c := range r.byID {
		if all || c.State() == types.StateRunning {
			out = append(out, c)
		}
	}
	return out
}

// Remove drops id from both indices without touching the container's own
// lifecycle; callers invoke container.Remove themselves beforehand.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) {
	c, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.nameToID, c.Name())
}

// Shutdown stops every RUNNING or PAUSED container with a 5s grace period,
// swallowing individual failures (logged, not returned), then clears both
// maps.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	targets := make([]*container.Container, 0, len(r.byID))
	for _, c := range r.byID {
		if st := c.State(); st == types.StateRunning || st == types.StatePaused {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	for _, c := range targets {
		if err := c.Stop(bulkShutdownTimeoutS); err != nil {
			r.logger.Warn().Err(err).Str("container_id", c.ID()).Msg("bulk shutdown stop failed")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*container.Container)
	r.nameToID = make(map[string]string)
}

// CleanupStopped removes containers in {STOPPED, DEAD, ERROR} whose
// finished_at is older than five minutes.
func (r *Registry) CleanupStopped() {
	cutoff := time.Now().Add(-stoppedRetention)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.byID {
		switch c.State() {
		case types.StateStopped, types.StateDead, types.StateError:
			if c.FinishedAt().Before(cutoff) {
				r.removeLocked(id)
			}
		}
	}
}

// WaitForContainer blocks until the container identified by id reaches
// desired state or timeoutS elapses. Returns ContainerNotFound if id is not
// registered, otherwise delegates to the container's own WaitForState.
func (r *Registry) WaitForContainer(id string, desired types.ContainerState, timeoutS int) error {
	c, ok := r.Get(id)
	if !ok {
		return rterrors.New(rterrors.ContainerNotFound, "container %q not registered", id)
	}
	return c.WaitForState(desired, timeoutS)
}

// CleanupRemoved removes REMOVED containers from both maps.
func (r *Registry) CleanupRemoved() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.byID {
		if c.State() == types.StateRemoved {
			r.removeLocked(id)
		}
	}
}
