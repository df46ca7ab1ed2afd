package types

import "time"

// ContainerState is one node in the state machine transition table owned by
// pkg/container.
type ContainerState string

const (
	StateCreated    ContainerState = "CREATED"
	StateStarting   ContainerState = "STARTING"
	StateRunning    ContainerState = "RUNNING"
	StatePaused     ContainerState = "PAUSED"
	StateStopping   ContainerState = "STOPPING"
	StateStopped    ContainerState = "STOPPED"
	StateRestarting ContainerState = "RESTARTING"
	StateRemoving   ContainerState = "REMOVING"
	StateRemoved    ContainerState = "REMOVED"
	StateDead       ContainerState = "DEAD"
	StateError      ContainerState = "ERROR"
)

// RestartCondition mirrors the external ContainerConfig restart policy enum.
type RestartCondition string

const (
	RestartNo            RestartCondition = "NO"
	RestartOnFailure     RestartCondition = "ON_FAILURE"
	RestartAlways        RestartCondition = "ALWAYS"
	RestartUnlessStopped RestartCondition = "UNLESS_STOPPED"
)

// RestartPolicy controls automatic container restart behavior.
type RestartPolicy struct {
	Condition  RestartCondition
	MaxRetries int
	Timeout    time.Duration
}

// MountType distinguishes how a storage mount is backed.
type MountType string

const (
	MountBind   MountType = "bind"
	MountVolume MountType = "volume"
	MountTmpfs  MountType = "tmpfs"
)

// Mount describes a single filesystem mount offered to the container.
type Mount struct {
	Type     MountType
	Source   string // host path or volume name; empty for tmpfs
	Target   string // path inside the container
	ReadOnly bool
}

// PortMapping exposes a container port on the host.
type PortMapping struct {
	ContainerPort int
	HostPort      int
	Protocol      string // "tcp" or "udp"
}

// BlkioDeviceLimit sets a per-device I/O throughput cap.
type BlkioDeviceLimit struct {
	Major, Minor int
	ReadBps      uint64
	WriteBps     uint64
	ReadIops     uint64
	WriteIops    uint64
}

// HealthCheckType selects the probe mechanism.
type HealthCheckType string

const (
	HealthCheckHTTP HealthCheckType = "http"
	HealthCheckTCP  HealthCheckType = "tcp"
	HealthCheckExec HealthCheckType = "exec"
)

// HealthCheck configures periodic liveness probing.
type HealthCheck struct {
	Type     HealthCheckType
	Endpoint string
	Command  []string
	Interval time.Duration
	Timeout  time.Duration
	Retries  int
}

// HealthState is the coarse health classification a higher-level collaborator
// may observe; the health-check thread itself is stubbed (spec.md §9).
type HealthState string

const (
	HealthStarting  HealthState = "starting"
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
)

// SecurityConfig groups the security-sensitive fields the core reads but
// does not interpret (it accepts policy paths, it does not parse them).
type SecurityConfig struct {
	CapAdd          []string
	CapDrop         []string
	SeccompProfile  string
	AppArmorProfile string
	SELinuxLabel    string
	ReadOnlyRootfs  bool
	NoNewPrivileges bool
	User            string // "uid:gid" or a username
	Umask           string // octal string, default "0022"
}

// ResourceLimits is the typed snapshot of cgroup limits the container carries
// and the cgroup handle re-applies on update_config.
type ResourceLimits struct {
	MemoryLimit       int64 // bytes, 0 = unlimited
	MemorySwapLimit   int64 // bytes, 0 = unlimited
	MemoryReservation int64 // bytes, 0 = no floor, not written ("memory.low")

	CPUShares float64 // informational only; not converted into CPUWeight
	CPUWeight int64    // [1, 10000], 0 = not written
	CPUPeriod int64    // microseconds, default 100000
	CPUQuota  int64    // microseconds, 0 = unlimited
	CPUs      string   // cpuset pinning list, e.g. "0-3"

	PidsLimit int64 // 0 = unlimited

	BlkioWeight       int64 // [10, 1000]
	BlkioDeviceLimits []BlkioDeviceLimit
}

// NetworkConfig captures network intent. The core validates its port
// mappings but does not pass it to the namespace/launcher layer and
// implements no networking itself.
type NetworkConfig struct {
	NetworkID    string
	Aliases      []string
	PortMappings []PortMapping
}

// StorageConfig captures mount/rootfs intent.
type StorageConfig struct {
	Mounts       []Mount
	RootfsLayers []string
}

// ContainerConfig is the external collaborator surface described in the
// spec's §6 EXTERNAL INTERFACES: the core reads it but never persists it.
type ContainerConfig struct {
	ID         string
	Name       string
	Image      string
	Command    []string
	Args       []string
	Env        []string
	WorkingDir string

	Resources ResourceLimits
	Security  SecurityConfig
	Network   NetworkConfig
	Storage   StorageConfig

	HealthCheck   *HealthCheck
	RestartPolicy RestartPolicy

	Hostname string
	UID, GID int

	Namespaces NamespaceRequest
}

// NamespaceRequest selects which of the seven namespace kinds the launcher
// should unshare for a new container.
type NamespaceRequest struct {
	PID, Network, Mount, UTS, IPC, User, Cgroup bool
}

// CPUStat is the parsed content of cpu.stat plus a derived percent.
type CPUStat struct {
	UsageUsec     uint64
	UserUsec      uint64
	SystemUsec    uint64
	NrPeriods     uint64
	NrThrottled   uint64
	ThrottledUsec uint64
	Percent       float64
}

// MemoryStat is the combined read of the memory.* accounting files.
type MemoryStat struct {
	Current uint64
	Peak    uint64
	Limit   uint64 // 0 means "max" (unlimited)
	Swap    uint64
	SwapMax uint64
	Anon    uint64
	File    uint64
	Slab    uint64
	Sock    uint64
	Shmem   uint64
	Percent float64
}

// IOStat aggregates io.stat across every device line.
type IOStat struct {
	RBytes uint64
	WBytes uint64
	RIos   uint64
	WIos   uint64
	DBytes uint64
	DIos   uint64
}

// PidsStat is the pids controller's current/max pair.
type PidsStat struct {
	Current uint64
	Max     uint64 // 0 means "max" (unlimited)
}

// ResourceMetrics is one timestamped sample of a cgroup's full accounting
// state, as produced by pkg/cgroup stats reads and consumed by pkg/monitor.
type ResourceMetrics struct {
	Timestamp time.Time
	CPU       CPUStat
	Memory    MemoryStat
	IO        IOStat
	Pids      PidsStat
}

// Event is a published container-lifecycle or subsystem notification.
// Re-declared here (rather than imported from pkg/events) only for the
// metadata-free cases where callers want the plain wire shape; pkg/events.Event
// is the type actually carried through the bus.
type Event struct {
	ID        uint64
	Type      string
	Data      string
	Timestamp time.Time
	NodeID    string
}
