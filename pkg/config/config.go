package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/containerrt/pkg/registry"
	"github.com/cuemby/containerrt/pkg/rterrors"
	"github.com/cuemby/containerrt/pkg/types"
)

var userPattern = regexp.MustCompile(`^(\d+):(\d+)$|^[A-Za-z_][A-Za-z0-9_-]*$`)

// document is the on-disk YAML shape. Field names follow the §6 external
// interface's snake_case wire vocabulary rather than Go's Go-case, since
// this is the collaborator-facing surface, not an internal type.
type document struct {
	ID         string   `yaml:"id,omitempty"`
	Name       string   `yaml:"name,omitempty"`
	Image      string   `yaml:"image"`
	Command    []string `yaml:"command,omitempty"`
	Args       []string `yaml:"args,omitempty"`
	Env        []string `yaml:"env,omitempty"`
	WorkingDir string   `yaml:"working_dir,omitempty"`
	Hostname   string   `yaml:"hostname,omitempty"`

	Resources struct {
		MemoryLimit       int64              `yaml:"memory_limit"`
		MemorySwapLimit   int64              `yaml:"memory_swap_limit"`
		MemoryReservation int64              `yaml:"memory_reservation"`
		CPUShares         float64            `yaml:"cpu_shares"`
		CPUWeight         int64              `yaml:"cpu_weight"`
		CPUPeriod         int64              `yaml:"cpu_period"`
		CPUQuota          int64              `yaml:"cpu_quota"`
		CPUs              string             `yaml:"cpus"`
		PidsLimit         int64              `yaml:"pids_limit"`
		BlkioWeight       int64              `yaml:"blkio_weight"`
		BlkioDeviceLimits []blkioDeviceLimit `yaml:"blkio_device_limits,omitempty"`
	} `yaml:"resources"`

	Security struct {
		CapAdd          []string `yaml:"cap_add,omitempty"`
		CapDrop         []string `yaml:"cap_drop,omitempty"`
		SeccompProfile  string   `yaml:"seccomp_profile,omitempty"`
		AppArmorProfile string   `yaml:"apparmor_profile,omitempty"`
		SELinuxLabel    string   `yaml:"selinux_label,omitempty"`
		ReadOnlyRootfs  bool     `yaml:"read_only_rootfs"`
		NoNewPrivileges *bool    `yaml:"no_new_privileges,omitempty"`
		User            string   `yaml:"user,omitempty"`
		Umask           string   `yaml:"umask,omitempty"`
	} `yaml:"security"`

	Network struct {
		NetworkID    string        `yaml:"network_id,omitempty"`
		Aliases      []string      `yaml:"aliases,omitempty"`
		PortMappings []portMapping `yaml:"port_mappings,omitempty"`
	} `yaml:"network"`

	Storage struct {
		Mounts       []mount  `yaml:"mounts,omitempty"`
		RootfsLayers []string `yaml:"rootfs_layers,omitempty"`
	} `yaml:"storage"`

	HealthCheck *struct {
		Type     string   `yaml:"type"`
		Endpoint string   `yaml:"endpoint,omitempty"`
		Command  []string `yaml:"command,omitempty"`
		Interval string   `yaml:"interval"`
		Timeout  string   `yaml:"timeout"`
		Retries  int      `yaml:"retries"`
	} `yaml:"health_check,omitempty"`

	RestartPolicy struct {
		Condition  string `yaml:"condition"`
		MaxRetries int    `yaml:"max_retries"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"restart_policy"`
}

type blkioDeviceLimit struct {
	Major, Minor int
	ReadBps      uint64 `yaml:"read_bps"`
	WriteBps     uint64 `yaml:"write_bps"`
	ReadIops     uint64 `yaml:"read_iops"`
	WriteIops    uint64 `yaml:"write_iops"`
}

type portMapping struct {
	ContainerPort int    `yaml:"container_port"`
	HostPort      int    `yaml:"host_port"`
	Protocol      string `yaml:"protocol"`
}

// mount mirrors the opencontainers runtime-spec Mount shape for the subset
// of fields (source/destination/options) a bind or volume mount needs,
// keeping the on-disk vocabulary compatible with OCI bundle config.json
// mounts a caller may already have lying around.
type mount struct {
	Type     string `yaml:"type"`
	Source   string `yaml:"source,omitempty"`
	Target   string `yaml:"target"`
	ReadOnly bool   `yaml:"read_only"`
}

func (m mount) toSpecMount() specs.Mount {
	options := []string{}
	if m.ReadOnly {
		options = append(options, "ro")
	}
	return specs.Mount{
		Destination: m.Target,
		Source:      m.Source,
		Type:        m.Type,
		Options:     options,
	}
}

// Load reads path as YAML and converts it into a types.ContainerConfig,
// then validates it. A malformed file or a config that fails Validate
// returns an InvalidArgument error.
func Load(path string) (*types.ContainerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rterrors.Wrap(rterrors.IoError, err, "read config %s", path)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, rterrors.Wrap(rterrors.InvalidArgument, err, "parse config %s", path)
	}

	cfg := doc.toContainerConfig()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (d document) toContainerConfig() types.ContainerConfig {
	noNewPrivileges := true
	if d.Security.NoNewPrivileges != nil {
		noNewPrivileges = *d.Security.NoNewPrivileges
	}
	umask := d.Security.Umask
	if umask == "" {
		umask = "0022"
	}

	deviceLimits := make([]types.BlkioDeviceLimit, 0, len(d.Resources.BlkioDeviceLimits))
	for _, dl := range d.Resources.BlkioDeviceLimits {
		deviceLimits = append(deviceLimits, types.BlkioDeviceLimit{
			Major: dl.Major, Minor: dl.Minor,
			ReadBps: dl.ReadBps, WriteBps: dl.WriteBps,
			ReadIops: dl.ReadIops, WriteIops: dl.WriteIops,
		})
	}

	portMappings := make([]types.PortMapping, 0, len(d.Network.PortMappings))
	for _, pm := range d.Network.PortMappings {
		portMappings = append(portMappings, types.PortMapping{
			ContainerPort: pm.ContainerPort, HostPort: pm.HostPort, Protocol: pm.Protocol,
		})
	}

	mounts := make([]types.Mount, 0, len(d.Storage.Mounts))
	for _, m := range d.Storage.Mounts {
		spec := m.toSpecMount()
		mounts = append(mounts, types.Mount{
			Type:     types.MountType(spec.Type),
			Source:   spec.Source,
			Target:   spec.Destination,
			ReadOnly: m.ReadOnly,
		})
	}

	var healthCheck *types.HealthCheck
	if d.HealthCheck != nil {
		healthCheck = &types.HealthCheck{
			Type:     types.HealthCheckType(d.HealthCheck.Type),
			Endpoint: d.HealthCheck.Endpoint,
			Command:  d.HealthCheck.Command,
			Interval: parseDurationOrZero(d.HealthCheck.Interval),
			Timeout:  parseDurationOrZero(d.HealthCheck.Timeout),
			Retries:  d.HealthCheck.Retries,
		}
	}

	return types.ContainerConfig{
		ID:         d.ID,
		Name:       d.Name,
		Image:      d.Image,
		Command:    d.Command,
		Args:       d.Args,
		Env:        d.Env,
		WorkingDir: d.WorkingDir,
		Hostname:   d.Hostname,
		Resources: types.ResourceLimits{
			MemoryLimit:       d.Resources.MemoryLimit,
			MemorySwapLimit:   d.Resources.MemorySwapLimit,
			MemoryReservation: d.Resources.MemoryReservation,
			CPUShares:         d.Resources.CPUShares,
			CPUWeight:         d.Resources.CPUWeight,
			CPUPeriod:         d.Resources.CPUPeriod,
			CPUQuota:          d.Resources.CPUQuota,
			CPUs:              d.Resources.CPUs,
			PidsLimit:         d.Resources.PidsLimit,
			BlkioWeight:       d.Resources.BlkioWeight,
			BlkioDeviceLimits: deviceLimits,
		},
		Security: types.SecurityConfig{
			CapAdd:          d.Security.CapAdd,
			CapDrop:         d.Security.CapDrop,
			SeccompProfile:  d.Security.SeccompProfile,
			AppArmorProfile: d.Security.AppArmorProfile,
			SELinuxLabel:    d.Security.SELinuxLabel,
			ReadOnlyRootfs:  d.Security.ReadOnlyRootfs,
			NoNewPrivileges: noNewPrivileges,
			User:            d.Security.User,
			Umask:           umask,
		},
		Network: types.NetworkConfig{
			NetworkID:    d.Network.NetworkID,
			Aliases:      d.Network.Aliases,
			PortMappings: portMappings,
		},
		Storage: types.StorageConfig{
			Mounts:       mounts,
			RootfsLayers: d.Storage.RootfsLayers,
		},
		HealthCheck: healthCheck,
		RestartPolicy: types.RestartPolicy{
			Condition:  types.RestartCondition(d.RestartPolicy.Condition),
			MaxRetries: d.RestartPolicy.MaxRetries,
			Timeout:    parseDurationOrZero(d.RestartPolicy.Timeout),
		},
	}
}

func parseDurationOrZero(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// Validate enforces every rule spec.md §6 lists, in the order listed there,
// returning on the first violation.
func Validate(cfg *types.ContainerConfig) error {
	if cfg.Image == "" {
		return rterrors.New(rterrors.InvalidArgument, "image must not be empty")
	}
	if cfg.Name != "" && !registry.ValidateName(cfg.Name) {
		return rterrors.New(rterrors.InvalidArgument, "invalid container name %q", cfg.Name)
	}
	if cfg.WorkingDir != "" && !filepath.IsAbs(cfg.WorkingDir) {
		return rterrors.New(rterrors.InvalidArgument, "working_dir must be empty or absolute, got %q", cfg.WorkingDir)
	}
	for _, e := range cfg.Env {
		if !strings.Contains(e, "=") {
			return rterrors.New(rterrors.InvalidArgument, "env entry %q missing '='", e)
		}
	}
	if cfg.Resources.CPUQuota != 0 && cfg.Resources.CPUPeriod != 0 && cfg.Resources.CPUQuota > cfg.Resources.CPUPeriod {
		return rterrors.New(rterrors.InvalidArgument, "cpu_quota %d exceeds cpu_period %d", cfg.Resources.CPUQuota, cfg.Resources.CPUPeriod)
	}
	if cfg.Resources.MemorySwapLimit != 0 && cfg.Resources.MemoryLimit != 0 && cfg.Resources.MemorySwapLimit < cfg.Resources.MemoryLimit {
		return rterrors.New(rterrors.InvalidArgument, "memory_swap_limit %d below memory_limit %d", cfg.Resources.MemorySwapLimit, cfg.Resources.MemoryLimit)
	}
	if cfg.Security.User != "" && !userPattern.MatchString(cfg.Security.User) {
		return rterrors.New(rterrors.InvalidArgument, "invalid user %q", cfg.Security.User)
	}
	for _, pm := range cfg.Network.PortMappings {
		if pm.ContainerPort == 0 {
			return rterrors.New(rterrors.InvalidArgument, "port mapping has zero container_port")
		}
		if pm.Protocol != "tcp" && pm.Protocol != "udp" {
			return rterrors.New(rterrors.InvalidArgument, "port mapping protocol must be tcp or udp, got %q", pm.Protocol)
		}
	}
	return nil
}
