//go:build linux

package cgroup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/containerrt/pkg/rterrors"
	"github.com/cuemby/containerrt/pkg/types"
)

const (
	minCPUPeriodUsec = 1000
	maxCPUPeriodUsec = 1_000_000
	minCPUQuotaUsec  = 1000
	minCPUWeight     = 1
	maxCPUWeight     = 10000
	maxPidsLimit     = 4_194_303
	defaultCPUPeriod = 100_000
)

// ValidateCPUPeriod enforces the [1000, 1000000] microsecond bound.
func ValidateCPUPeriod(periodUsec int64) error {
	if periodUsec < minCPUPeriodUsec || periodUsec > maxCPUPeriodUsec {
		return rterrors.New(rterrors.InvalidArgument, "cpu_period %d outside [%d, %d]", periodUsec, minCPUPeriodUsec, maxCPUPeriodUsec)
	}
	return nil
}

// ValidateCPUQuota enforces that a non-zero quota is at least 1000us.
func ValidateCPUQuota(quotaUsec int64) error {
	if quotaUsec != 0 && quotaUsec < minCPUQuotaUsec {
		return rterrors.New(rterrors.InvalidArgument, "cpu_quota %d below minimum %d", quotaUsec, minCPUQuotaUsec)
	}
	return nil
}

// ValidateCPUWeight enforces the [1, 10000] bound.
func ValidateCPUWeight(weight int64) error {
	if weight < minCPUWeight || weight > maxCPUWeight {
		return rterrors.New(rterrors.InvalidArgument, "cpu_weight %d outside [%d, %d]", weight, minCPUWeight, maxCPUWeight)
	}
	return nil
}

// ValidatePidsLimit enforces the kernel's 4194303 ceiling. Zero means
// unlimited and is always accepted.
func ValidatePidsLimit(limit int64) error {
	if limit < 0 || limit > maxPidsLimit {
		return rterrors.New(rterrors.InvalidArgument, "pids_limit %d outside [0, %d]", limit, maxPidsLimit)
	}
	return nil
}

// WriteCPUMax writes cpu.max as "<quota> <period>" or "max <period>" when
// quotaUsec is 0 (unlimited).
func WriteCPUMax(cgroupPath string, quotaUsec, periodUsec int64) error {
	if err := ValidateCPUPeriod(periodUsec); err != nil {
		return err
	}
	value := fmt.Sprintf("max %d", periodUsec)
	if quotaUsec != 0 {
		if err := ValidateCPUQuota(quotaUsec); err != nil {
			return err
		}
		value = fmt.Sprintf("%d %d", quotaUsec, periodUsec)
	}
	return writeInterfaceFile(cgroupPath, "cpu.max", value)
}

// WriteCPUWeight writes cpu.weight.
func WriteCPUWeight(cgroupPath string, weight int64) error {
	if err := ValidateCPUWeight(weight); err != nil {
		return err
	}
	return writeInterfaceFile(cgroupPath, "cpu.weight", fmt.Sprintf("%d", weight))
}

func writeByteLimit(cgroupPath, file string, bytes int64) error {
	value := "max"
	if bytes > 0 {
		value = fmt.Sprintf("%d", bytes)
	}
	return writeInterfaceFile(cgroupPath, file, value)
}

// WriteMemoryMax writes memory.max; 0 means unlimited ("max").
func WriteMemoryMax(cgroupPath string, bytes int64) error {
	return writeByteLimit(cgroupPath, "memory.max", bytes)
}

// WriteMemorySwapMax writes memory.swap.max; 0 means unlimited.
func WriteMemorySwapMax(cgroupPath string, bytes int64) error {
	return writeByteLimit(cgroupPath, "memory.swap.max", bytes)
}

// WriteMemoryLow writes memory.low; 0 means no protection floor.
func WriteMemoryLow(cgroupPath string, bytes int64) error {
	return writeByteLimit(cgroupPath, "memory.low", bytes)
}

// WriteMemoryHigh writes memory.high; 0 means unlimited.
func WriteMemoryHigh(cgroupPath string, bytes int64) error {
	return writeByteLimit(cgroupPath, "memory.high", bytes)
}

// WriteMemoryOOMGroup writes memory.oom.group as "0" or "1".
func WriteMemoryOOMGroup(cgroupPath string, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	return writeInterfaceFile(cgroupPath, "memory.oom.group", value)
}

// WritePidsMax writes pids.max; 0 means unlimited ("max").
func WritePidsMax(cgroupPath string, limit int64) error {
	if limit != 0 {
		if err := ValidatePidsLimit(limit); err != nil {
			return err
		}
	}
	value := "max"
	if limit > 0 {
		value = fmt.Sprintf("%d", limit)
	}
	return writeInterfaceFile(cgroupPath, "pids.max", value)
}

// WriteIOMax writes one device line to io.max:
// "<major:minor> rbps=<n> wbps=<n> riops=<n> wiops=<n>", substituting "max"
// for any zero-valued (unlimited) field.
func WriteIOMax(cgroupPath string, major, minor int, limit types.BlkioDeviceLimit) error {
	field := func(v uint64) string {
		if v == 0 {
			return "max"
		}
		return fmt.Sprintf("%d", v)
	}
	value := fmt.Sprintf("%d:%d rbps=%s wbps=%s riops=%s wiops=%s",
		major, minor, field(limit.ReadBps), field(limit.WriteBps), field(limit.ReadIops), field(limit.WriteIops))
	return writeInterfaceFile(cgroupPath, "io.max", value)
}

func writeInterfaceFile(cgroupPath, name, value string) error {
	path := filepath.Join(cgroupPath, name)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return rterrors.Wrap(rterrors.CgroupConfigFailed, err, "write %s", path)
	}
	return nil
}

// ApplyLimits writes every field of limits that is set (non-zero, except
// where zero is a meaningful "unlimited"/"use default" value) to the
// cgroup's interface files.
func (h *Handle) ApplyLimits(limits types.ResourceLimits) error {
	h.mu.Lock()
	path := h.path
	h.mu.Unlock()

	period := limits.CPUPeriod
	if period == 0 {
		period = defaultCPUPeriod
	}
	if err := WriteCPUMax(path, limits.CPUQuota, period); err != nil {
		return err
	}
	if limits.CPUWeight != 0 {
		if err := WriteCPUWeight(path, limits.CPUWeight); err != nil {
			return err
		}
	}
	if err := WriteMemoryMax(path, limits.MemoryLimit); err != nil {
		return err
	}
	if err := WriteMemorySwapMax(path, limits.MemorySwapLimit); err != nil {
		return err
	}
	if limits.MemoryReservation != 0 {
		if err := WriteMemoryLow(path, limits.MemoryReservation); err != nil {
			return err
		}
	}
	if err := WritePidsMax(path, limits.PidsLimit); err != nil {
		return err
	}
	for _, dev := range limits.BlkioDeviceLimits {
		if err := WriteIOMax(path, dev.Major, dev.Minor, dev); err != nil {
			return err
		}
	}

	h.mu.Lock()
	h.config = limits
	h.mu.Unlock()
	return nil
}
