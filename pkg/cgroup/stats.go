//go:build linux

package cgroup

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/containerrt/pkg/rterrors"
	"github.com/cuemby/containerrt/pkg/types"
)

// readUintOrMax reads a cgroup interface file holding either a decimal
// integer or the literal "max", mapping "max" to 0 ("unlimited").
func readUintOrMax(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, rterrors.Wrap(rterrors.IoError, err, "read %s", path)
	}
	s := strings.TrimSpace(string(data))
	if s == "max" || s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, rterrors.Wrap(rterrors.IoError, err, "parse %s", path)
	}
	return v, nil
}

func readKeyValueFile(path string) (map[string]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rterrors.Wrap(rterrors.IoError, err, "open %s", path)
	}
	defer f.Close()

	out := make(map[string]uint64)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		out[fields[0]] = v
	}
	return out, nil
}

// ReadCPUStat parses cpu.stat into a types.CPUStat. The derived Percent
// field is left zero; it is computed from successive samples by pkg/monitor.
func ReadCPUStat(cgroupPath string) (types.CPUStat, error) {
	kv, err := readKeyValueFile(filepath.Join(cgroupPath, "cpu.stat"))
	if err != nil {
		return types.CPUStat{}, err
	}
	return types.CPUStat{
		UsageUsec:     kv["usage_usec"],
		UserUsec:      kv["user_usec"],
		SystemUsec:    kv["system_usec"],
		NrPeriods:     kv["nr_periods"],
		NrThrottled:   kv["nr_throttled"],
		ThrottledUsec: kv["throttled_usec"],
	}, nil
}

// ReadMemoryStat combines memory.current/peak/max/swap.current/swap.max and
// the optional memory.stat breakdown into a types.MemoryStat.
func ReadMemoryStat(cgroupPath string) (types.MemoryStat, error) {
	current, err := readUintOrMax(filepath.Join(cgroupPath, "memory.current"))
	if err != nil {
		return types.MemoryStat{}, err
	}
	peak, _ := readUintOrMax(filepath.Join(cgroupPath, "memory.peak"))
	limit, err := readUintOrMax(filepath.Join(cgroupPath, "memory.max"))
	if err != nil {
		return types.MemoryStat{}, err
	}
	swap, _ := readUintOrMax(filepath.Join(cgroupPath, "memory.swap.current"))
	swapMax, _ := readUintOrMax(filepath.Join(cgroupPath, "memory.swap.max"))

	breakdown, _ := readKeyValueFile(filepath.Join(cgroupPath, "memory.stat"))

	stat := types.MemoryStat{
		Current: current,
		Peak:    peak,
		Limit:   limit,
		Swap:    swap,
		SwapMax: swapMax,
		Anon:    breakdown["anon"],
		File:    breakdown["file"],
		Slab:    breakdown["slab"],
		Sock:    breakdown["sock"],
		Shmem:   breakdown["shmem"],
	}
	if limit > 0 {
		stat.Percent = float64(current) / float64(limit) * 100
	}
	return stat, nil
}

// ReadIOStat parses io.stat, summing every "key=value" field across all
// device lines. Tokenizing on whitespace (not a fixed-width substring) is
// the fix for the truncated-device-identifier bug this component's
// predecessor carried.
func ReadIOStat(cgroupPath string) (types.IOStat, error) {
	f, err := os.Open(filepath.Join(cgroupPath, "io.stat"))
	if err != nil {
		return types.IOStat{}, rterrors.Wrap(rterrors.IoError, err, "open io.stat")
	}
	defer f.Close()

	var stat types.IOStat
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		for _, kv := range fields[1:] {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				continue
			}
			v, err := strconv.ParseUint(parts[1], 10, 64)
			if err != nil {
				continue
			}
			switch parts[0] {
			case "rbytes":
				stat.RBytes += v
			case "wbytes":
				stat.WBytes += v
			case "rios":
				stat.RIos += v
			case "wios":
				stat.WIos += v
			case "dbytes":
				stat.DBytes += v
			case "dios":
				stat.DIos += v
			}
		}
	}
	return stat, nil
}

// ReadPidsStat reads pids.current and pids.max.
func ReadPidsStat(cgroupPath string) (types.PidsStat, error) {
	current, err := readUintOrMax(filepath.Join(cgroupPath, "pids.current"))
	if err != nil {
		return types.PidsStat{}, err
	}
	max, err := readUintOrMax(filepath.Join(cgroupPath, "pids.max"))
	if err != nil {
		return types.PidsStat{}, err
	}
	return types.PidsStat{Current: current, Max: max}, nil
}

// Stats reads a full ResourceMetrics sample. A destroyed cgroup returns a
// zero-valued record with no error, matching the spec's "destroyed cgroup
// reads default-initialised, no error" contract.
func (h *Handle) Stats() (types.ResourceMetrics, error) {
	h.mu.Lock()
	path := h.path
	destroyed := h.destroyed
	h.mu.Unlock()

	if destroyed {
		return types.ResourceMetrics{}, nil
	}

	cpu, err := ReadCPUStat(path)
	if err != nil {
		return types.ResourceMetrics{}, err
	}
	mem, err := ReadMemoryStat(path)
	if err != nil {
		return types.ResourceMetrics{}, err
	}
	io, err := ReadIOStat(path)
	if err != nil {
		return types.ResourceMetrics{}, err
	}
	pids, err := ReadPidsStat(path)
	if err != nil {
		return types.ResourceMetrics{}, err
	}

	return types.ResourceMetrics{
		Timestamp: time.Now(),
		CPU:       cpu,
		Memory:    mem,
		IO:        io,
		Pids:      pids,
	}, nil
}
