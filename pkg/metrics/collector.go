package metrics

import (
	"time"

	"github.com/cuemby/containerrt/pkg/events"
	"github.com/cuemby/containerrt/pkg/monitor"
	"github.com/cuemby/containerrt/pkg/registry"
	"github.com/cuemby/containerrt/pkg/types"
)

// Collector periodically samples a Registry and an event Bus into the
// package's Prometheus series. The resource Sampler's readings are copied
// only when SampleCgroupPath is called, not on the ticker. It owns no state
// of its own beyond the ticker.
type Collector struct {
	reg     *registry.Registry
	bus     *events.Bus
	sampler *monitor.Sampler

	stopCh chan struct{}
}

// NewCollector builds a Collector over the given registry, event bus, and
// resource-monitor sampler. sampler may be nil if no cgroup paths are
// watched.
func NewCollector(reg *registry.Registry, bus *events.Bus, sampler *monitor.Sampler) *Collector {
	return &Collector{
		reg:     reg,
		bus:     bus,
		sampler: sampler,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectContainerMetrics()
	c.collectEventBusMetrics()
}

func (c *Collector) collectContainerMetrics() {
	if c.reg == nil {
		return
	}

	counts := make(map[types.ContainerState]int)
	for _, container := range c.reg.List(true) {
		counts[container.State()]++
	}

	allStates := []types.ContainerState{
		types.StateCreated, types.StateStarting, types.StateRunning, types.StatePaused,
		types.StateStopping, types.StateStopped, types.StateRestarting, types.StateRemoving,
		types.StateRemoved, types.StateDead, types.StateError,
	}
	for _, state := range allStates {
		ContainersTotal.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}

func (c *Collector) collectEventBusMetrics() {
	if c.bus == nil {
		return
	}
	stats := c.bus.Statistics()
	EventBusPublishedTotal.Set(float64(stats.Published))
	EventBusProcessedTotal.Set(float64(stats.Processed))
	EventBusDroppedTotal.Set(float64(stats.Dropped))
	EventBusPending.Set(float64(stats.Pending))
	EventBusActiveSubscriptions.Set(float64(stats.ActiveSubscriptions))
}

// SampleCgroupPath publishes the sampler's latest reading for path into the
// per-path gauge series. Call it once per watched path on whatever cadence
// the embedder prefers (the sampler itself already samples at 1s; this just
// copies its last value into Prometheus).
func (c *Collector) SampleCgroupPath(path string) {
	if c.sampler == nil {
		return
	}
	_, cpuPct, memPct, ioBps, ok := c.sampler.Latest(path)
	if !ok {
		return
	}
	CgroupCPUPercent.WithLabelValues(path).Set(cpuPct)
	CgroupMemoryPercent.WithLabelValues(path).Set(memPct)
	CgroupIOBytesPerSec.WithLabelValues(path).Set(ioBps)
}
