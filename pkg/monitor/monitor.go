package monitor

import (
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/containerrt/pkg/cgroup"
	"github.com/cuemby/containerrt/pkg/log"
	"github.com/cuemby/containerrt/pkg/types"
)

const sampleInterval = 1 * time.Second
const ringCapacity = 1000

// AlertKind identifies which threshold a sample crossed.
type AlertKind string

const (
	AlertCPUPercent    AlertKind = "cpu_percent"
	AlertMemoryPercent AlertKind = "memory_percent"
	AlertIOBytesPerSec AlertKind = "io_bytes_per_sec"
)

// AlertCallback is invoked synchronously on the goroutine taking the sample
// (the sampler's loop) whenever a watched path's sample crosses one of its
// configured thresholds.
type AlertCallback func(path string, kind AlertKind, value float64)

// Thresholds configures the per-path alert crossings a Sampler checks on
// every sample. Zero means "no threshold for this kind".
type Thresholds struct {
	CPUPercent    float64
	MemoryPercent float64
	IOBytesPerSec float64
}

// sample is one ring-buffer entry: the raw reading plus its derived rates.
type sample struct {
	metrics       types.ResourceMetrics
	cpuPercent    float64
	memoryPercent float64
	ioBytesPerSec float64
}

type ring struct {
	buf   [ringCapacity]sample
	next  int
	count int
}

func (r *ring) push(s sample) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % ringCapacity
	if r.count < ringCapacity {
		r.count++
	}
}

// snapshot returns the buffered samples in chronological order.
func (r *ring) snapshot() []sample {
	out := make([]sample, 0, r.count)
	start := r.next - r.count
	if start < 0 {
		start += ringCapacity
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%ringCapacity])
	}
	return out
}

type watchedPath struct {
	thresholds Thresholds
	prev       *types.ResourceMetrics
	prevAt     time.Time
	ring       ring
}

// Sampler runs one background sampling loop covering every watched cgroup
// path, per spec.md §4.9.
type Sampler struct {
	mu        sync.Mutex
	paths     map[string]*watchedPath
	callbacks []AlertCallback

	numCPU int

	stopCh  chan struct{}
	stopped bool
	wg      sync.WaitGroup
	logger  zerolog.Logger
}

// New constructs a Sampler with no watched paths. Call Start to begin
// sampling.
func New() *Sampler {
	return &Sampler{
		paths:  make(map[string]*watchedPath),
		numCPU: runtime.NumCPU(),
		stopCh: make(chan struct{}),
		logger: log.WithComponent("monitor"),
	}
}

// Watch begins sampling path on the next tick. Re-watching an already
// watched path replaces its thresholds and resets its history.
func (s *Sampler) Watch(path string, thresholds Thresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[path] = &watchedPath{thresholds: thresholds}
}

// Unwatch stops sampling path and discards its history.
func (s *Sampler) Unwatch(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, path)
}

// OnAlert registers a callback invoked on every threshold crossing across
// every watched path.
func (s *Sampler) OnAlert(cb AlertCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// Start begins the 1s sampling loop. Call it once: each call starts another
// sampling loop goroutine; a second call is not ignored.
func (s *Sampler) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop signals the sampling loop to exit and blocks until it has.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sampler) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sampler) tick() {
	s.mu.Lock()
	paths := make([]string, 0, len(s.paths))
	for p := range s.paths {
		paths = append(paths, p)
	}
	s.mu.Unlock()

	for _, path := range paths {
		s.sampleOne(path)
	}
}

func (s *Sampler) sampleOne(path string) {
	now := time.Now()
	cpu, err := cgroup.ReadCPUStat(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("cpu.stat read failed")
		return
	}
	mem, err := cgroup.ReadMemoryStat(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("memory stat read failed")
		return
	}
	io, err := cgroup.ReadIOStat(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("io.stat read failed")
		return
	}
	pids, err := cgroup.ReadPidsStat(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("pids stat read failed")
		return
	}

	metrics := types.ResourceMetrics{Timestamp: now, CPU: cpu, Memory: mem, IO: io, Pids: pids}

	s.mu.Lock()
	wp, ok := s.paths[path]
	if !ok {
		s.mu.Unlock()
		return
	}

	smp := sample{metrics: metrics, memoryPercent: mem.Percent}
	if wp.prev != nil {
		elapsedUsec := float64(now.Sub(wp.prevAt).Microseconds())
		if elapsedUsec > 0 {
			deltaUsage := float64(cpu.UsageUsec - wp.prev.CPU.UsageUsec)
			pct := deltaUsage / elapsedUsec * 100
			max := 100 * float64(s.numCPU)
			if pct < 0 {
				pct = 0
			}
			if pct > max {
				pct = max
			}
			smp.cpuPercent = pct
		}
		elapsedSec := now.Sub(wp.prevAt).Seconds()
		if elapsedSec > 0 {
			deltaBytes := float64((io.RBytes + io.WBytes) - (wp.prev.IO.RBytes + wp.prev.IO.WBytes))
			smp.ioBytesPerSec = deltaBytes / elapsedSec
		}
	}

	wp.ring.push(smp)
	wp.prev = &metrics
	wp.prevAt = now
	thresholds := wp.thresholds
	callbacks := append([]AlertCallback{}, s.callbacks...)
	s.mu.Unlock()

	checkThreshold(path, AlertCPUPercent, smp.cpuPercent, thresholds.CPUPercent, callbacks)
	checkThreshold(path, AlertMemoryPercent, smp.memoryPercent, thresholds.MemoryPercent, callbacks)
	checkThreshold(path, AlertIOBytesPerSec, smp.ioBytesPerSec, thresholds.IOBytesPerSec, callbacks)
}

func checkThreshold(path string, kind AlertKind, value, threshold float64, callbacks []AlertCallback) {
	if threshold <= 0 || value < threshold {
		return
	}
	for _, cb := range callbacks {
		cb(path, kind, value)
	}
}

// Latest returns the most recent sample for path, or ok=false if path is
// unwatched or has no samples yet.
func (s *Sampler) Latest(path string) (metrics types.ResourceMetrics, cpuPercent, memoryPercent, ioBytesPerSec float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wp, exists := s.paths[path]
	if !exists || wp.ring.count == 0 {
		return types.ResourceMetrics{}, 0, 0, 0, false
	}
	idx := wp.ring.next - 1
	if idx < 0 {
		idx += ringCapacity
	}
	last := wp.ring.buf[idx]
	return last.metrics, last.cpuPercent, last.memoryPercent, last.ioBytesPerSec, true
}

// History returns the samples for path whose Timestamp falls within
// [start, end] inclusive.
func (s *Sampler) History(path string, start, end time.Time) []types.ResourceMetrics {
	s.mu.Lock()
	wp, ok := s.paths[path]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	snap := wp.ring.snapshot()
	s.mu.Unlock()

	out := make([]types.ResourceMetrics, 0, len(snap))
	for _, smp := range snap {
		ts := smp.metrics.Timestamp
		if (ts.Equal(start) || ts.After(start)) && (ts.Equal(end) || ts.Before(end)) {
			out = append(out, smp.metrics)
		}
	}
	return out
}
