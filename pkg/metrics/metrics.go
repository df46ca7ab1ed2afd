package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry/container metrics
	ContainersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "containerrt_containers_total",
			Help: "Total number of registered containers by lifecycle state",
		},
		[]string{"state"},
	)

	ContainerCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "containerrt_container_create_duration_seconds",
			Help:    "Time taken to validate and register a container",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContainerStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "containerrt_container_start_duration_seconds",
			Help:    "Time taken from start() call to the child reporting RUNNING",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContainerStopDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "containerrt_container_stop_duration_seconds",
			Help:    "Time taken from stop() call to the child being reaped",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContainersFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "containerrt_containers_failed_total",
			Help: "Total number of containers that transitioned to ERROR",
		},
	)

	// Event bus metrics
	EventBusPublishedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "containerrt_eventbus_published_total",
			Help: "Total number of events successfully published",
		},
	)

	EventBusProcessedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "containerrt_eventbus_processed_total",
			Help: "Total number of events dispatched to at least zero listeners",
		},
	)

	EventBusDroppedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "containerrt_eventbus_dropped_total",
			Help: "Total number of events dropped because the queue was at capacity",
		},
	)

	EventBusPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "containerrt_eventbus_pending",
			Help: "Number of events currently queued for dispatch",
		},
	)

	EventBusActiveSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "containerrt_eventbus_active_subscriptions",
			Help: "Number of active event bus subscriptions",
		},
	)

	// Supervisor metrics
	SupervisorReapDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "containerrt_supervisor_reap_duration_seconds",
			Help:    "Time from SIGTERM to a managed process being reaped",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Resource-monitor sampler metrics, one series per watched cgroup path
	CgroupCPUPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "containerrt_cgroup_cpu_percent",
			Help: "Most recent sampled CPU percent for a watched cgroup path",
		},
		[]string{"cgroup_path"},
	)

	CgroupMemoryPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "containerrt_cgroup_memory_percent",
			Help: "Most recent sampled memory percent for a watched cgroup path",
		},
		[]string{"cgroup_path"},
	)

	CgroupIOBytesPerSec = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "containerrt_cgroup_io_bytes_per_sec",
			Help: "Most recent sampled I/O throughput for a watched cgroup path",
		},
		[]string{"cgroup_path"},
	)
)

func init() {
	prometheus.MustRegister(ContainersTotal)
	prometheus.MustRegister(ContainerCreateDuration)
	prometheus.MustRegister(ContainerStartDuration)
	prometheus.MustRegister(ContainerStopDuration)
	prometheus.MustRegister(ContainersFailed)

	prometheus.MustRegister(EventBusPublishedTotal)
	prometheus.MustRegister(EventBusProcessedTotal)
	prometheus.MustRegister(EventBusDroppedTotal)
	prometheus.MustRegister(EventBusPending)
	prometheus.MustRegister(EventBusActiveSubscriptions)

	prometheus.MustRegister(SupervisorReapDuration)

	prometheus.MustRegister(CgroupCPUPercent)
	prometheus.MustRegister(CgroupMemoryPercent)
	prometheus.MustRegister(CgroupIOBytesPerSec)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
