/*
Package metrics exposes Prometheus instrumentation for the container engine:
registry state (containers by lifecycle state), event bus throughput
(published/processed/dropped/pending, active subscriptions), supervisor reap
latency, and the resource-monitor sampler's last reading per watched cgroup
path (CPU percent, memory percent, I/O bytes/sec). Metrics are registered at
package init against the default Prometheus registry and exposed via
Handler() for scraping.

Collector wraps a Registry, an event Bus, and a monitor.Sampler. It copies
the registry's and the bus's current state into the package's series on a
15s ticker, mirroring the poll-and-set pattern used throughout this
package's metrics; the sampler's per-path readings are copied only by
Collector.SampleCgroupPath, which the embedder calls. A separate,
domain-agnostic health-check surface (HealthChecker, /health, /ready, /live)
is unrelated to Prometheus scraping and tracks liveness/readiness of the
engine's own subsystems (event bus, cgroup controller, supervisor) rather
than container health.
*/
package metrics
