/*
Package monitor implements the resource-monitor sampler (spec.md §4.9): one
background loop covering every watched cgroup path, sampling pkg/cgroup stats at a 1s
cadence into a bounded 1000-sample ring buffer, deriving CPU/memory percent
and I/O throughput between successive samples, and invoking registered
alert callbacks when a per-path threshold is crossed.
*/
package monitor
