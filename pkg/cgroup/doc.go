/*
Package cgroup implements an RAII-style handle over a single cgroup-v2
directory: creation, controller delegation through cgroup.subtree_control,
bit-exact interface-file writes for resource limits, process attach/detach,
and typed reads of the kernel's accounting files.

A Handle is not copyable in spirit (Go has no copy constructors to forbid,
but callers should treat a Handle as owned by exactly one Container) and its
Destroy method is safe to call more than once: destroying an already-absent
cgroup is a no-op, matching the round-trip law that destroy is idempotent.
*/
package cgroup
