/*
Package registry is the dual id/name index over live containers described
in spec.md §4.8: it owns id/name allocation and uniqueness, lookup by either
key, filtered listing, coordinated bulk shutdown, and the two auto-cleanup
sweeps. It does not own the container lifecycle itself — that is
pkg/container's job — it only owns which containers exist and under which
names.
*/
package registry
