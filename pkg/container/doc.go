/*
Package container implements the per-container state machine: the eleven
lifecycle states, the legal-transition table, and the operations (start,
stop, pause, resume, restart, remove, kill) that orchestrate the cgroup
handle, the process launcher, and the process supervisor while publishing
one event per legal transition through the event bus.

Every operation that mutates a Container's state holds that Container's own
mutex for the duration; no lock is ever held across a syscall that can block
indefinitely (the supervisor's own internal polling is responsible for that).
*/
package container
