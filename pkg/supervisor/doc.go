/*
Package supervisor tracks a set of managed child PIDs: status polling via
signal-0 probes and a non-blocking waitid that leaves the child unreaped, graceful stop with a SIGTERM then
SIGKILL escalation, direct signal delivery, and a background monitor loop
that reaps exited children and fires their exit callbacks without the
caller having to poll.
*/
package supervisor
