/*
Package launcher forks a child that unshares the requested Linux namespaces,
installs its working directory and hostname, and execves the target binary,
propagating any bring-up failure back to the caller through a close-on-exec
error pipe rather than a guessed timeout.

Go's runtime forbids the raw fork()-then-keep-running-Go-code sequence C
programs use (only one OS thread survives fork), so this launcher takes the
namespace-creation flags at clone time via syscall.SysProcAttr.Cloneflags —
exactly what unshare would do, but race-free by construction — and defers
the handful of bring-up steps Cloneflags cannot express (sethostname, signal
reset, chdir-with-errno-capture) to a reexec of the calling binary itself,
see pkg/launcher/internal/childinit. The error-pipe handshake this package
implements is otherwise exactly the one spec.md §9 requires: the parent
never decides launch success by anything other than the pipe's EOF/errno.
*/
package launcher
