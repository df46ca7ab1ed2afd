/*
Package nsutil wraps a single Linux namespace file descriptor: created fresh
via unshare, wrapped around a pre-opened fd, or joined from a running
process's /proc/<pid>/ns/<kind> entry. A Handle's Release closes its fd
exactly once; moving ownership (Take) leaves the source inert rather than
double-closing.
*/
package nsutil
