//go:build linux

/*
Package childinit is the reexec entry point the launcher's forked child runs
before executing the real target binary. Go's runtime does not let a forked
child safely continue running arbitrary Go code between fork and exec (only
one thread survives fork in a multithreaded process), so instead of the
classic C fork()+do-stuff()+execve() sequence, the launcher execs a copy of
the calling binary with a sentinel argv[0] and lets that fresh process do the
remaining bring-up (sethostname, signal-handler reset, chdir) before the
final execve into the target. This mirrors the self-reexec pattern used by
docker's libcontainer and nomad's LibcontainerExecutor.
*/
package childinit

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Marker is the argv[0] value the launcher sets on the reexec command,
// and the value IsChildInit checks for in a consuming cmd/main.go.
const Marker = "containerrt-childinit"

const (
	envExe        = "CONTAINERRT_CHILDINIT_EXE"
	envArgv       = "CONTAINERRT_CHILDINIT_ARGV"
	envTargetEnv  = "CONTAINERRT_CHILDINIT_ENV"
	envWorkdir    = "CONTAINERRT_CHILDINIT_WORKDIR"
	envHostname   = "CONTAINERRT_CHILDINIT_HOSTNAME"
	envHasUTS     = "CONTAINERRT_CHILDINIT_HAS_UTS"
	envErrPipeFD  = "CONTAINERRT_CHILDINIT_ERRFD"
	fieldSep      = "\x00"
)

// Params carries everything childinit needs across the reexec hop.
type Params struct {
	Exe        string
	Argv       []string
	Env        []string
	WorkingDir string
	Hostname   string
	HasUTS     bool
	ErrPipeFD  int
}

// Encode turns p into environment variable assignments ("KEY=VALUE") to
// attach to the reexec command's own environment (distinct from p.Env,
// which becomes the *target's* environment after the final execve).
func Encode(p Params) []string {
	hasUTS := "0"
	if p.HasUTS {
		hasUTS = "1"
	}
	return []string{
		envExe + "=" + p.Exe,
		envArgv + "=" + strings.Join(p.Argv, fieldSep),
		envTargetEnv + "=" + strings.Join(p.Env, fieldSep),
		envWorkdir + "=" + p.WorkingDir,
		envHostname + "=" + p.Hostname,
		envHasUTS + "=" + hasUTS,
		envErrPipeFD + "=" + strconv.Itoa(p.ErrPipeFD),
	}
}

func decode() (Params, error) {
	fd, err := strconv.Atoi(os.Getenv(envErrPipeFD))
	if err != nil {
		return Params{}, fmt.Errorf("childinit: invalid %s: %w", envErrPipeFD, err)
	}
	var argv []string
	if v := os.Getenv(envArgv); v != "" {
		argv = strings.Split(v, fieldSep)
	}
	var env []string
	if v := os.Getenv(envTargetEnv); v != "" {
		env = strings.Split(v, fieldSep)
	}
	return Params{
		Exe:        os.Getenv(envExe),
		Argv:       argv,
		Env:        env,
		WorkingDir: os.Getenv(envWorkdir),
		Hostname:   os.Getenv(envHostname),
		HasUTS:     os.Getenv(envHasUTS) == "1",
		ErrPipeFD:  fd,
	}, nil
}

// IsChildInit reports whether the current process was exec'd as the
// reexec target, i.e. whether a consuming main() should call Run instead of
// its normal startup path.
func IsChildInit() bool {
	return len(os.Args) > 0 && os.Args[0] == Marker
}

// Run executes the child bring-up sequence and then the final execve into
// the target binary. It never returns on success (the process image is
// replaced); on failure it reports errno through the error pipe and exits
// with status 127, matching the spec's child bring-up contract.
func Run() {
	params, err := decode()
	if err != nil {
		os.Exit(127)
	}

	if params.HasUTS && params.Hostname != "" {
		if err := unix.Sethostname([]byte(params.Hostname)); err != nil {
			reportErrno(params.ErrPipeFD, err)
		}
	}

	resetSignalHandlers()

	if params.WorkingDir != "" {
		if err := unix.Chdir(params.WorkingDir); err != nil {
			reportErrno(params.ErrPipeFD, err)
		}
	}

	// Close-on-exec: the pipe auto-closes on the execve below iff it
	// succeeds, giving the parent EOF rather than a decodable errno.
	unix.CloseOnExec(params.ErrPipeFD)

	argv := []string{params.Exe}
	if len(params.Argv) > 0 {
		argv = params.Argv
	}
	err = syscall.Exec(params.Exe, argv, params.Env)
	// Exec only returns on failure; CloseOnExec above did not fire.
	reportErrno(params.ErrPipeFD, err)
}

// resetSignalHandlers restores the default disposition for the signals a
// target process expects to control itself, undoing anything the launching
// process's runtime had registered.
func resetSignalHandlers() {
	signal.Reset(syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
}

func reportErrno(fd int, err error) {
	errno := int32(0)
	if e, ok := err.(syscall.Errno); ok {
		errno = int32(e)
	} else {
		errno = int32(syscall.EIO)
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(errno))
	unix.Write(fd, buf)
	os.Exit(127)
}
