/*
Package log provides structured logging for the container engine using
zerolog. A single package-level Logger is configured once via Init and
handed out, pre-scoped with context fields, through a handful of With*
helpers so call sites never repeat boilerplate fields.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  Global Logger (zerolog.Logger)                           │
	│    - sane stderr default set in init(), so packages that  │
	│      grab a logger before main calls Init still write     │
	│      somewhere instead of through a zero-value Logger     │
	│    - replaced wholesale by Init(Config)                   │
	│                                                            │
	│  Config                                                    │
	│    - Level:      debug/info/warn/error                    │
	│    - JSONOutput: JSON vs console (human-readable) writer  │
	│    - Output:     io.Writer destination (default stdout)   │
	│                                                            │
	│  Context loggers, each a child of Logger:                 │
	│    - WithComponent(name)     e.g. "registry", "supervisor" │
	│    - WithContainerID(id)                                  │
	│    - WithCgroupPath(path)                                 │
	│    - WithPID(pid)                                         │
	└────────────────────────────────────────────────────────────┘

# Log levels

Debug is for development and troubleshooting only; it is verbose enough
that it should never run enabled in production. Info is the default
production level: container lifecycle transitions, cgroup provisioning,
registry churn. Warn covers conditions the engine recovers from on its
own (a swallowed error during bulk shutdown, a best-effort cgroup
cleanup that failed). Error marks operations that failed and were
returned to the caller. Fatal logs and calls os.Exit(1); it has no place
inside a library and exists only for cmd/containerrtctl's own startup
failures.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers, grabbed once per package and reused:

	logger := log.WithComponent("supervisor")
	logger.Info().Int("pid", pid).Msg("process reaped")

Per-entity loggers, grabbed once per container and held on the struct
(see pkg/container.Container.logger):

	logger := log.WithContainerID(id)
	logger.Warn().Err(err).Msg("cgroup destroy failed during remove")

Simple one-line helpers for code that doesn't need a scoped logger:

	log.Info("containerrtctl starting")
	log.Errorf("config load failed", err) // message as given, err as a field

# Design notes

The global-Logger-plus-With* pattern keeps every package from having to
thread a logger through constructors; a package grabs its component
logger once (usually in a constructor, as pkg/registry.New and
pkg/supervisor.New do) and uses it for the lifetime of the value. This
only works because Init is expected to run once, early, before any
container is created. Reconfiguring the global Logger after component
loggers have already been derived from it does not change those derived
loggers: they are copies and keep their original output destination and
fields. Only the global level set by Init applies to them.

# See also

  - https://github.com/rs/zerolog
*/
package log
