/*
Package types defines the data structures shared across containerrt's
components: the ContainerConfig surface a higher-level collaborator supplies,
the resource-limit and accounting types pkg/cgroup reads and writes, and the
ContainerState enumeration pkg/container's state machine operates over.

None of these types carry behavior; validation lives in pkg/config, and state
transition rules live in pkg/container. Keeping them here lets pkg/cgroup,
pkg/container, pkg/config, and pkg/monitor share one vocabulary without
import cycles.
*/
package types
