package rterrors

import (
	"errors"
	"fmt"
)

// Kind identifies one member of the closed error taxonomy. Kind values are
// comparable and are the basis for errors.Is matching against an *Error.
type Kind int

const (
	Unknown Kind = iota
	ContainerNotFound
	ContainerAlreadyExists
	ContainerStartFailed
	ContainerStopFailed
	ContainerRemoveFailed
	InvalidContainerState
	NamespaceCreationFailed
	NamespaceJoinFailed
	NamespaceNotFound
	CgroupCreationFailed
	CgroupConfigFailed
	CgroupNotFound
	ResourceLimitExceeded
	ProcessCreationFailed
	ProcessStopFailed
	ProcessNotFound
	ControllerNotAvailable
	PermissionDenied
	IoError
	InvalidArgument
	NotSupported
	CircularDependency
)

var kindNames = map[Kind]string{
	Unknown:                 "unknown",
	ContainerNotFound:       "container_not_found",
	ContainerAlreadyExists:  "container_already_exists",
	ContainerStartFailed:    "container_start_failed",
	ContainerStopFailed:     "container_stop_failed",
	ContainerRemoveFailed:   "container_remove_failed",
	InvalidContainerState:   "invalid_container_state",
	NamespaceCreationFailed: "namespace_creation_failed",
	NamespaceJoinFailed:     "namespace_join_failed",
	NamespaceNotFound:       "namespace_not_found",
	CgroupCreationFailed:    "cgroup_creation_failed",
	CgroupConfigFailed:      "cgroup_config_failed",
	CgroupNotFound:          "cgroup_not_found",
	ResourceLimitExceeded:   "resource_limit_exceeded",
	ProcessCreationFailed:   "process_creation_failed",
	ProcessStopFailed:       "process_stop_failed",
	ProcessNotFound:         "process_not_found",
	ControllerNotAvailable:  "controller_not_available",
	PermissionDenied:        "permission_denied",
	IoError:                 "io_error",
	InvalidArgument:         "invalid_argument",
	NotSupported:            "not_supported",
	CircularDependency:      "circular_dependency",
}

// String renders the Kind's stable, lowercase, snake_case name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is the single error type returned across package boundaries in this
// module. It carries a closed Kind plus a human-readable message and,
// optionally, the underlying cause (a syscall.Errno, os.PathError, etc.).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, rterrors.New(kind, "")): it matches any other
// *Error with the same Kind, ignoring Message and Cause.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New creates an *Error of the given Kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error of the given Kind, attaching cause as the
// underlying error (retrievable via errors.Unwrap / errors.As).
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf reports the Kind carried by err, or Unknown if err is not an *Error
// (or is nil).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
