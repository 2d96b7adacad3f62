package cgroups

import "fmt"

// Sentinel errors forming the bulk of the error taxonomy. Use
// errors.Is against these after unwrapping CgroupfsError/SystemdDbusError
// where applicable.
var (
	// ErrInvalidArgument covers malformed paths, Freezing passed to
	// Freeze, and CPU list parse failures.
	ErrInvalidArgument = fmt.Errorf("cgroups: invalid argument")

	// ErrInvalidLinuxResource covers semantically invalid OCI input:
	// swap < limit on v2, swappiness > 100, a limit at or below current
	// usage, an unknown device type character.
	ErrInvalidLinuxResource = fmt.Errorf("cgroups: invalid linux resource")

	// ErrCgroupsV1NotSupported names the failure of requesting a resource
	// that only exists on v2 (MemoryLow, MemorySwapMax) against a v1
	// backend. The backends in this module do not return it: on a v1
	// host, memory settings are written through the v1 cgroupfs files.
	ErrCgroupsV1NotSupported = fmt.Errorf("cgroups: not supported on cgroup v1")

	// ErrSubsystemEmpty is returned when an operation references a
	// subsystem absent from the host topology.
	ErrSubsystemEmpty = fmt.Errorf("cgroups: subsystem empty")

	// ErrCgroupMode is returned when a v2 threaded-cgroup write is
	// rejected because threaded mode is disabled for the target.
	ErrCgroupMode = fmt.Errorf("cgroups: threaded mode disabled")
)

// ObsoleteSystemdError is returned when a requested unit property
// requires a systemd version newer than the one running on the bus.
type ObsoleteSystemdError struct {
	Property string
	Have     string
	Want     string
}

func (e *ObsoleteSystemdError) Error() string {
	return fmt.Sprintf("cgroups: property %s requires systemd >= %s, have %s", e.Property, e.Want, e.Have)
}

// CorruptedSystemdVersionError is returned when the systemd Version
// D-Bus property could not be parsed for a leading dotted integer.
type CorruptedSystemdVersionError struct {
	Raw string
}

func (e *CorruptedSystemdVersionError) Error() string {
	return fmt.Sprintf("cgroups: corrupted systemd version %q", e.Raw)
}

// CgroupfsOp names the filesystem-layer failure mode wrapped by
// CgroupfsError.
type CgroupfsOp string

const (
	OpReadFailed      CgroupfsOp = "read_failed"
	OpWriteFailed     CgroupfsOp = "write_failed"
	OpParseError      CgroupfsOp = "parse_error"
	OpSubsystemsEmpty CgroupfsOp = "subsystems_empty"
	OpInvalidPath     CgroupfsOp = "invalid_path"
	OpCgroupMode      CgroupfsOp = "cgroup_mode"
	OpInvalidBytes    CgroupfsOp = "invalid_bytes_size"
)

// CgroupfsError wraps any filesystem-layer failure with the path and
// value (where applicable) that triggered it.
type CgroupfsError struct {
	Op    CgroupfsOp
	Path  string
	Value string
	Err   error
}

func (e *CgroupfsError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("cgroups: %s %s=%q: %v", e.Op, e.Path, e.Value, e.Err)
	}
	return fmt.Sprintf("cgroups: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CgroupfsError) Unwrap() error { return e.Err }

// SystemdDbusError wraps a D-Bus transport or method-call failure.
type SystemdDbusError struct {
	Unit   string
	Method string
	Err    error
}

func (e *SystemdDbusError) Error() string {
	return fmt.Sprintf("cgroups: dbus %s(%s): %v", e.Method, e.Unit, e.Err)
}

func (e *SystemdDbusError) Unwrap() error { return e.Err }

// SystemdCgroupError wraps a property-translation failure specific to
// the systemd backend (as opposed to transport failures, which use
// SystemdDbusError).
type SystemdCgroupError struct {
	Reason string
	Err    error
}

func (e *SystemdCgroupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cgroups: systemd cgroup: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("cgroups: systemd cgroup: %s", e.Reason)
}

func (e *SystemdCgroupError) Unwrap() error { return e.Err }
