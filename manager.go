package cgroups

import "github.com/kata-containers/cgroups-rs/stats"

// Manager is the capability set implemented by both driver backends
// (fs.Manager and systemd.Manager). Callers program against this
// interface and are agnostic to which backend, and which cgroup version,
// is in play on the host.
//
// A Manager is not safe for concurrent mutation from multiple
// goroutines; callers must serialize AddProc/AddThread/Set/Freeze/Destroy
// per instance. Read-only queries may be interleaved freely with other
// reads on the same instance.
type Manager interface {
	// AddProc attaches a thread-group (process) to the cgroup, creating
	// the cgroup on first call.
	AddProc(pid Pid) error

	// AddThread attaches a single thread to the cgroup, creating the
	// cgroup on first call.
	AddThread(pid Pid) error

	// Set applies resources to the cgroup. Not transactional: a failing
	// Set may leave some resources applied.
	Set(resources *Resources) error

	// Pids returns the process identifiers currently members of the
	// cgroup.
	Pids() ([]Pid, error)

	// Freeze transitions the cgroup's freezer state. Freezing is not a
	// valid input and returns ErrInvalidArgument.
	Freeze(state FreezerState) error

	// Stats harvests runtime statistics. Missing controllers yield
	// zero-value sections, never an error.
	Stats() (*stats.Stats, error)

	// Destroy drains member processes and removes the cgroup. A no-op if
	// the cgroup does not exist.
	Destroy() error

	// CgroupPath returns the absolute filesystem path backing the given
	// subsystem (v1) or the cgroup's unified path (v2, subsys ignored).
	CgroupPath(subsystem string) (string, error)
}
