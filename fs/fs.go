package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	cgroups "github.com/kata-containers/cgroups-rs"
	"github.com/kata-containers/cgroups-rs/stats"
)

// controllerNames lists the v1 subsystems this manager drives. Set
// applies resources in its own fixed order (see set.go).
var controllerNames = []string{
	"cpuset", "cpu", "cpuacct", "memory", "pids", "blkio", "hugetlb",
	"devices", "freezer", "net_cls", "net_prio",
}

// Manager is the cgroupfs driver: it owns one cgroup, rooted at a
// version-dependent set of absolute paths, and applies Resources by
// writing directly into cgroupfs.
type Manager struct {
	mu sync.Mutex

	topology *cgroups.Topology
	base     string // path relative to each subsystem's root, e.g. "/kubepods/pod123"

	// paths maps subsystem name to this cgroup's absolute path. v2 uses
	// a single entry keyed by the empty string.
	paths map[string]string

	log *logrus.Entry
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithTopology injects a pre-probed Topology instead of calling
// cgroups.ProbeTopology, primarily for tests.
func WithTopology(t *cgroups.Topology) Option {
	return func(m *Manager) { m.topology = t }
}

// WithLogger attaches a logger; the default is logrus's standard logger.
func WithLogger(l *logrus.Logger) Option {
	return func(m *Manager) { m.log = l.WithField("component", "cgroups/fs") }
}

// New builds a Manager rooted at base (a cgroup path relative to each
// subsystem's mountpoint, e.g. "/kubepods/burstable/pod123"). It does not
// touch the filesystem; directories are created lazily on first AddProc
// or Set.
func New(base string, opts ...Option) (*Manager, error) {
	m := &Manager{base: base}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logrus.StandardLogger().WithField("component", "cgroups/fs")
	}
	if m.topology == nil {
		t, err := cgroups.ProbeTopology()
		if err != nil {
			return nil, err
		}
		m.topology = t
	}

	m.paths = make(map[string]string)
	if m.topology.IsV2 {
		mount := m.topology.Mounts[""]
		m.paths[""] = filepath.Join(mount, base)
		return m, nil
	}
	for _, name := range controllerNames {
		mount, ok := m.topology.Mounts[name]
		if !ok {
			continue
		}
		m.paths[name] = filepath.Join(mount, base)
	}
	return m, nil
}

func (m *Manager) isV2() bool { return m.topology.IsV2 }

// V2 reports whether this manager is driving a cgroup v2 unified
// hierarchy, for callers (notably the systemd backend) that need to
// branch on hierarchy version without reaching into unexported state.
func (m *Manager) V2() bool { return m.isV2() }

// EnsureCreated creates every controller directory this manager governs,
// idempotently. Exposed for the systemd backend, whose unit start can
// create the cgroup's directories out from under an fs.Manager built in
// "load" mode before AddProc ever runs.
func (m *Manager) EnsureCreated() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCgroups()
}

// path returns the absolute cgroup path for subsystem, and whether that
// controller is available on this host.
func (m *Manager) path(subsystem string) (string, bool) {
	if m.isV2() {
		p, ok := m.paths[""]
		return p, ok
	}
	p, ok := m.paths[subsystem]
	return p, ok
}

// CgroupPath implements cgroups.Manager.
func (m *Manager) CgroupPath(subsystem string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.path(subsystem)
	if !ok {
		return "", fmt.Errorf("%w: %s", cgroups.ErrSubsystemEmpty, subsystem)
	}
	return p, nil
}

// exists reports whether this cgroup's directories are already present.
func (m *Manager) exists() bool {
	if m.isV2() {
		_, err := os.Stat(m.paths[""])
		return err == nil
	}
	for _, p := range m.paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return len(m.paths) > 0
}

// createCgroups creates every controller directory this manager governs.
// Idempotent: directories that already exist are left untouched.
func (m *Manager) createCgroups() error {
	for _, p := range m.paths {
		if err := os.MkdirAll(p, 0755); err != nil {
			return &cgroups.CgroupfsError{Op: cgroups.OpWriteFailed, Path: p, Err: err}
		}
	}
	return nil
}

// membersFile is the process-list file a controller's directory carries:
// cgroup.procs on v2, tasks on v1 (per this package's AddProc semantics).
func (m *Manager) membersFile() string {
	if m.isV2() {
		return "cgroup.procs"
	}
	return "tasks"
}

// AddProc attaches the thread-group leader's pid to every controller this
// manager governs.
func (m *Manager) AddProc(pid cgroups.Pid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createCgroups(); err != nil {
		return err
	}
	members := m.membersFile()
	for _, p := range m.paths {
		if err := writeFile(p, members, strconv.FormatInt(int64(pid), 10)); err != nil {
			return err
		}
	}
	return nil
}

// AddThread attaches a single thread id. On v2 this requires the target
// cgroup to be in threaded mode; cgroup.threads is used instead of
// cgroup.procs. On v1 there is no file-level distinction from AddProc.
func (m *Manager) AddThread(pid cgroups.Pid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createCgroups(); err != nil {
		return err
	}
	if !m.isV2() {
		for _, p := range m.paths {
			if err := writeFile(p, "tasks", strconv.FormatInt(int64(pid), 10)); err != nil {
				return err
			}
		}
		return nil
	}
	p := m.paths[""]
	if err := writeFile(p, "cgroup.threads", strconv.FormatInt(int64(pid), 10)); err != nil {
		if ce, ok := err.(*cgroups.CgroupfsError); ok {
			ce.Op = cgroups.OpCgroupMode
		}
		return fmt.Errorf("%w: %v", cgroups.ErrCgroupMode, err)
	}
	return nil
}

// Pids reads the memory controller's task list, matching the one
// subsystem guaranteed to exist under both hierarchy versions.
func (m *Manager) Pids() ([]cgroups.Pid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.path("memory")
	if !ok {
		return nil, fmt.Errorf("%w: memory", cgroups.ErrSubsystemEmpty)
	}
	raw, err := readFile(p, m.membersFile())
	if err != nil {
		if os.IsNotExist(unwrapPathError(err)) {
			return nil, nil
		}
		return nil, err
	}
	var pids []cgroups.Pid
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			continue
		}
		pids = append(pids, cgroups.Pid(v))
	}
	return pids, nil
}

func unwrapPathError(err error) error {
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok {
			return err
		}
		err = u.Unwrap()
	}
}

// Freeze implements cgroups.Manager by writing to whichever controller
// carries the freezer state file on this hierarchy version.
func (m *Manager) Freeze(state cgroups.FreezerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.path("freezer")
	if !ok {
		return fmt.Errorf("%w: freezer", cgroups.ErrSubsystemEmpty)
	}
	return setFreezerState(m.isV2(), p, state)
}

// Destroy drains every governed controller's membership into its
// subsystem root, then removes the cgroup directories. Failures while
// draining are ignored; directory removal failures are aggregated and
// returned together rather than aborting partway through, since a
// partially destroyed cgroup is worse than a fully-attempted one.
func (m *Manager) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result *multierror.Error
	for name, p := range m.paths {
		if err := m.drain(name, p); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, p := range m.paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, &cgroups.CgroupfsError{Op: cgroups.OpWriteFailed, Path: p, Err: err})
		}
	}
	return result.ErrorOrNil()
}

func (m *Manager) drain(subsystem, path string) error {
	root, ok := m.subsystemMount(subsystem)
	if !ok {
		return nil
	}
	members := m.membersFile()
	raw, err := readFile(path, members)
	if err != nil {
		return nil
	}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		_ = writeFile(root, members, line)
	}
	return nil
}

// subsystemMount returns the hierarchy-version-appropriate root
// mountpoint a given subsystem's ancestor chain is rooted at: the
// unified mountpoint on v2 regardless of subsystem name, or that
// subsystem's own v1 mountpoint.
func (m *Manager) subsystemMount(subsystem string) (string, bool) {
	if m.isV2() {
		p, ok := m.topology.Mounts[""]
		return p, ok
	}
	p, ok := m.topology.Mounts[subsystem]
	return p, ok
}

// Stats implements cgroups.Manager.
func (m *Manager) Stats() (*stats.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectStats()
}

