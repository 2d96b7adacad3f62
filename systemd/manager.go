package systemd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-version"
	"github.com/sirupsen/logrus"

	cgroups "github.com/kata-containers/cgroups-rs"
	"github.com/kata-containers/cgroups-rs/fs"
	"github.com/kata-containers/cgroups-rs/stats"
)

// Manager is the systemd driver backend. It owns one transient unit
// (a slice or a scope) and delegates everything systemd has no
// property for — statistics, topdown cpuset population, the
// miscellaneous v1 controllers — back to an embedded fs.Manager rooted
// at the same cgroup path systemd itself creates.
type Manager struct {
	mu sync.Mutex

	c  *client
	fs *fs.Manager

	slice  string
	prefix string
	name   string
	unit   string

	v2      bool
	version *version.Version
	started bool

	log *logrus.Entry
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger attaches a logger; the default is logrus's standard logger.
func WithLogger(l *logrus.Logger) Option {
	return func(m *Manager) { m.log = l.WithField("component", "cgroups/systemd") }
}

// New builds a Manager for the systemd cgroup path, which is the
// colon-delimited "<slice>:<prefix>:<name>" form OCI runtimes pass when
// SystemdCgroup is requested, or a bare unit name parented under
// DefaultSlice. It opens its own D-Bus connection and queries the
// running systemd's version once, up front, so later Set calls can gate
// version-sensitive properties without a bus round trip per call.
func New(ctx context.Context, path string, opts ...Option) (*Manager, error) {
	slice, prefix, name, err := ParseSliceAndUnit(path)
	if err != nil {
		return nil, err
	}

	c, err := newClient(ctx)
	if err != nil {
		return nil, err
	}

	v, err := c.version(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	topology, err := cgroups.ProbeTopology()
	if err != nil {
		c.Close()
		return nil, err
	}

	base, err := basePath(slice, NewUnitName(prefix, name))
	if err != nil {
		c.Close()
		return nil, err
	}

	fsMgr, err := fs.New(base, fs.WithTopology(topology))
	if err != nil {
		c.Close()
		return nil, err
	}

	m := &Manager{
		c:       c,
		fs:      fsMgr,
		slice:   slice,
		prefix:  prefix,
		name:    name,
		unit:    NewUnitName(prefix, name),
		v2:      topology.IsV2,
		version: v,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logrus.StandardLogger().WithField("component", "cgroups/systemd")
	}
	m.started = c.exists(ctx, m.unit)
	return m, nil
}

// basePath derives the cgroupfs-relative path systemd creates a unit's
// cgroup at: every ancestor slice in the expansion, joined in order,
// followed by the unit itself.
func basePath(slice, unit string) (string, error) {
	chain, err := ExpandSlice(slice)
	if err != nil {
		return "", err
	}
	return "/" + filepath.Join(strings.Join(chain, "/"), unit), nil
}

// dindInitPath reports whether base/init exists, the heuristic this
// backend uses to detect it is itself running inside a Docker-in-Docker
// container under cgroup v2: the outer runtime's own cgroup already
// occupies the unit's nominal path, and the inner container's
// processes actually land one level down, under "init".
func dindInitPath(v2 bool, base string) bool {
	if !v2 {
		return false
	}
	_, err := os.Stat(filepath.Join(base, "init"))
	return err == nil
}

// ensureStarted creates the transient unit carrying the fixed default
// properties plus, for the very first creation, the calling pid(s) that
// must land in the unit's cgroup atomically with its creation.
func (m *Manager) ensureStarted(ctx context.Context, pids []uint32) error {
	if m.started {
		return nil
	}
	props := defaultProperties(m.slice, m.unit, "", m.v2)
	if len(pids) > 0 {
		props = append(props, pidsProperty(pids))
	}
	if err := m.c.start(ctx, m.unit, props); err != nil {
		return err
	}
	m.started = true
	return m.fs.EnsureCreated()
}

// AddProc implements cgroups.Manager. The first call creates the
// transient unit with pid as its initial PIDs property; later calls
// attach to the already-running unit.
func (m *Manager) AddProc(pid cgroups.Pid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx := context.Background()

	if !m.started {
		return m.ensureStarted(ctx, []uint32{uint32(pid)})
	}
	if err := m.c.attachProcess(ctx, m.unit, m.attachSubcgroup(), int(pid)); err != nil {
		return err
	}
	return m.fs.EnsureCreated()
}

// attachSubcgroup returns the D-Bus subcgroup argument a live
// AttachProcessesToUnit call must target: under Docker-in-Docker on
// v2, the unit's nominal cgroup already holds the outer runtime and
// actual processes belong one level down, under "init".
func (m *Manager) attachSubcgroup() string {
	base, err := m.fs.CgroupPath("")
	if err != nil {
		return ""
	}
	if dindInitPath(m.v2, base) {
		return "/init/"
	}
	return ""
}

// AddThread implements cgroups.Manager. systemd's unit model has no
// notion of per-thread attachment distinct from AddProc, so once the
// unit (and therefore its cgroup.threads/tasks file) exists, threads
// are attached at the filesystem level directly.
func (m *Manager) AddThread(pid cgroups.Pid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx := context.Background()

	if !m.started {
		if err := m.ensureStarted(ctx, []uint32{uint32(pid)}); err != nil {
			return err
		}
		return nil
	}
	if err := m.fs.EnsureCreated(); err != nil {
		return err
	}
	return m.fs.AddThread(pid)
}

// Set implements cgroups.Manager. CPU weight/shares, CPU quota, pids
// limits and, on v2, memory limits are expressed as unit properties; cpuset
// and every controller systemd has no property for (blkio, hugetlb,
// net_cls/net_prio, devices, and memory on a v1 host) fall through to
// the embedded fs manager.
func (m *Manager) Set(res *cgroups.Resources) error {
	if res == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx := context.Background()

	props, err := unitProperties(m.v2, res, m.version)
	if err != nil {
		return err
	}
	if len(props) > 0 {
		if !m.started {
			if err := m.ensureStarted(ctx, nil); err != nil {
				return err
			}
		}
		if err := m.c.setProperties(ctx, m.unit, props); err != nil {
			return err
		}
	}

	fsRes := m.fsFallback(res)
	if fsRes != nil {
		if err := m.fs.Set(fsRes); err != nil {
			return err
		}
	}
	if res.CPU != nil && res.CPU.Cpus != "" {
		if err := m.fs.EnableCpusTopdown(res.CPU.Cpus); err != nil {
			return err
		}
	}
	return nil
}

// fsFallback builds the reduced Resources document carrying only the
// fields the embedded fs manager must apply directly: cpuset (always,
// since AllowedCPUs sets effective affinity but cpuset.cpus still needs
// populating for topdown enablement to have something to write under),
// memory in full on a v1 host (no unit property covers it there), and
// every controller systemd never models at all.
func (m *Manager) fsFallback(res *cgroups.Resources) *cgroups.Resources {
	fallback := &cgroups.Resources{
		BlockIO:        res.BlockIO,
		HugepageLimits: res.HugepageLimits,
		Network:        res.Network,
		Devices:        res.Devices,
	}
	if res.CPU != nil && (res.CPU.Cpus != "" || res.CPU.Mems != "") {
		fallback.CPU = res.CPU
	}
	if !m.v2 {
		fallback.Memory = res.Memory
	}
	if fallback.CPU == nil && fallback.Memory == nil && fallback.BlockIO == nil &&
		len(fallback.HugepageLimits) == 0 && fallback.Network == nil && len(fallback.Devices) == 0 {
		return nil
	}
	return fallback
}

// Pids implements cgroups.Manager by delegating to the embedded fs
// manager; systemd exposes a live "PIDs" count property but not the
// member list.
func (m *Manager) Pids() ([]cgroups.Pid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fs.Pids()
}

// Freeze implements cgroups.Manager via FreezeUnit/ThawUnit. The kernel
// reports a transient Freezing state this backend, like fs, never
// accepts as a request.
func (m *Manager) Freeze(state cgroups.FreezerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx := context.Background()

	if state == cgroups.Freezing {
		return fmt.Errorf("%w: cannot request transient Freezing state directly", cgroups.ErrInvalidArgument)
	}
	if state == cgroups.Frozen {
		return m.c.freeze(ctx, m.unit)
	}
	return m.c.thaw(ctx, m.unit)
}

// Stats implements cgroups.Manager by delegating to the embedded fs
// manager, which reads the same cgroupfs files regardless of which
// backend created the cgroup.
func (m *Manager) Stats() (*stats.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fs.Stats()
}

// Destroy implements cgroups.Manager: the unit is stopped, which
// systemd's own cgroup cleanup then removes, and the stop is best
// effort in the same sense fs.Manager.Destroy is — a cgroup that is
// already gone is not an error.
func (m *Manager) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx := context.Background()
	if err := m.c.stop(ctx, m.unit); err != nil {
		return err
	}
	m.started = false
	m.c.Close()
	return nil
}

// CgroupPath implements cgroups.Manager. Under Docker-in-Docker on a
// v2 host this backend detects that the unit's nominal cgroup is
// already occupied by the outer runtime and resolves to the "init"
// subcgroup actual container processes live under instead.
func (m *Manager) CgroupPath(subsystem string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.fs.CgroupPath(subsystem)
	if err != nil {
		return "", err
	}
	if dindInitPath(m.v2, p) {
		return filepath.Join(p, "init"), nil
	}
	return p, nil
}
