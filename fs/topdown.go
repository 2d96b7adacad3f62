package fs

import (
	"path/filepath"
	"strings"

	cgroups "github.com/kata-containers/cgroups-rs"
)

// EnableCpusTopdown populates cpuset.cpus along every ancestor directory
// between this cgroup's cpuset controller root and the cgroup itself
// (exclusive of both ends), writing root-to-leaf. The kernel rejects a
// cpuset.cpus write that names a CPU absent from the writing cgroup's
// parent, so for CPU hotplug to take effect at this cgroup the same CPU
// list must already be populated along the whole ancestor chain; a
// direct write to just this cgroup's own cpuset.cpus would fail if any
// ancestor was created without ever setting one.
func (m *Manager) EnableCpusTopdown(cpus string) error {
	if cpus == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	root, ok := m.subsystemMount("cpuset")
	if !ok {
		return cgroups.ErrSubsystemEmpty
	}
	target, ok := m.path("cpuset")
	if !ok {
		return cgroups.ErrSubsystemEmpty
	}

	rel, err := filepath.Rel(root, target)
	if err != nil {
		return &cgroups.CgroupfsError{Op: cgroups.OpInvalidPath, Path: target, Err: err}
	}
	if rel == "." {
		return nil
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")

	cur := root
	for i := 0; i < len(segments)-1; i++ {
		cur = filepath.Join(cur, segments[i])
		if err := writeFile(cur, "cpuset.cpus", cpus); err != nil {
			return err
		}
	}
	return nil
}
