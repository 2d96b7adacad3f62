package fs

import (
	cgroups "github.com/kata-containers/cgroups-rs"
)

// Set implements cgroups.Manager. Controllers are written in a fixed
// order — cpuset before cpu, memory before the rest — so that a cpuset
// change lands before a cpu.max/cpu.shares write that could otherwise be
// rejected by a not-yet-populated cpuset, and so memory failures surface
// before the cheaper writes that follow it in most callers' resource
// documents. A controller absent from this host is skipped without
// error; partial host topologies (no hugetlb, no net_cls, ...) are the
// common case, not an error condition.
func (m *Manager) Set(res *cgroups.Resources) error {
	if res == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createCgroups(); err != nil {
		return err
	}
	v2 := m.isV2()

	if p, ok := m.path("cpuset"); ok && res.CPU != nil {
		if err := setCPUSet(p, res.CPU); err != nil {
			return err
		}
	}
	if p, ok := m.path("cpu"); ok && res.CPU != nil {
		if err := setCPU(v2, p, res.CPU); err != nil {
			return err
		}
	}
	if p, ok := m.path("memory"); ok && res.Memory != nil {
		if err := setMemory(v2, p, res.Memory); err != nil {
			return err
		}
	}
	if p, ok := m.path("pids"); ok && res.Pids != nil {
		if err := setPids(p, res.Pids); err != nil {
			return err
		}
	}
	if p, ok := m.path("blkio"); ok && res.BlockIO != nil {
		if err := setBlkio(v2, p, res.BlockIO); err != nil {
			return err
		}
	}
	if p, ok := m.path("hugetlb"); ok && len(res.HugepageLimits) > 0 {
		if err := setHugepages(v2, p, res.HugepageLimits); err != nil {
			return err
		}
	}
	if p, ok := m.path("net_cls"); ok && !v2 && res.Network != nil {
		if err := setNetCls(p, res.Network); err != nil {
			return err
		}
	}
	if p, ok := m.path("net_prio"); ok && !v2 && res.Network != nil {
		if err := setNetPrio(p, res.Network); err != nil {
			return err
		}
	}
	if p, ok := m.path("devices"); ok && len(res.Devices) > 0 {
		if err := setDevices(p, res.Devices); err != nil {
			return err
		}
	}
	return nil
}
