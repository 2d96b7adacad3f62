package fs

import (
	"github.com/kata-containers/cgroups-rs/stats"
)

// collectStats harvests every section this host's topology supports,
// leaving a section at its zero value when its controller is absent.
func (m *Manager) collectStats() (*stats.Stats, error) {
	v2 := m.isV2()
	out := &stats.Stats{}

	if p, ok := m.path("cpu"); ok {
		throttling, err := cpuThrottlingStats(p)
		if err != nil {
			return nil, err
		}
		out.CPU.Throttling = throttling

		acctPath, _ := m.path("cpuacct")
		acct, err := cpuAcctStats(v2, acctPath, p)
		if err != nil {
			return nil, err
		}
		out.CPU.Acct = acct
	}

	if p, ok := m.path("memory"); ok {
		mem, err := memoryStats(v2, p)
		if err != nil {
			return nil, err
		}
		out.Memory = mem
	}

	if p, ok := m.path("pids"); ok {
		pids, err := pidsStats(p)
		if err != nil {
			return nil, err
		}
		out.Pids = pids
	}

	if p, ok := m.path("blkio"); ok {
		blkio, err := blkioStats(v2, p)
		if err != nil {
			return nil, err
		}
		out.Blkio = blkio
	}

	if p, ok := m.path("hugetlb"); ok {
		hp, err := hugetlbStats(v2, p)
		if err != nil {
			return nil, err
		}
		out.Hugetlb = hp
	}

	if p, ok := m.path("devices"); ok {
		dev, err := devicesStats(p)
		if err != nil {
			return nil, err
		}
		out.Devices = dev
	}

	return out, nil
}
