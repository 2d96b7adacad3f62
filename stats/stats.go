// Package stats holds the statistics value types harvested by both
// driver backends (fs.Manager directly, systemd.Manager by delegation to
// its embedded fs.Manager), grounded on the original implementation's
// src/stats.rs (see /DESIGN.md).
package stats

import "github.com/dustin/go-humanize"

// Stats is the root statistics document returned by Manager.Stats.
// Missing controllers yield zero-value sections, never an error.
type Stats struct {
	CPU     CPUStats
	Memory  MemoryCgroupStats
	Pids    PidsStats
	Blkio   BlkioStats
	Hugetlb HugetlbStats
	Devices DevicesStats
}

// String renders a short human-readable summary, e.g.
// "memory: 512 MiB / 1.0 GiB", or "memory: n/a" when no memory section
// was harvested. Formatting is delegated to github.com/dustin/go-humanize
// rather than hand-rolled, per SPEC_FULL.md's domain-stack wiring for
// this package.
func (s *Stats) String() string {
	mem := "n/a"
	if s.Memory.Memory != nil {
		limit := "max"
		if s.Memory.Memory.Limit > 0 {
			limit = humanize.IBytes(uint64(s.Memory.Memory.Limit))
		}
		mem = humanize.IBytes(s.Memory.Memory.Usage) + " / " + limit
	}
	return "memory: " + mem
}

// CPUStats aggregates the two optional CPU-related sections; either may
// be nil when its backing controller is unavailable.
type CPUStats struct {
	Acct       *CPUAcctStats
	Throttling *CPUThrottlingStats
}

// CPUAcctStats is parsed from cpuacct.stat (user/system lines),
// cpuacct.usage, and cpuacct.usage_percpu.
type CPUAcctStats struct {
	UserUsage   uint64
	SystemUsage uint64
	TotalUsage  uint64
	UsagePercpu []uint64
}

// CPUThrottlingStats is parsed from cpu.stat.
type CPUThrottlingStats struct {
	Periods          uint64
	ThrottledPeriods uint64
	ThrottledTime    uint64
}

// MemoryStats mirrors one memory[.memsw|.kmem] section: usage, peak
// usage, limit, and failure count (on v2, only the memory section's
// FailCount is filled, from the "max" counter of memory.events).
type MemoryStats struct {
	Usage     uint64
	MaxUsage  uint64
	Limit     int64
	FailCount uint64
}

// MemoryCgroupStats is the full memory section: the three MemoryStats
// sub-documents plus the flat block of counters from memory.stat.
type MemoryCgroupStats struct {
	Memory       *MemoryStats
	MemorySwap   *MemoryStats
	KernelMemory *MemoryStats

	// UseHierarchy reflects memory.use_hierarchy; v1 only.
	UseHierarchy bool

	Cache                   uint64
	RSS                     uint64
	RSSHuge                 uint64
	Shmem                   uint64
	MappedFile              uint64
	Dirty                   uint64
	Writeback               uint64
	Swap                    uint64
	Pgpgin                  uint64
	Pgpgout                 uint64
	Pgfault                 uint64
	Pgmajfault              uint64
	InactiveAnon            uint64
	ActiveAnon              uint64
	InactiveFile            uint64
	ActiveFile              uint64
	Unevictable             uint64
	HierarchicalMemoryLimit int64
	HierarchicalMemswLimit  int64
	TotalCache              uint64
	TotalRSS                uint64
	TotalRSSHuge            uint64
	TotalShmem              uint64
	TotalMappedFile         uint64
	TotalDirty              uint64
	TotalWriteback          uint64
	TotalSwap               uint64
	TotalPgpgin             uint64
	TotalPgpgout            uint64
	TotalPgfault            uint64
	TotalPgmajfault         uint64
	TotalInactiveAnon       uint64
	TotalActiveAnon         uint64
	TotalInactiveFile       uint64
	TotalActiveFile         uint64
	TotalUnevictable        uint64
}

// PidsStats is read from pids.current/pids.max.
type PidsStats struct {
	Current uint64
	// Limit is 0 when pids.max reads "max" (unlimited).
	Limit int64
}

// BlkioStats is the per-(major,minor,op) row set described in
// a consistent major/minor/op row shape.
type BlkioStats struct {
	IOServiceBytesRecursive []BlkioEntry
	IOServicedRecursive     []BlkioEntry
	IOQueuedRecursive       []BlkioEntry
	IOServiceTimeRecursive  []BlkioEntry
	IOWaitTimeRecursive     []BlkioEntry
	IOMergedRecursive       []BlkioEntry
	IOTimeRecursive         []BlkioEntry
	SectorsRecursive        []BlkioEntry
}

// BlkioEntry is one (major, minor, op) row, op being one of
// read/write/sync/async/total (v1) or read/write (v2 io.stat, where
// rbytes/wbytes fill IOServiceBytesRecursive and rios/wios fill
// IOServicedRecursive). The v2 discard counters (dbytes, dios) are not
// reported.
type BlkioEntry struct {
	Major uint64
	Minor uint64
	Op    string
	Value uint64
}

// HugetlbStats maps supported page size (e.g. "2MB") to its usage
// counters.
type HugetlbStats map[string]HugetlbEntry

// HugetlbEntry is one page size's usage/max_usage/fail_cnt triple.
type HugetlbEntry struct {
	Usage     uint64
	MaxUsage  uint64
	FailCount uint64
}

// DevicesStats lists the device-cgroup allow-list entries currently in
// effect.
type DevicesStats struct {
	List []DeviceEntry
}

// DeviceEntry is one devices.list row.
type DeviceEntry struct {
	Type   string
	Major  int64
	Minor  int64
	Access string
}
