package fs

import (
	"fmt"
	"math"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	cgroups "github.com/kata-containers/cgroups-rs"
	"github.com/kata-containers/cgroups-rs/conv"
	"github.com/kata-containers/cgroups-rs/stats"
)

// setMemory dispatches to the v1 or v2 writer. Both obey the kernel
// invariant that the memsw (v1) / swap (v2) limit must never be below
// the memory limit at any point a write lands, which constrains the
// order two related writes must happen in.
func setMemory(v2 bool, path string, res *specs.LinuxMemory) error {
	if res == nil {
		return nil
	}
	if v2 {
		return setMemoryV2(path, res)
	}
	return setMemoryV1(path, res)
}

// setMemoryV1 writes memory.limit_in_bytes and memory.memsw.limit_in_bytes.
// When the request raises the memory limit (or sets it unlimited), memsw
// is written first so the kernel's limit<=memsw check never rejects the
// memory write; when the request lowers it, memory is written first so
// the check never rejects the memsw write.
func setMemoryV1(path string, res *specs.LinuxMemory) error {
	haveLimit := res.Limit != nil
	haveSwap := res.Swap != nil

	if haveLimit && haveSwap {
		// A freshly created cgroup's memory.limit_in_bytes reads back as
		// the kernel's unlimited sentinel, not zero; a missing or
		// unparsable file is treated the same way so the first Set on a
		// new cgroup is always classified as contracting.
		curLimit, err := readInt(path, "memory.limit_in_bytes")
		if err != nil {
			curLimit = math.MaxInt64
		}
		expanding := *res.Limit == -1 || *res.Limit > curLimit
		if expanding {
			if err := writeFile(path, "memory.memsw.limit_in_bytes", fmt.Sprintf("%d", *res.Swap)); err != nil {
				return err
			}
			if err := writeFile(path, "memory.limit_in_bytes", fmt.Sprintf("%d", *res.Limit)); err != nil {
				return err
			}
		} else {
			if err := writeFile(path, "memory.limit_in_bytes", fmt.Sprintf("%d", *res.Limit)); err != nil {
				return err
			}
			if err := writeFile(path, "memory.memsw.limit_in_bytes", fmt.Sprintf("%d", *res.Swap)); err != nil {
				return err
			}
		}
	} else if haveLimit {
		if err := writeFile(path, "memory.limit_in_bytes", fmt.Sprintf("%d", *res.Limit)); err != nil {
			return err
		}
	} else if haveSwap {
		if err := writeFile(path, "memory.memsw.limit_in_bytes", fmt.Sprintf("%d", *res.Swap)); err != nil {
			return err
		}
	}

	if res.Reservation != nil {
		if err := writeFile(path, "memory.soft_limit_in_bytes", fmt.Sprintf("%d", *res.Reservation)); err != nil {
			return err
		}
	}
	if res.Swappiness != nil {
		if *res.Swappiness > 100 {
			return fmt.Errorf("%w: swappiness %d exceeds 100", cgroups.ErrInvalidLinuxResource, *res.Swappiness)
		}
		if err := writeFile(path, "memory.swappiness", fmt.Sprintf("%d", *res.Swappiness)); err != nil {
			return err
		}
	}
	if res.DisableOOMKiller != nil {
		v := "0"
		if *res.DisableOOMKiller {
			v = "1"
		}
		if err := writeFile(path, "memory.oom_control", v); err != nil {
			return err
		}
	}
	return nil
}

// setMemoryV2 writes memory.swap.max and memory.max, deriving the split
// swap value from the OCI combined limit via conv.MemorySwapToV2. Swap
// is written before the memory limit, matching the original
// implementation's write order. Before either write, a limit at or
// below the cgroup's current usage is rejected: the kernel would accept
// such a write and immediately start reclaiming/OOM-killing against it,
// which is never what a resource update caller wants.
func setMemoryV2(path string, res *specs.LinuxMemory) error {
	var usage uint64
	haveUsage := false
	currentUsage := func() (uint64, error) {
		if !haveUsage {
			if !fileExists(path, "memory.current") {
				haveUsage = true
				return 0, nil
			}
			u, err := readUint(path, "memory.current")
			if err != nil {
				return 0, err
			}
			usage, haveUsage = u, true
		}
		return usage, nil
	}

	if res.Swap != nil && *res.Swap > 0 {
		u, err := currentUsage()
		if err != nil {
			return err
		}
		if uint64(*res.Swap) <= u {
			return fmt.Errorf("%w: memory+swap limit %d at or below current usage %d", cgroups.ErrInvalidLinuxResource, *res.Swap, u)
		}
	}
	if res.Limit != nil && *res.Limit > 0 {
		u, err := currentUsage()
		if err != nil {
			return err
		}
		if uint64(*res.Limit) <= u {
			return fmt.Errorf("%w: memory limit %d at or below current usage %d", cgroups.ErrInvalidLinuxResource, *res.Limit, u)
		}
	}

	if res.Swap != nil {
		mem := int64(0)
		if res.Limit != nil {
			mem = *res.Limit
		}
		swap, err := conv.MemorySwapToV2(*res.Swap, mem)
		if err != nil {
			return err
		}
		if err := writeMaxInt(path, "memory.swap.max", swap); err != nil {
			return err
		}
	}
	if res.Limit != nil {
		if err := writeMaxInt(path, "memory.max", *res.Limit); err != nil {
			return err
		}
	}
	if res.Reservation != nil {
		if err := writeMaxInt(path, "memory.low", *res.Reservation); err != nil {
			return err
		}
	}
	if res.Swappiness != nil {
		if *res.Swappiness > 100 {
			return fmt.Errorf("%w: swappiness %d exceeds 100", cgroups.ErrInvalidLinuxResource, *res.Swappiness)
		}
		// memory.swappiness was removed from the default v2 hierarchy;
		// write it only where the host carries it (e.g. under a unified
		// cgroup mounted with the legacy swap accounting shim).
		if fileExists(path, "memory.swappiness") {
			if err := writeFile(path, "memory.swappiness", fmt.Sprintf("%d", *res.Swappiness)); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeMaxInt(path, name string, v int64) error {
	if v < 0 {
		return writeFile(path, name, "max")
	}
	return writeFile(path, name, fmt.Sprintf("%d", v))
}

// memoryStats harvests memory.stat plus the usage/limit/failcnt triples
// for memory, memsw (v1 only), and kmem (v1 only).
func memoryStats(v2 bool, path string) (stats.MemoryCgroupStats, error) {
	var out stats.MemoryCgroupStats

	statName := "memory.stat"
	if !fileExists(path, statName) {
		return out, nil
	}
	kv, err := readKeyedStat(path, statName)
	if err != nil {
		return out, err
	}
	out.Cache = kv["cache"]
	out.RSS = kv["rss"]
	out.RSSHuge = kv["rss_huge"]
	out.Shmem = kv["shmem"]
	out.MappedFile = kv["mapped_file"]
	out.Dirty = kv["dirty"]
	out.Writeback = kv["writeback"]
	out.Swap = kv["swap"]
	out.Pgpgin = kv["pgpgin"]
	out.Pgpgout = kv["pgpgout"]
	out.Pgfault = kv["pgfault"]
	out.Pgmajfault = kv["pgmajfault"]
	out.InactiveAnon = kv["inactive_anon"]
	out.ActiveAnon = kv["active_anon"]
	out.InactiveFile = kv["inactive_file"]
	out.ActiveFile = kv["active_file"]
	out.Unevictable = kv["unevictable"]
	out.TotalCache = kv["total_cache"]
	out.TotalRSS = kv["total_rss"]
	out.TotalRSSHuge = kv["total_rss_huge"]
	out.TotalShmem = kv["total_shmem"]
	out.TotalMappedFile = kv["total_mapped_file"]
	out.TotalDirty = kv["total_dirty"]
	out.TotalWriteback = kv["total_writeback"]
	out.TotalSwap = kv["total_swap"]
	out.TotalPgpgin = kv["total_pgpgin"]
	out.TotalPgpgout = kv["total_pgpgout"]
	out.TotalPgfault = kv["total_pgfault"]
	out.TotalPgmajfault = kv["total_pgmajfault"]
	out.TotalInactiveAnon = kv["total_inactive_anon"]
	out.TotalActiveAnon = kv["total_active_anon"]
	out.TotalInactiveFile = kv["total_inactive_file"]
	out.TotalActiveFile = kv["total_active_file"]
	out.TotalUnevictable = kv["total_unevictable"]
	if v, ok := kv["hierarchical_memory_limit"]; ok {
		out.HierarchicalMemoryLimit = int64(v)
	}
	if v, ok := kv["hierarchical_memsw_limit"]; ok {
		out.HierarchicalMemswLimit = int64(v)
	}

	if v2 {
		out.Memory = memoryTriple(path, "memory.current", "", "memory.max")
		out.MemorySwap = memoryTriple(path, "memory.swap.current", "", "memory.swap.max")
		if fileExists(path, "memory.events") {
			if ev, err := readKeyedStat(path, "memory.events"); err == nil {
				if out.Memory != nil {
					out.Memory.FailCount = ev["max"]
				}
			}
		}
		return out, nil
	}

	if use, err := readUint(path, "memory.use_hierarchy"); err == nil {
		out.UseHierarchy = use != 0
	}
	out.Memory = memoryTripleV1(path, "memory.usage_in_bytes", "memory.max_usage_in_bytes", "memory.limit_in_bytes", "memory.failcnt")
	out.MemorySwap = memoryTripleV1(path, "memory.memsw.usage_in_bytes", "memory.memsw.max_usage_in_bytes", "memory.memsw.limit_in_bytes", "memory.memsw.failcnt")
	out.KernelMemory = memoryTripleV1(path, "memory.kmem.usage_in_bytes", "memory.kmem.max_usage_in_bytes", "memory.kmem.limit_in_bytes", "memory.kmem.failcnt")
	return out, nil
}

func memoryTriple(path, usageFile, maxUsageFile, limitFile string) *stats.MemoryStats {
	if !fileExists(path, usageFile) {
		return nil
	}
	usage, err := readUint(path, usageFile)
	if err != nil {
		return nil
	}
	limit, _ := readMax(path, limitFile)
	var maxUsage uint64
	if maxUsageFile != "" {
		maxUsage, _ = readUint(path, maxUsageFile)
	}
	return &stats.MemoryStats{Usage: usage, MaxUsage: maxUsage, Limit: limit}
}

func memoryTripleV1(path, usageFile, maxUsageFile, limitFile, failcntFile string) *stats.MemoryStats {
	m := memoryTriple(path, usageFile, maxUsageFile, limitFile)
	if m == nil {
		return nil
	}
	if fc, err := readUint(path, failcntFile); err == nil {
		m.FailCount = fc
	}
	return m
}
