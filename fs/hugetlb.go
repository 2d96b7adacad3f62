package fs

import (
	"fmt"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	cgroups "github.com/kata-containers/cgroups-rs"
	"github.com/kata-containers/cgroups-rs/stats"
)

// setHugepages writes hugetlb.<pagesize>.limit_in_bytes (v1) or
// hugetlb.<pagesize>.max (v2) for each requested page size.
func setHugepages(v2 bool, path string, limits []specs.LinuxHugepageLimit) error {
	for _, l := range limits {
		if l.Pagesize == "" {
			continue
		}
		name := fmt.Sprintf("hugetlb.%s.limit_in_bytes", l.Pagesize)
		if v2 {
			name = fmt.Sprintf("hugetlb.%s.max", l.Pagesize)
		}
		if !fileExists(path, name) {
			continue
		}
		if err := writeMax(path, name, cgroups.MaxValue{Value: int64(l.Limit)}); err != nil {
			return err
		}
	}
	return nil
}

var hugepageSizes = []string{"2MB", "1GB", "64KB", "32MB", "512MB", "2GB", "16GB"}

func hugetlbStats(v2 bool, path string) (stats.HugetlbStats, error) {
	out := make(stats.HugetlbStats)
	for _, size := range hugepageSizes {
		usageFile := fmt.Sprintf("hugetlb.%s.usage_in_bytes", size)
		maxUsageFile := fmt.Sprintf("hugetlb.%s.max_usage_in_bytes", size)
		failcntFile := fmt.Sprintf("hugetlb.%s.failcnt", size)
		if v2 {
			usageFile = fmt.Sprintf("hugetlb.%s.current", size)
			maxUsageFile = ""
			failcntFile = fmt.Sprintf("hugetlb.%s.events", size)
		}
		if !fileExists(path, usageFile) {
			continue
		}
		usage, err := readUint(path, usageFile)
		if err != nil {
			continue
		}
		var maxUsage uint64
		if maxUsageFile != "" {
			maxUsage, _ = readUint(path, maxUsageFile)
		}
		var failcnt uint64
		if v2 {
			if ev, err := readKeyedStat(path, failcntFile); err == nil {
				failcnt = ev["max"]
			}
		} else {
			failcnt, _ = readUint(path, failcntFile)
		}
		out[size] = stats.HugetlbEntry{Usage: usage, MaxUsage: maxUsage, FailCount: failcnt}
	}
	return out, nil
}
