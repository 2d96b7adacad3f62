package fs

import (
	"fmt"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/kata-containers/cgroups-rs/conv"
	"github.com/kata-containers/cgroups-rs/stats"
)

// setCPU writes the CPU bandwidth and weight fields of res to path. v2
// collapses cfs_quota_us/cfs_period_us into a single "cpu.max" line and
// shares into "cpu.weight"; v1 writes each field to its own file
// (shares, cfs period and quota, rt period and runtime).
func setCPU(v2 bool, path string, res *specs.LinuxCPU) error {
	if res == nil {
		return nil
	}
	if v2 {
		if res.Shares != nil {
			if err := writeFile(path, "cpu.weight", fmt.Sprintf("%d", conv.SharesToWeight(*res.Shares))); err != nil {
				return err
			}
		}
		if res.Quota != nil || res.Period != nil {
			quota := "max"
			if res.Quota != nil && *res.Quota > 0 {
				quota = fmt.Sprintf("%d", *res.Quota)
			}
			period := uint64(100000)
			if res.Period != nil {
				period = *res.Period
			}
			if err := writeFile(path, "cpu.max", fmt.Sprintf("%s %d", quota, period)); err != nil {
				return err
			}
		}
		return nil
	}

	if res.Shares != nil {
		if err := writeFile(path, "cpu.shares", fmt.Sprintf("%d", *res.Shares)); err != nil {
			return err
		}
	}
	if res.Period != nil {
		if err := writeFile(path, "cpu.cfs_period_us", fmt.Sprintf("%d", *res.Period)); err != nil {
			return err
		}
	}
	if res.Quota != nil {
		if err := writeFile(path, "cpu.cfs_quota_us", fmt.Sprintf("%d", *res.Quota)); err != nil {
			return err
		}
	}
	if res.RealtimePeriod != nil {
		if err := writeFile(path, "cpu.rt_period_us", fmt.Sprintf("%d", *res.RealtimePeriod)); err != nil {
			return err
		}
	}
	if res.RealtimeRuntime != nil {
		if err := writeFile(path, "cpu.rt_runtime_us", fmt.Sprintf("%d", *res.RealtimeRuntime)); err != nil {
			return err
		}
	}
	return nil
}

// cpuThrottlingStats parses cpu.stat, whose key set (nr_periods,
// nr_throttled, throttled_time/throttled_usec) is present under the same
// filename on both hierarchy versions.
func cpuThrottlingStats(path string) (*stats.CPUThrottlingStats, error) {
	if !fileExists(path, "cpu.stat") {
		return nil, nil
	}
	kv, err := readKeyedStat(path, "cpu.stat")
	if err != nil {
		return nil, err
	}
	return &stats.CPUThrottlingStats{
		Periods:          kv["nr_periods"],
		ThrottledPeriods: kv["nr_throttled"],
		ThrottledTime:    kv["throttled_time"] + kv["throttled_usec"],
	}, nil
}

// cpuAcctStats reads v1's cpuacct.stat/cpuacct.usage/cpuacct.usage_percpu
// when the cpuacct controller is mounted, or synthesizes totals from
// cpu.stat's usage_usec counters on v2, where accounting merged into the
// cpu controller.
func cpuAcctStats(v2 bool, acctPath, cpuPath string) (*stats.CPUAcctStats, error) {
	if !v2 {
		if acctPath == "" || !fileExists(acctPath, "cpuacct.stat") {
			return nil, nil
		}
		kv, err := readKeyedStat(acctPath, "cpuacct.stat")
		if err != nil {
			return nil, err
		}
		total, err := readUint(acctPath, "cpuacct.usage")
		if err != nil {
			total = kv["user"] + kv["system"]
		}
		var percpu []uint64
		if line, err := readFile(acctPath, "cpuacct.usage_percpu"); err == nil {
			percpu = splitUint64Fields(line)
		}
		return &stats.CPUAcctStats{
			UserUsage:   kv["user"],
			SystemUsage: kv["system"],
			TotalUsage:  total,
			UsagePercpu: percpu,
		}, nil
	}

	if !fileExists(cpuPath, "cpu.stat") {
		return nil, nil
	}
	kv, err := readKeyedStat(cpuPath, "cpu.stat")
	if err != nil {
		return nil, err
	}
	if _, ok := kv["usage_usec"]; !ok {
		return nil, nil
	}
	return &stats.CPUAcctStats{
		UserUsage:   kv["user_usec"],
		SystemUsage: kv["system_usec"],
		TotalUsage:  kv["usage_usec"],
	}, nil
}

func splitUint64Fields(line string) []uint64 {
	var out []uint64
	var cur uint64
	inNum := false
	for i := 0; i <= len(line); i++ {
		if i < len(line) && line[i] >= '0' && line[i] <= '9' {
			cur = cur*10 + uint64(line[i]-'0')
			inNum = true
			continue
		}
		if inNum {
			out = append(out, cur)
			cur = 0
			inNum = false
		}
	}
	return out
}
