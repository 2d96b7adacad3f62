package fs

import (
	specs "github.com/opencontainers/runtime-spec/specs-go"

	cgroups "github.com/kata-containers/cgroups-rs"
	"github.com/kata-containers/cgroups-rs/stats"
)

// setPids writes pids.max. The file name and "max" sentinel are shared
// between v1 and v2.
func setPids(path string, res *specs.LinuxPids) error {
	if res == nil {
		return nil
	}
	return writeMax(path, "pids.max", cgroups.MaxValue{IsMax: res.Limit <= 0, Value: res.Limit})
}

func pidsStats(path string) (stats.PidsStats, error) {
	var out stats.PidsStats
	if !fileExists(path, "pids.current") {
		return out, nil
	}
	cur, err := readUint(path, "pids.current")
	if err != nil {
		return out, err
	}
	limit, err := readMax(path, "pids.max")
	if err != nil {
		return out, err
	}
	out.Current = cur
	out.Limit = limit
	return out, nil
}
