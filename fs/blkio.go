package fs

import (
	"fmt"
	"strconv"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/kata-containers/cgroups-rs/stats"
)

// setBlkio writes the v1 blkio.* files or the v2 io.* equivalents,
// per-device weight and throttle entries included.
func setBlkio(v2 bool, path string, res *specs.LinuxBlockIO) error {
	if res == nil {
		return nil
	}
	if v2 {
		return setBlkioV2(path, res)
	}
	return setBlkioV1(path, res)
}

func setBlkioV1(path string, res *specs.LinuxBlockIO) error {
	if res.Weight != nil {
		if err := writeFile(path, "blkio.weight", fmt.Sprintf("%d", *res.Weight)); err != nil {
			return err
		}
	}
	if res.LeafWeight != nil {
		if err := writeFile(path, "blkio.leaf_weight", fmt.Sprintf("%d", *res.LeafWeight)); err != nil {
			return err
		}
	}
	for _, wd := range res.WeightDevice {
		if wd.Weight != nil {
			line := fmt.Sprintf("%d:%d %d", wd.Major, wd.Minor, *wd.Weight)
			if err := writeFile(path, "blkio.weight_device", line); err != nil {
				return err
			}
		}
		if wd.LeafWeight != nil {
			line := fmt.Sprintf("%d:%d %d", wd.Major, wd.Minor, *wd.LeafWeight)
			if err := writeFile(path, "blkio.leaf_weight_device", line); err != nil {
				return err
			}
		}
	}
	for _, td := range res.ThrottleReadBpsDevice {
		if err := writeThrottleDevice(path, "blkio.throttle.read_bps_device", td); err != nil {
			return err
		}
	}
	for _, td := range res.ThrottleWriteBpsDevice {
		if err := writeThrottleDevice(path, "blkio.throttle.write_bps_device", td); err != nil {
			return err
		}
	}
	for _, td := range res.ThrottleReadIOPSDevice {
		if err := writeThrottleDevice(path, "blkio.throttle.read_iops_device", td); err != nil {
			return err
		}
	}
	for _, td := range res.ThrottleWriteIOPSDevice {
		if err := writeThrottleDevice(path, "blkio.throttle.write_iops_device", td); err != nil {
			return err
		}
	}
	return nil
}

func writeThrottleDevice(path, name string, td specs.LinuxThrottleDevice) error {
	line := fmt.Sprintf("%d:%d %d", td.Major, td.Minor, td.Rate)
	return writeFile(path, name, line)
}

func setBlkioV2(path string, res *specs.LinuxBlockIO) error {
	if res.Weight != nil {
		// v1 weight domain is [10,1000]; v2 io.weight is [1,10000]. A
		// direct value carry-over (rather than a proportional rescale)
		// matches what the kernel's own cgroup v1-compat docs recommend
		// for callers migrating a single absolute weight.
		if err := writeFile(path, "io.weight", fmt.Sprintf("default %d", *res.Weight)); err != nil {
			return err
		}
	}
	for _, wd := range res.WeightDevice {
		if wd.Weight != nil {
			line := fmt.Sprintf("%d:%d %d", wd.Major, wd.Minor, *wd.Weight)
			if err := writeFile(path, "io.weight", line); err != nil {
				return err
			}
		}
	}
	devMax := map[string][]string{}
	addMax := func(major, minor int64, key string, val uint64) {
		id := fmt.Sprintf("%d:%d", major, minor)
		devMax[id] = append(devMax[id], fmt.Sprintf("%s=%d", key, val))
	}
	for _, td := range res.ThrottleReadBpsDevice {
		addMax(td.Major, td.Minor, "rbps", td.Rate)
	}
	for _, td := range res.ThrottleWriteBpsDevice {
		addMax(td.Major, td.Minor, "wbps", td.Rate)
	}
	for _, td := range res.ThrottleReadIOPSDevice {
		addMax(td.Major, td.Minor, "riops", td.Rate)
	}
	for _, td := range res.ThrottleWriteIOPSDevice {
		addMax(td.Major, td.Minor, "wiops", td.Rate)
	}
	for id, kvs := range devMax {
		line := id + " " + strings.Join(kvs, " ")
		if err := writeFile(path, "io.max", line); err != nil {
			return err
		}
	}
	return nil
}

func blkioStats(v2 bool, path string) (stats.BlkioStats, error) {
	if v2 {
		return parseIOStat(path)
	}
	return parseBlkioV1(path)
}

func parseBlkioV1(path string) (stats.BlkioStats, error) {
	var out stats.BlkioStats
	// Only io_service_bytes/io_serviced have a CFQ-independent "throttle."
	// counterpart; the rest (queued, service_time, wait_time, merged,
	// time, sectors) are CFQ-only and have no fallback file to read when
	// the host's blkio controller runs without CFQ accounting.
	fields := []struct {
		file         string
		throttleFile string
		dst          *[]stats.BlkioEntry
	}{
		{"blkio.io_service_bytes_recursive", "blkio.throttle.io_service_bytes", &out.IOServiceBytesRecursive},
		{"blkio.io_serviced_recursive", "blkio.throttle.io_serviced", &out.IOServicedRecursive},
		{"blkio.io_queued_recursive", "", &out.IOQueuedRecursive},
		{"blkio.io_service_time_recursive", "", &out.IOServiceTimeRecursive},
		{"blkio.io_wait_time_recursive", "", &out.IOWaitTimeRecursive},
		{"blkio.io_merged_recursive", "", &out.IOMergedRecursive},
		{"blkio.time_recursive", "", &out.IOTimeRecursive},
		{"blkio.sectors_recursive", "", &out.SectorsRecursive},
	}
	for _, f := range fields {
		lines, err := readKeyedRows(path, f.file)
		if err != nil {
			return out, err
		}
		if len(lines) == 0 && f.throttleFile != "" {
			lines, err = readKeyedRows(path, f.throttleFile)
			if err != nil {
				return out, err
			}
		}
		for _, line := range lines {
			cols := strings.Fields(line)
			major, minor, err := parseMajorMinor(cols[0])
			if err != nil {
				continue
			}
			op := "total"
			valueField := cols[len(cols)-1]
			if len(cols) == 3 {
				op = strings.ToLower(cols[1])
			}
			v, err := strconv.ParseUint(valueField, 10, 64)
			if err != nil {
				continue
			}
			*f.dst = append(*f.dst, stats.BlkioEntry{Major: major, Minor: minor, Op: op, Value: v})
		}
	}
	return out, nil
}

// parseIOStat parses io.stat's "<major>:<minor> rbytes=N wbytes=N rios=N
// wios=N dbytes=N dios=N" rows into the same BlkioEntry rows the v1
// parser produces, fanned out by op.
func parseIOStat(path string) (stats.BlkioStats, error) {
	var out stats.BlkioStats
	lines, err := readKeyedRows(path, "io.stat")
	if err != nil {
		return out, err
	}
	opToField := map[string]*[]stats.BlkioEntry{
		"rbytes": &out.IOServiceBytesRecursive,
		"wbytes": &out.IOServiceBytesRecursive,
		"rios":   &out.IOServicedRecursive,
		"wios":   &out.IOServicedRecursive,
	}
	for _, line := range lines {
		cols := strings.Fields(line)
		if len(cols) < 2 {
			continue
		}
		major, minor, err := parseMajorMinor(cols[0])
		if err != nil {
			continue
		}
		for _, kv := range cols[1:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				continue
			}
			dst, known := opToField[k]
			if !known {
				continue
			}
			val, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				continue
			}
			accessMode := "read"
			if strings.HasPrefix(k, "w") {
				accessMode = "write"
			}
			*dst = append(*dst, stats.BlkioEntry{Major: major, Minor: minor, Op: accessMode, Value: val})
		}
	}
	return out, nil
}
