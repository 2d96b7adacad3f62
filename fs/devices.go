package fs

import (
	"fmt"
	"strconv"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	cgroups "github.com/kata-containers/cgroups-rs"
	"github.com/kata-containers/cgroups-rs/stats"
)

// setDevices writes devices.allow/devices.deny entries using the v1 text
// protocol. An entry is written only where the target file exists; cgroup
// v2 hosts enforce device access through an attached eBPF program and
// carry no such files, so on v2 the rules are validated but not applied.
func setDevices(path string, devices []specs.LinuxDeviceCgroup) error {
	for _, d := range devices {
		line, err := formatDeviceRule(d)
		if err != nil {
			return err
		}
		name := "devices.deny"
		if d.Allow {
			name = "devices.allow"
		}
		if !fileExists(path, name) {
			continue
		}
		if err := writeFile(path, name, line); err != nil {
			return err
		}
	}
	return nil
}

func formatDeviceRule(d specs.LinuxDeviceCgroup) (string, error) {
	typ := d.Type
	if typ == "" {
		typ = "a"
	}
	if typ != "a" && typ != "b" && typ != "c" && typ != "p" {
		return "", fmt.Errorf("%w: unknown device type %q", cgroups.ErrInvalidLinuxResource, d.Type)
	}
	major := "*"
	if d.Major != nil {
		major = strconv.FormatInt(*d.Major, 10)
	}
	minor := "*"
	if d.Minor != nil {
		minor = strconv.FormatInt(*d.Minor, 10)
	}
	access := filterAccess(d.Access)
	if access == "" {
		access = "rwm"
	}
	return fmt.Sprintf("%s %s:%s %s", typ, major, minor, access), nil
}

// filterAccess keeps only the r/w/m characters of an access string,
// dropping anything else a caller may have passed rather than
// rejecting the whole rule over it.
func filterAccess(access string) string {
	var b strings.Builder
	for _, r := range access {
		if r == 'r' || r == 'w' || r == 'm' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func devicesStats(path string) (stats.DevicesStats, error) {
	var out stats.DevicesStats
	lines, err := readKeyedRows(path, "devices.list")
	if err != nil {
		return out, err
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		major, minor := int64(-1), int64(-1)
		majMin := strings.SplitN(fields[1], ":", 2)
		if len(majMin) == 2 {
			if majMin[0] != "*" {
				if v, err := strconv.ParseInt(majMin[0], 10, 64); err == nil {
					major = v
				}
			}
			if majMin[1] != "*" {
				if v, err := strconv.ParseInt(majMin[1], 10, 64); err == nil {
					minor = v
				}
			}
		}
		out.List = append(out.List, stats.DeviceEntry{Type: fields[0], Major: major, Minor: minor, Access: fields[2]})
	}
	return out, nil
}
