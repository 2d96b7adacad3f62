package cgroups

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// unifiedMountpoint is the conventional (and, in practice, only) mount
// point for the cgroup v2 unified hierarchy.
const unifiedMountpoint = "/sys/fs/cgroup"

// knownSubsystems is the set of cgroup v1 subsystem names this library
// recognizes in /proc/self/mountinfo super-options. Subsystems outside
// this set are ignored rather than rejected, since the host may mount
// controllers this library does not model (e.g. perf_event, rdma).
var knownSubsystems = map[string]bool{
	"cpu":        true,
	"cpuacct":    true,
	"cpuset":     true,
	"memory":     true,
	"pids":       true,
	"blkio":      true,
	"hugetlb":    true,
	"devices":    true,
	"freezer":    true,
	"net_cls":    true,
	"net_prio":   true,
	"perf_event": true,
}

// Topology is an immutable, process-lifetime snapshot of the host's
// cgroup layout: which version is in play, and where each subsystem's
// hierarchy is mounted and rooted for the calling process.
type Topology struct {
	// IsV2 is true when the unified hierarchy is mounted as cgroup2 at
	// unifiedMountpoint.
	IsV2 bool

	// Subsystems maps subsystem name to the relative path this process
	// belongs to under that subsystem's hierarchy (v1), or to a single
	// empty-string-keyed entry under the unified hierarchy (v2).
	Subsystems map[string]string

	// Mounts maps subsystem name to its absolute mountpoint (v1), or is
	// unified to a single mountpoint entry for v2.
	Mounts map[string]string
}

// ProbeTopology discovers the host's cgroup topology by parsing
// /proc/self/cgroup and /proc/self/mountinfo.
func ProbeTopology() (*Topology, error) {
	subsystems, err := parseSelfCgroup("/proc/self/cgroup")
	if err != nil {
		return nil, err
	}

	mounts, isV2, err := parseMountinfo("/proc/self/mountinfo")
	if err != nil {
		return nil, err
	}

	if isV2 {
		return &Topology{
			IsV2:       true,
			Subsystems: map[string]string{"": subsystems[""]},
			Mounts:     map[string]string{"": unifiedMountpoint},
		}, nil
	}

	return &Topology{
		IsV2:       false,
		Subsystems: subsystems,
		Mounts:     mounts,
	}, nil
}

// parseSelfCgroup parses lines of the form "<hid>:<subsys-list>:<path>",
// splitting the comma-separated subsystem list and recording path per
// subsystem name. Lines with other than three colon-delimited fields are
// silently skipped. On cgroup v2 hosts the kernel emits a single
// "0::<path>" line; that path is recorded under the empty-string key.
func parseSelfCgroup(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &CgroupfsError{Op: OpReadFailed, Path: path, Err: err}
	}
	defer f.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), ":", 3)
		if len(fields) != 3 {
			continue
		}
		names, cgPath := fields[1], fields[2]
		if names == "" {
			result[""] = cgPath
			continue
		}
		for _, name := range strings.Split(names, ",") {
			result[name] = cgPath
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &CgroupfsError{Op: OpReadFailed, Path: path, Err: err}
	}
	return result, nil
}

// parseMountinfo parses /proc/self/mountinfo looking for cgroup and
// cgroup2 entries. Each line is bisected by " - ";
// the right-hand side has the form "<fstype> <source> <super_opts>".
// Only the left-hand side's field 5 (1-indexed, the mount point) is
// consulted for recording a subsystem's mountpoint.
func parseMountinfo(path string) (mounts map[string]string, isV2 bool, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		return nil, false, &CgroupfsError{Op: OpReadFailed, Path: path, Err: openErr}
	}
	defer f.Close()

	mounts = make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		left, right, ok := strings.Cut(line, " - ")
		if !ok {
			continue
		}
		leftFields := strings.Fields(left)
		rightFields := strings.Fields(right)
		if len(leftFields) < 5 || len(rightFields) < 3 {
			continue
		}
		fstype := rightFields[0]
		mountPoint := leftFields[4]
		superOpts := rightFields[2]

		switch fstype {
		case "cgroup2":
			if mountPoint == unifiedMountpoint {
				isV2 = true
			}
		case "cgroup":
			for _, opt := range strings.Split(superOpts, ",") {
				if knownSubsystems[opt] {
					mounts[opt] = mountPoint
				}
			}
		default:
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, false, &CgroupfsError{Op: OpReadFailed, Path: path, Err: err}
	}
	return mounts, isV2, nil
}

// SubsystemPath returns the absolute path for the given subsystem,
// failing with ErrSubsystemEmpty if the subsystem is missing from either
// the Subsystems or Mounts maps.
func (t *Topology) SubsystemPath(subsystem string) (string, error) {
	key := subsystem
	if t.IsV2 {
		key = ""
	}
	relPath, ok := t.Subsystems[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSubsystemEmpty, subsystem)
	}
	mount, ok := t.Mounts[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSubsystemEmpty, subsystem)
	}
	return mount + relPath, nil
}
