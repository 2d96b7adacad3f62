// Package fs is the cgroupfs driver backend: it manipulates cgroup v1 and
// v2 hierarchies directly by reading and writing their pseudo-files,
// grounded on the original implementation's src/manager/fs.rs and on the
// runc-lineage per-subsystem layout (see /DESIGN.md).
package fs

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	cgroups "github.com/kata-containers/cgroups-rs"
)

// writeFile writes value to dir/name, wrapping any failure as a
// CgroupfsError carrying the path and value that triggered it.
func writeFile(dir, name, value string) error {
	path := dir + "/" + name
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return &cgroups.CgroupfsError{Op: cgroups.OpWriteFailed, Path: path, Value: value, Err: err}
	}
	return nil
}

// readFile reads dir/name and returns its trimmed contents.
func readFile(dir, name string) (string, error) {
	path := dir + "/" + name
	b, err := os.ReadFile(path)
	if err != nil {
		return "", &cgroups.CgroupfsError{Op: cgroups.OpReadFailed, Path: path, Err: err}
	}
	return strings.TrimSpace(string(b)), nil
}

// fileExists reports whether dir/name exists.
func fileExists(dir, name string) bool {
	_, err := os.Stat(dir + "/" + name)
	return err == nil
}

func readUint(dir, name string) (uint64, error) {
	s, err := readFile(dir, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, &cgroups.CgroupfsError{Op: cgroups.OpParseError, Path: dir + "/" + name, Value: s, Err: err}
	}
	return v, nil
}

func readInt(dir, name string) (int64, error) {
	s, err := readFile(dir, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &cgroups.CgroupfsError{Op: cgroups.OpParseError, Path: dir + "/" + name, Value: s, Err: err}
	}
	return v, nil
}

// readMax reads a "max"-capable counter file, returning 0 for "max" and
// the parsed value otherwise.
func readMax(dir, name string) (int64, error) {
	s, err := readFile(dir, name)
	if err != nil {
		return 0, err
	}
	if s == "max" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &cgroups.CgroupfsError{Op: cgroups.OpParseError, Path: dir + "/" + name, Value: s, Err: err}
	}
	return v, nil
}

// writeMax writes a cgroups.MaxValue to dir/name as either "max" or its
// decimal value.
func writeMax(dir, name string, v cgroups.MaxValue) error {
	return writeFile(dir, name, v.String())
}

// readKeyedStat parses the common "<key> <value>\n" per-line stat format
// used by cpu.stat, memory.stat, pids, and most *.stat files.
func readKeyedStat(dir, name string) (map[string]uint64, error) {
	path := dir + "/" + name
	f, err := os.Open(path)
	if err != nil {
		return nil, &cgroups.CgroupfsError{Op: cgroups.OpReadFailed, Path: path, Err: err}
	}
	defer f.Close()

	result := make(map[string]uint64)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		result[fields[0]] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, &cgroups.CgroupfsError{Op: cgroups.OpReadFailed, Path: path, Err: err}
	}
	return result, nil
}

// readKeyedRows parses multi-column rows of the form
// "<major>:<minor> <op> <value>" used by blkio's *_recursive files and
// io.stat's "<major>:<minor> rbytes=N wbytes=N ..." form is handled
// separately by parseIOStat in blkio.go.
func readKeyedRows(dir, name string) ([]string, error) {
	path := dir + "/" + name
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &cgroups.CgroupfsError{Op: cgroups.OpReadFailed, Path: path, Err: err}
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &cgroups.CgroupfsError{Op: cgroups.OpReadFailed, Path: path, Err: err}
	}
	return lines, nil
}

func parseMajorMinor(field string) (major, minor uint64, err error) {
	parts := strings.SplitN(field, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed major:minor %q", field)
	}
	major, err1 := strconv.ParseUint(parts[0], 10, 64)
	minor, err2 := strconv.ParseUint(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("malformed major:minor %q", field)
	}
	return major, minor, nil
}
