package systemd

import (
	"strconv"
	"strings"

	cgroups "github.com/kata-containers/cgroups-rs"
)

// IsSliceUnit reports whether name is a systemd slice unit name.
func IsSliceUnit(name string) bool {
	return strings.HasSuffix(name, sliceSuffix)
}

// IsScopeUnit reports whether name is a systemd scope unit name.
func IsScopeUnit(name string) bool {
	return strings.HasSuffix(name, scopeSuffix)
}

// ExpandSlice turns a slice name such as "test-a-b.slice" into the
// root-to-leaf chain of ancestor slice names: "test.slice",
// "test-a.slice", "test-a-b.slice". systemd derives a slice's parent
// from its name by stripping one hyphen-delimited component at a time,
// and places each slice's cgroup under its parent's, so joining this
// chain yields the slice's cgroupfs path (see basePath). A name with an
// empty hyphen-delimited component is rejected.
func ExpandSlice(slice string) ([]string, error) {
	if slice == "" || slice == "-.slice" {
		return nil, nil
	}
	if !IsSliceUnit(slice) {
		return nil, &cgroups.SystemdCgroupError{Reason: "invalid slice name " + strconv.Quote(slice), Err: cgroups.ErrInvalidArgument}
	}
	if slice == sliceSuffix {
		return []string{slice}, nil
	}

	trimmed := strings.TrimSuffix(slice, sliceSuffix)
	parts := strings.Split(trimmed, "-")
	for _, p := range parts {
		if p == "" {
			return nil, &cgroups.SystemdCgroupError{Reason: "invalid slice name " + strconv.Quote(slice), Err: cgroups.ErrInvalidArgument}
		}
	}

	out := make([]string, 0, len(parts))
	var prefix string
	for i, p := range parts {
		if i == 0 {
			prefix = p
		} else {
			prefix = prefix + "-" + p
		}
		out = append(out, prefix+sliceSuffix)
	}
	return out, nil
}

// NewUnitName derives the transient unit name for a cgroup: the name
// stays as-is if it already names a slice, and otherwise becomes a
// scope named "<prefix>-<name>.scope" ("<name>.scope" when prefix is
// empty).
func NewUnitName(prefix, name string) string {
	if IsSliceUnit(name) {
		return name
	}
	if prefix == "" {
		return name + scopeSuffix
	}
	return prefix + "-" + name + scopeSuffix
}

// IsSystemdCgroup reports whether path is an OCI runtime-supplied
// systemd cgroups path: exactly three colon-separated fields, the
// first of which names a slice, e.g.
// "system.slice:docker:6b4c4a4d0cc2a12c529dcb13a2b8e438dfb3b2a6af34d548d7d".
func IsSystemdCgroup(path string) bool {
	parts := strings.Split(path, ":")
	return len(parts) == 3 && IsSliceUnit(parts[0])
}

// ParseSliceAndUnit splits a runtime-supplied systemd cgroup path of the
// form "<slice>:<prefix>:<name>" into its slice, scope/unit prefix, and
// unit name. When path does not carry the colon-delimited systemd form,
// it is treated as a bare unit name parented under DefaultSlice.
func ParseSliceAndUnit(path string) (slice, prefix, name string, err error) {
	parts := strings.Split(path, ":")
	switch len(parts) {
	case 3:
		slice, prefix, name = parts[0], parts[1], parts[2]
	case 1:
		slice, prefix, name = DefaultSlice, "", parts[0]
	default:
		return "", "", "", &cgroups.SystemdCgroupError{Reason: "malformed systemd cgroup path " + strconv.Quote(path), Err: cgroups.ErrInvalidArgument}
	}
	if slice == "" {
		slice = DefaultSlice
	}
	if !IsSliceUnit(slice) {
		return "", "", "", &cgroups.SystemdCgroupError{Reason: "invalid slice name " + strconv.Quote(slice), Err: cgroups.ErrInvalidArgument}
	}
	if name == "" {
		return "", "", "", &cgroups.SystemdCgroupError{Reason: "empty unit name in " + strconv.Quote(path), Err: cgroups.ErrInvalidArgument}
	}
	return slice, prefix, name, nil
}
