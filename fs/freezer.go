package fs

import (
	"fmt"

	cgroups "github.com/kata-containers/cgroups-rs"
)

// setFreezerState writes freezer.state (v1) or cgroup.freeze (v2). Thawed
// is expressed as "THAWED"/"0"; Frozen as "FROZEN"/"1"; the transient
// Freezing state cannot be requested directly and is rejected.
func setFreezerState(v2 bool, path string, state cgroups.FreezerState) error {
	if state == cgroups.Freezing {
		return fmt.Errorf("%w: cannot request transient Freezing state directly", cgroups.ErrInvalidArgument)
	}
	if v2 {
		v := "0"
		if state == cgroups.Frozen {
			v = "1"
		}
		return writeFile(path, "cgroup.freeze", v)
	}
	v := "THAWED"
	if state == cgroups.Frozen {
		v = "FROZEN"
	}
	return writeFile(path, "freezer.state", v)
}

// freezerState reads back the current state.
func freezerState(v2 bool, path string) (cgroups.FreezerState, error) {
	if v2 {
		v, err := readFile(path, "cgroup.freeze")
		if err != nil {
			return cgroups.Thawed, err
		}
		if v == "1" {
			return cgroups.Frozen, nil
		}
		return cgroups.Thawed, nil
	}
	v, err := readFile(path, "freezer.state")
	if err != nil {
		return cgroups.Thawed, err
	}
	switch v {
	case "FROZEN":
		return cgroups.Frozen, nil
	case "FREEZING":
		return cgroups.Freezing, nil
	default:
		return cgroups.Thawed, nil
	}
}
