package fs

import (
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// setCPUSet writes cpuset.cpus/cpuset.mems. The file names are identical
// across v1 and v2, so no version branch is needed here (unlike cpu.go
// and memory.go).
func setCPUSet(path string, res *specs.LinuxCPU) error {
	if res == nil {
		return nil
	}
	if res.Cpus != "" {
		if err := writeFile(path, "cpuset.cpus", res.Cpus); err != nil {
			return err
		}
	}
	if res.Mems != "" {
		if err := writeFile(path, "cpuset.mems", res.Mems); err != nil {
			return err
		}
	}
	return nil
}
