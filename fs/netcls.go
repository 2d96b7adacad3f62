package fs

import (
	"fmt"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// setNetCls writes net_cls.classid. v1 only; silently skipped when the
// host has no net_cls hierarchy (v2 has no classid equivalent short of
// eBPF, out of scope here).
func setNetCls(path string, res *specs.LinuxNetwork) error {
	if res == nil || res.ClassID == nil {
		return nil
	}
	return writeFile(path, "net_cls.classid", fmt.Sprintf("%d", *res.ClassID))
}
