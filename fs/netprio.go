package fs

import (
	"fmt"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// setNetPrio writes one "<iface> <priority>" line per entry to
// net_prio.ifpriomap. v1 only.
func setNetPrio(path string, res *specs.LinuxNetwork) error {
	if res == nil {
		return nil
	}
	for _, p := range res.Priorities {
		if err := writeFile(path, "net_prio.ifpriomap", fmt.Sprintf("%s %d", p.Name, p.Priority)); err != nil {
			return err
		}
	}
	return nil
}
