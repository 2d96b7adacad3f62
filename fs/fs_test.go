package fs

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/require"

	cgroups "github.com/kata-containers/cgroups-rs"
)

// v1Topology builds a synthetic v1 Topology rooted at per-subsystem
// directories under t.TempDir(), so tests exercise real file I/O without
// requiring the host to actually have cgroups mounted.
func v1Topology(t *testing.T) (*cgroups.Topology, string) {
	t.Helper()
	root := t.TempDir()
	mounts := make(map[string]string)
	for _, name := range controllerNames {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0755))
		mounts[name] = dir
	}
	return &cgroups.Topology{IsV2: false, Mounts: mounts, Subsystems: map[string]string{}}, root
}

func v2Topology(t *testing.T) *cgroups.Topology {
	t.Helper()
	root := t.TempDir()
	return &cgroups.Topology{IsV2: true, Mounts: map[string]string{"": root}, Subsystems: map[string]string{"": "/"}}
}

func int64p(v int64) *int64    { return &v }
func uint64p(v uint64) *uint64 { return &v }

func TestManagerSetV1_CPUAndCpuset(t *testing.T) {
	topo, _ := v1Topology(t)
	m, err := New("/test-cg", WithTopology(topo))
	require.NoError(t, err)

	res := &cgroups.Resources{
		CPU: &specs.LinuxCPU{
			Shares: uint64p(1024),
			Quota:  int64p(50000),
			Period: uint64p(100000),
			Cpus:   "0-1",
		},
	}
	require.NoError(t, m.Set(res))

	p := filepath.Join(topo.Mounts["cpu"], "test-cg")
	shares, err := readFile(p, "cpu.shares")
	require.NoError(t, err)
	require.Equal(t, "1024", shares)

	quota, err := readFile(p, "cpu.cfs_quota_us")
	require.NoError(t, err)
	require.Equal(t, "50000", quota)

	cpusetPath := filepath.Join(topo.Mounts["cpuset"], "test-cg")
	cpus, err := readFile(cpusetPath, "cpuset.cpus")
	require.NoError(t, err)
	require.Equal(t, "0-1", cpus)
}

func TestManagerSetV2_CPUAndMemory(t *testing.T) {
	topo := v2Topology(t)
	m, err := New("/test-cg", WithTopology(topo))
	require.NoError(t, err)

	res := &cgroups.Resources{
		CPU: &specs.LinuxCPU{
			Shares: uint64p(1024),
			Quota:  int64p(50000),
			Period: uint64p(100000),
		},
		Memory: &specs.LinuxMemory{
			Limit: int64p(1 << 20),
			Swap:  int64p(2 << 20),
		},
	}
	require.NoError(t, m.Set(res))

	p := filepath.Join(topo.Mounts[""], "test-cg")
	weight, err := readFile(p, "cpu.weight")
	require.NoError(t, err)
	require.NotEmpty(t, weight)

	max, err := readFile(p, "cpu.max")
	require.NoError(t, err)
	require.Equal(t, "50000 100000", max)

	memMax, err := readFile(p, "memory.max")
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(1<<20), memMax)

	swapMax, err := readFile(p, "memory.swap.max")
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(1<<20), swapMax)
}

func TestManagerSetV1_MemoryOrdering(t *testing.T) {
	topo, _ := v1Topology(t)
	m, err := New("/test-cg", WithTopology(topo))
	require.NoError(t, err)

	require.NoError(t, m.Set(&cgroups.Resources{
		Memory: &specs.LinuxMemory{Limit: int64p(1000), Swap: int64p(2000)},
	}))

	// expanding the limit must not fail: memsw is written first, so the
	// new limit never lands above the old memsw limit.
	require.NoError(t, m.Set(&cgroups.Resources{
		Memory: &specs.LinuxMemory{Limit: int64p(5000), Swap: int64p(6000)},
	}))

	p := filepath.Join(topo.Mounts["memory"], "test-cg")
	limit, err := readFile(p, "memory.limit_in_bytes")
	require.NoError(t, err)
	require.Equal(t, "5000", limit)
	swap, err := readFile(p, "memory.memsw.limit_in_bytes")
	require.NoError(t, err)
	require.Equal(t, "6000", swap)
}

func TestManagerAddProcV1_WritesAllControllers(t *testing.T) {
	topo, _ := v1Topology(t)
	m, err := New("/test-cg", WithTopology(topo))
	require.NoError(t, err)

	require.NoError(t, m.AddProc(cgroups.Pid(4242)))

	for _, name := range controllerNames {
		p := filepath.Join(topo.Mounts[name], "test-cg")
		v, err := readFile(p, "tasks")
		require.NoError(t, err)
		require.Equal(t, "4242", v)
	}
}

func TestManagerPidsV1(t *testing.T) {
	topo, _ := v1Topology(t)
	m, err := New("/test-cg", WithTopology(topo))
	require.NoError(t, err)
	require.NoError(t, m.AddProc(cgroups.Pid(99)))

	pids, err := m.Pids()
	require.NoError(t, err)
	require.Equal(t, []cgroups.Pid{99}, pids)
}

func TestManagerFreezeV1AndV2(t *testing.T) {
	topoV1, _ := v1Topology(t)
	m1, err := New("/test-cg", WithTopology(topoV1))
	require.NoError(t, err)
	require.NoError(t, m1.createCgroups())
	require.NoError(t, m1.Freeze(cgroups.Frozen))
	v, err := readFile(filepath.Join(topoV1.Mounts["freezer"], "test-cg"), "freezer.state")
	require.NoError(t, err)
	require.Equal(t, "FROZEN", v)

	topoV2 := v2Topology(t)
	m2, err := New("/test-cg", WithTopology(topoV2))
	require.NoError(t, err)
	require.NoError(t, m2.createCgroups())
	require.NoError(t, m2.Freeze(cgroups.Frozen))
	v, err = readFile(filepath.Join(topoV2.Mounts[""], "test-cg"), "cgroup.freeze")
	require.NoError(t, err)
	require.Equal(t, "1", v)

	require.Error(t, m1.Freeze(cgroups.Freezing))
}

func TestManagerDestroyDrainsAndRemoves(t *testing.T) {
	topo, _ := v1Topology(t)
	m, err := New("/test-cg", WithTopology(topo))
	require.NoError(t, err)
	require.NoError(t, m.AddProc(cgroups.Pid(7)))

	require.NoError(t, m.Destroy())

	for _, name := range controllerNames {
		p := filepath.Join(topo.Mounts[name], "test-cg")
		_, err := os.Stat(p)
		require.True(t, os.IsNotExist(err))

		v, err := readFile(topo.Mounts[name], "tasks")
		require.NoError(t, err)
		require.Equal(t, "7", v)
	}
}

func TestEnableCpusTopdown(t *testing.T) {
	topo, _ := v1Topology(t)
	m, err := New("/x/y/z", WithTopology(topo))
	require.NoError(t, err)

	require.NoError(t, m.createCgroups())
	require.NoError(t, m.EnableCpusTopdown("0-1"))

	root := topo.Mounts["cpuset"]
	xCpus, err := readFile(filepath.Join(root, "x"), "cpuset.cpus")
	require.NoError(t, err)
	require.Equal(t, "0-1", xCpus)

	xyCpus, err := readFile(filepath.Join(root, "x", "y"), "cpuset.cpus")
	require.NoError(t, err)
	require.Equal(t, "0-1", xyCpus)

	_, err = os.Stat(filepath.Join(root, "cpuset.cpus"))
	require.True(t, os.IsNotExist(err))
}

func TestSetDevicesRules(t *testing.T) {
	topo, _ := v1Topology(t)
	m, err := New("/test-cg", WithTopology(topo))
	require.NoError(t, err)

	// a v1 devices cgroup always carries devices.allow/devices.deny;
	// create them as cgroupfs would.
	p := filepath.Join(topo.Mounts["devices"], "test-cg")
	require.NoError(t, m.createCgroups())
	require.NoError(t, os.WriteFile(filepath.Join(p, "devices.allow"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(p, "devices.deny"), nil, 0644))

	require.NoError(t, m.Set(&cgroups.Resources{
		Devices: []specs.LinuxDeviceCgroup{
			{Allow: false, Type: "a", Access: "rwm"},
			{Allow: true, Type: "c", Major: int64p(1), Minor: int64p(5), Access: "rwm"},
		},
	}))

	deny, err := readFile(p, "devices.deny")
	require.NoError(t, err)
	require.Equal(t, "a *:* rwm", deny)
	allow, err := readFile(p, "devices.allow")
	require.NoError(t, err)
	require.Equal(t, "c 1:5 rwm", allow)
}
