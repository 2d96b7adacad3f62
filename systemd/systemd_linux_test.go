//go:build linux

package systemd

import (
	"errors"
	"testing"

	hversion "github.com/hashicorp/go-version"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/shoenig/test/must"
	"github.com/stretchr/testify/require"

	cgroups "github.com/kata-containers/cgroups-rs"
)

func mustVersion(t *testing.T, s string) *hversion.Version {
	t.Helper()
	v, err := hversion.NewVersion(s)
	require.NoError(t, err)
	return v
}

func TestParseVersion(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"249.11-0ubuntu3.16", "249"},
		{"253", "253"},
		{`"245"`, "245"},
	}
	for _, tc := range cases {
		v, err := parseVersion(tc.raw)
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.want, v.Original())
	}
}

func TestParseVersion_Corrupted(t *testing.T) {
	_, err := parseVersion("not-a-version")
	require.Error(t, err)
	var corrupted *cgroups.CorruptedSystemdVersionError
	require.True(t, errors.As(err, &corrupted))
}

func TestRequireVersion(t *testing.T) {
	old := mustVersion(t, "241")
	err := requireVersion(old, cpuQuotaPeriodMinVersion, propCPUQuotaPerSecUSec)
	require.Error(t, err)
	var obsolete *cgroups.ObsoleteSystemdError
	require.True(t, errors.As(err, &obsolete))
	must.Eq(t, propCPUQuotaPerSecUSec, obsolete.Property)

	current := mustVersion(t, "242")
	require.NoError(t, requireVersion(current, cpuQuotaPeriodMinVersion, propCPUQuotaPerSecUSec))
}

func TestCPUProperties_QuotaRounding(t *testing.T) {
	have := mustVersion(t, "250")
	cases := []struct {
		name         string
		quota        int64
		period       uint64
		wantPerSecUs uint64
	}{
		{"quota below one period-tenth rounds up", 500, 100000, 10000},
		{"exact multiple unchanged", 50000, 100000, 500000},
		{"default period when unset", 25000, 0, 10000 * ((250000 + 9999) / 10000)},
		{"unlimited quota", -1, 100000, usecInfinity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := &specs.LinuxCPU{Quota: &tc.quota}
			if tc.period != 0 {
				res.Period = &tc.period
			}
			props, err := cpuProperties(true, res, have)
			require.NoError(t, err)
			require.Len(t, props, 2)
			require.Equal(t, propCPUQuotaPerSecUSec, props[0].Name)
			require.Equal(t, tc.wantPerSecUs, props[0].Value.Value())
			require.Equal(t, propCPUQuotaPeriodUSec, props[1].Name)
		})
	}
}

func TestCPUProperties_SharesVsWeight(t *testing.T) {
	have := mustVersion(t, "250")
	shares := uint64(1024)
	res := &specs.LinuxCPU{Shares: &shares}

	v2Props, err := cpuProperties(true, res, have)
	require.NoError(t, err)
	require.Len(t, v2Props, 1)
	require.Equal(t, propCPUWeight, v2Props[0].Name)

	v1Props, err := cpuProperties(false, res, have)
	require.NoError(t, err)
	require.Len(t, v1Props, 1)
	require.Equal(t, propCPUShares, v1Props[0].Name)
}

func TestCpusetProperties_VersionGate(t *testing.T) {
	res := &specs.LinuxCPU{Cpus: "0-1"}

	_, err := cpusetProperties(res, mustVersion(t, "243"))
	require.Error(t, err)
	var obsolete *cgroups.ObsoleteSystemdError
	require.True(t, errors.As(err, &obsolete))

	props, err := cpusetProperties(res, mustVersion(t, "244"))
	require.NoError(t, err)
	require.Len(t, props, 1)
	require.Equal(t, propAllowedCPUs, props[0].Name)
}

func TestMemoryProperties(t *testing.T) {
	limit := int64(1 << 20)
	swap := int64(1 << 21)
	res := &specs.LinuxMemory{Limit: &limit, Swap: &swap}

	props, err := memoryProperties(res)
	require.NoError(t, err)
	require.Len(t, props, 2)

	names := map[string]bool{}
	for _, p := range props {
		names[p.Name] = true
	}
	must.True(t, names[propMemoryMax])
	must.True(t, names[propMemorySwapMax])
}

func TestPidsProperties_Unlimited(t *testing.T) {
	res := &specs.LinuxPids{Limit: -1}
	props := pidsProperties(res)
	require.Len(t, props, 1)
	require.Equal(t, propTasksMax, props[0].Name)
}

func TestFsFallback_DroppedWhenEmpty(t *testing.T) {
	m := &Manager{v2: true}
	res := &cgroups.Resources{CPU: &specs.LinuxCPU{Shares: func() *uint64 { v := uint64(512); return &v }()}}
	must.Nil(t, m.fsFallback(res))
}

func TestFsFallback_CarriesCpuset(t *testing.T) {
	m := &Manager{v2: true}
	res := &cgroups.Resources{CPU: &specs.LinuxCPU{Cpus: "0-1"}}
	out := m.fsFallback(res)
	must.NotNil(t, out)
	must.Eq(t, "0-1", out.CPU.Cpus)
}
