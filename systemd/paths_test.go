package systemd

import (
	"errors"
	"testing"

	"github.com/shoenig/test/must"
	"github.com/stretchr/testify/require"

	cgroups "github.com/kata-containers/cgroups-rs"
)

func TestExpandSlice(t *testing.T) {
	cases := []struct {
		slice string
		want  []string
	}{
		{"test-a-b.slice", []string{"test.slice", "test-a.slice", "test-a-b.slice"}},
		{"test.slice", []string{"test.slice"}},
		{".slice", nil},
		{"", nil},
		{"-.slice", nil},
	}
	for _, tc := range cases {
		got, err := ExpandSlice(tc.slice)
		require.NoError(t, err, tc.slice)
		require.Equal(t, tc.want, got, tc.slice)
	}
}

func TestExpandSlice_Invalid(t *testing.T) {
	for _, bad := range []string{"not-a-slice", "test--a.slice", "-leading.slice"} {
		_, err := ExpandSlice(bad)
		require.Error(t, err, bad)
		var scErr *cgroups.SystemdCgroupError
		require.True(t, errors.As(err, &scErr), bad)
	}
}

func TestExpandSlice_Idempotent(t *testing.T) {
	chain, err := ExpandSlice("a-b-c-d.slice")
	must.NoError(t, err)
	must.Eq(t, "a.slice", chain[0])
	must.Eq(t, "a-b-c-d.slice", chain[len(chain)-1])
	for i := 1; i < len(chain); i++ {
		must.True(t, len(chain[i]) > len(chain[i-1]))
	}

	again, err := ExpandSlice(chain[len(chain)-1])
	must.NoError(t, err)
	must.Eq(t, chain, again)
}

func TestNewUnitName(t *testing.T) {
	require.Equal(t, "my-prefix-foo.scope", NewUnitName("my-prefix", "foo"))
	require.Equal(t, "foo.scope", NewUnitName("", "foo"))
	require.Equal(t, "already.slice", NewUnitName("anything", "already.slice"))
}

func TestIsSystemdCgroup(t *testing.T) {
	must.True(t, IsSystemdCgroup("system.slice:docker:6b4c4a4d0cc2a12c529dcb13a2b8e438dfb3b2a6af34d548d7d"))
	must.True(t, IsSystemdCgroup("a-b-c.slice:prefix:name"))
	must.False(t, IsSystemdCgroup("not-a-slice:docker:abc123"))
	must.False(t, IsSystemdCgroup("system.slice:docker"))
	must.False(t, IsSystemdCgroup("/kubepods/burstable/pod123"))
}

func TestParseSliceAndUnit(t *testing.T) {
	slice, prefix, name, err := ParseSliceAndUnit("system.slice:docker:abc123")
	require.NoError(t, err)
	require.Equal(t, "system.slice", slice)
	require.Equal(t, "docker", prefix)
	require.Equal(t, "abc123", name)

	slice, prefix, name, err = ParseSliceAndUnit("abc123")
	require.NoError(t, err)
	require.Equal(t, DefaultSlice, slice)
	require.Equal(t, "", prefix)
	require.Equal(t, "abc123", name)

	_, _, _, err = ParseSliceAndUnit("a:b:c:d")
	require.Error(t, err)

	_, _, _, err = ParseSliceAndUnit("not-a-slice:docker:abc123")
	require.Error(t, err)
}
