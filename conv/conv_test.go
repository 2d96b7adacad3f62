package conv

import (
	"errors"
	"testing"

	"github.com/kata-containers/cgroups-rs"
	"github.com/shoenig/test/must"
	"github.com/stretchr/testify/require"
)

func TestSharesToWeight(t *testing.T) {
	cases := []struct {
		shares uint64
		want   uint64
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{100, 4},
		{1024, 40},
		{CPUSharesV1Max - 1, CPUWeightV2Max - 1},
		{CPUSharesV1Max, CPUWeightV2Max},
		{CPUSharesV1Max + 1000, CPUWeightV2Max},
	}
	for _, tc := range cases {
		got := SharesToWeight(tc.shares)
		require.Equalf(t, tc.want, got, "shares=%d", tc.shares)
	}
}

func TestSharesToWeight_Monotone(t *testing.T) {
	prev := uint64(0)
	for s := uint64(1); s <= CPUSharesV1Max; s += 37 {
		got := SharesToWeight(s)
		must.True(t, got >= prev)
		must.True(t, got >= 1)
		must.True(t, got <= CPUWeightV2Max)
		prev = got
	}
}

func TestMemorySwapToV2(t *testing.T) {
	cases := []struct {
		name         string
		memswap, mem int64
		want         int64
		wantErr      bool
	}{
		{"both unlimited via swap=0", 0, -1, -1, false},
		{"swap explicit max", -1, 0, -1, false},
		{"both unset", 0, 0, 0, false},
		{"unlimited memory, explicit swap", 5, -1, 5, false},
		{"contracting, positive both", 1536, 1024, 512, false},
		{"swap less than mem is error", 100, 200, 0, true},
		{"mem zero with positive swap is error", 100, 0, 0, true},
		{"negative mem other than -1 is error", 100, -5, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MemorySwapToV2(tc.memswap, tc.mem)
			if tc.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, cgroups.ErrInvalidLinuxResource))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMemorySwapToV2_SumInvariant(t *testing.T) {
	// whenever both inputs are positive finite and conversion succeeds,
	// swap + mem == memswap (see the package doc's round-trip note).
	got, err := MemorySwapToV2(1536, 1024)
	must.NoError(t, err)
	must.Eq(t, int64(1536), got+1024)
}

func TestCPUListBitmaskRoundTrip(t *testing.T) {
	cases := []struct {
		list string
		want []byte
	}{
		{"2-4", []byte{0b00011100}},
		{"1,7", []byte{0b10000010}},
		{"0-4,9", []byte{0b00000010, 0b00011111}},
	}
	for _, tc := range cases {
		mask, err := CPUListToBitmask(tc.list)
		require.NoError(t, err)
		require.Equal(t, tc.want, mask)

		indices := BitmaskToCPUList(mask)
		require.Equal(t, tc.list, FormatCPUList(indices))
	}
}

func TestCPUListInvalid(t *testing.T) {
	for _, bad := range []string{"1-3-4", "1-3,,", "x", "1,", ""} {
		_, err := CPUListToBitmask(bad)
		if bad == "" {
			// empty string splits into one empty token, which fails to parse
			require.Error(t, err)
			continue
		}
		require.Errorf(t, err, "expected error for %q", bad)
		require.True(t, errors.Is(err, cgroups.ErrInvalidArgument))
	}
}

func TestFormatCPUList_Idempotent(t *testing.T) {
	indices, err := ParseCPUList("0-3,5,7,9-10")
	require.NoError(t, err)
	formatted := FormatCPUList(indices)
	reparsed, err := ParseCPUList(formatted)
	require.NoError(t, err)
	require.Equal(t, indices, reparsed)
}
