// Package conv implements the v1↔v2 semantic conversions the Resource
// Manager needs to translate a single OCI resources document into either
// cgroupfs writes or systemd unit properties: CPU shares↔weight,
// memory+swap combined↔split swap, and CPU list↔bitmask.
//
// Grounded on the original Rust implementation's src/manager/conv.rs and
// src/systemd/cpuset.rs (see /DESIGN.md).
package conv

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kata-containers/cgroups-rs"
)

const (
	// CPUSharesV1Max is the top of the cgroup v1 CPU shares domain.
	CPUSharesV1Max = 262144
	// CPUWeightV2Max is the top of the cgroup v2 CPU weight codomain.
	CPUWeightV2Max = 10000
)

// SharesToWeight converts cgroup v1 CPU shares, domain [0, 262144], to
// cgroup v2 CPU weight, codomain [0, 10000].
func SharesToWeight(shares uint64) uint64 {
	switch {
	case shares == 0:
		return 0
	case shares <= 2:
		return 1
	case shares >= CPUSharesV1Max:
		return CPUWeightV2Max
	default:
		return ((shares-2)*9999)/262142 + 1
	}
}

// MemorySwapToV2 converts a v1 "memory+swap combined" limit plus the
// memory limit into the v2 split swap value. Per the
// documented Open Question (see /DESIGN.md), (mem=-1, memswap=0) is
// treated as "both unlimited" for OCI compatibility, a deliberate
// deviation from a literal reading of the OCI spec that the original
// implementation also makes.
func MemorySwapToV2(memswap, mem int64) (int64, error) {
	if mem == -1 && memswap == 0 {
		return -1, nil
	}
	if memswap == -1 || memswap == 0 {
		return memswap, nil
	}
	if mem == -1 {
		return memswap, nil
	}
	if mem == 0 {
		return 0, fmt.Errorf("%w: memory limit unset, cannot derive swap", cgroups.ErrInvalidLinuxResource)
	}
	if mem < 0 {
		return 0, fmt.Errorf("%w: negative memory limit %d", cgroups.ErrInvalidLinuxResource, mem)
	}
	if memswap < mem {
		return 0, fmt.Errorf("%w: memory+swap %d less than memory limit %d", cgroups.ErrInvalidLinuxResource, memswap, mem)
	}
	return memswap - mem, nil
}

// ParseCPUList parses a cpuset list such as "0-3,5,7" into a sorted,
// deduplicated set of CPU indices. Invalid tokens (non-numeric,
// three-part ranges, empty tokens from trailing/doubled commas) fail
// with ErrInvalidArgument.
func ParseCPUList(list string) ([]int, error) {
	seen := make(map[int]bool)
	for _, token := range strings.Split(list, ",") {
		parts := strings.Split(token, "-")
		switch len(parts) {
		case 1:
			idx, err := strconv.Atoi(parts[0])
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("%w: invalid cpu index %q", cgroups.ErrInvalidArgument, parts[0])
			}
			seen[idx] = true
		case 2:
			left, err1 := strconv.Atoi(parts[0])
			right, err2 := strconv.Atoi(parts[1])
			if err1 != nil || err2 != nil || left < 0 || right < left {
				return nil, fmt.Errorf("%w: invalid cpu range %q", cgroups.ErrInvalidArgument, token)
			}
			for i := left; i <= right; i++ {
				seen[i] = true
			}
		default:
			return nil, fmt.Errorf("%w: invalid cpu token %q", cgroups.ErrInvalidArgument, token)
		}
	}

	result := make([]int, 0, len(seen))
	for idx := range seen {
		result = append(result, idx)
	}
	sort.Ints(result)
	return result, nil
}

// FormatCPUList renders a set of CPU indices in canonical hyphen-range
// form, e.g. [0,1,2,3,5,7] -> "0-3,5,7". Used to round-trip a bitmask
// back to list form, and as the canonical form the round-trip
// property below is defined against.
func FormatCPUList(indices []int) string {
	if len(indices) == 0 {
		return ""
	}
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)

	var parts []string
	start := sorted[0]
	prev := sorted[0]
	flush := func(end int) {
		if start == end {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, end))
		}
	}
	for _, idx := range sorted[1:] {
		if idx == prev+1 {
			prev = idx
			continue
		}
		flush(prev)
		start, prev = idx, idx
	}
	flush(prev)
	return strings.Join(parts, ",")
}

// CPUListToBitmask converts a cpuset list to the little-endian-per-byte,
// highest-byte-first bitmask systemd's AllowedCPUs/AllowedMemoryNodes
// properties expect: bit i (counting from the LSB of
// the group-0 byte, before the final reversal) is set iff CPU i is
// enabled; the accumulated byte buffer is then reversed so the
// highest-index byte comes first.
func CPUListToBitmask(list string) ([]byte, error) {
	indices, err := ParseCPUList(list)
	if err != nil {
		return nil, err
	}
	return indicesToBitmask(indices), nil
}

func indicesToBitmask(indices []int) []byte {
	size := 1
	for _, idx := range indices {
		if need := idx/8 + 1; need > size {
			size = need
		}
	}
	mask := make([]byte, size)
	for _, idx := range indices {
		mask[idx/8] |= 1 << uint(idx%8)
	}
	reverse(mask)
	return mask
}

// BitmaskToCPUList inverts CPUListToBitmask, recovering the CPU indices
// encoded in a systemd-style reversed-byte-order bitmask. Used by tests
// to exercise the bitmask round-trip invariant.
func BitmaskToCPUList(mask []byte) []int {
	buf := append([]byte(nil), mask...)
	reverse(buf)

	var indices []int
	for byteIdx, b := range buf {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) != 0 {
				indices = append(indices, byteIdx*8+bit)
			}
		}
	}
	return indices
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
