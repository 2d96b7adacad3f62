package systemd

import (
	"math"

	"github.com/hashicorp/go-version"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	cgroups "github.com/kata-containers/cgroups-rs"
	"github.com/kata-containers/cgroups-rs/conv"
)

// usecInfinity is systemd's USEC_INFINITY sentinel, used for any
// *USec property meaning "no limit".
const usecInfinity = uint64(math.MaxUint64)

// cpuProperties translates an OCI CPU resource into CPUWeight and the
// CPUQuotaPerSecUSec/CPUQuotaPeriodUSec pair. Unlike the fs backend,
// which writes "cpu.max" as "<quota> <period>" verbatim, systemd's unit
// model only exposes a per-second quota rate, so the two OCI fields are
// first combined into quota/period before being re-expressed in that
// form: (quota*1_000_000)/period microseconds of runtime per second of
// wall time, rounded up to the next multiple of 10ms since that is the
// granularity systemd's own scheduler enforces the property at.
func cpuProperties(v2 bool, res *specs.LinuxCPU, have *version.Version) ([]Property, error) {
	if res == nil {
		return nil, nil
	}
	var props []Property

	if res.Shares != nil {
		if v2 {
			props = append(props, u64Prop(propCPUWeight, conv.SharesToWeight(*res.Shares)))
		} else {
			props = append(props, u64Prop(propCPUShares, *res.Shares))
		}
	}

	quota := int64(0)
	if res.Quota != nil {
		quota = *res.Quota
	}
	period := uint64(0)
	if res.Period != nil {
		period = *res.Period
	}
	if quota > 0 && period == 0 {
		period = 100000
	}
	if period != 0 || quota != 0 {
		if err := requireVersion(have, cpuQuotaPeriodMinVersion, propCPUQuotaPerSecUSec); err != nil {
			return nil, err
		}
		perSec := usecInfinity
		if quota > 0 && period != 0 {
			raw := uint64(quota) * 1_000_000 / period
			perSec = ((raw + 9999) / 10000) * 10000
		}
		props = append(props, u64Prop(propCPUQuotaPerSecUSec, perSec))
		if period != 0 {
			if err := requireVersion(have, cpuQuotaPeriodMinVersion, propCPUQuotaPeriodUSec); err != nil {
				return nil, err
			}
			props = append(props, u64Prop(propCPUQuotaPeriodUSec, period))
		}
	}

	return props, nil
}

// cpusetProperties translates the cpuset fields of an OCI CPU resource
// into AllowedCPUs/AllowedMemoryNodes, each encoded as the bitmask
// systemd's property type expects. Requires systemd new enough to carry
// these properties at all; on older systemd it fails with
// ObsoleteSystemdError.
func cpusetProperties(res *specs.LinuxCPU, have *version.Version) ([]Property, error) {
	if res == nil {
		return nil, nil
	}
	var props []Property
	if res.Cpus == "" && res.Mems == "" {
		return nil, nil
	}
	if err := requireVersion(have, cpusetMinVersion, propAllowedCPUs); err != nil {
		return nil, err
	}
	if res.Cpus != "" {
		mask, err := conv.CPUListToBitmask(res.Cpus)
		if err != nil {
			return nil, err
		}
		props = append(props, bytesProp(propAllowedCPUs, mask))
	}
	if res.Mems != "" {
		mask, err := conv.CPUListToBitmask(res.Mems)
		if err != nil {
			return nil, err
		}
		props = append(props, bytesProp(propAllowedMemoryNodes, mask))
	}
	return props, nil
}

// memoryProperties translates an OCI memory resource into MemoryMax/
// MemoryLow/MemorySwapMax, the v2-only unit properties. There is no
// systemd property for a v1-style combined memsw limit, so a caller
// driving a v1 host has no unit-level memory enforcement available and
// must fall back to the embedded fs manager for memory entirely; set
// only ever reaches these translations when the host topology is v2.
func memoryProperties(res *specs.LinuxMemory) ([]Property, error) {
	if res == nil {
		return nil, nil
	}
	var props []Property
	if res.Limit != nil {
		props = append(props, u64Prop(propMemoryMax, maxU64(*res.Limit)))
	}
	if res.Reservation != nil {
		props = append(props, u64Prop(propMemoryLow, maxU64(*res.Reservation)))
	}
	if res.Swap != nil {
		mem := int64(0)
		if res.Limit != nil {
			mem = *res.Limit
		}
		swap, err := conv.MemorySwapToV2(*res.Swap, mem)
		if err != nil {
			return nil, err
		}
		props = append(props, u64Prop(propMemorySwapMax, maxU64(swap)))
	}
	return props, nil
}

// pidsProperties translates an OCI pids resource into TasksMax. Emitted
// only for an explicit unlimited (-1) or a genuine positive cap; any
// other value (0, or a negative other than -1) leaves the unit's task
// count unrestricted rather than pinning TasksMax to 0.
func pidsProperties(res *specs.LinuxPids) []Property {
	if res == nil {
		return nil
	}
	if res.Limit != -1 && res.Limit <= 0 {
		return nil
	}
	return []Property{u64Prop(propTasksMax, maxU64(res.Limit))}
}

// maxU64 maps an OCI int64 where a negative value means unlimited onto
// the systemd *Max property convention of math.MaxUint64 meaning
// unlimited; zero and positive values pass through unchanged.
func maxU64(v int64) uint64 {
	if v < 0 {
		return usecInfinity
	}
	return uint64(v)
}

// unitProperties builds the full property set a Set call against a
// live or about-to-be-created unit sends, given the host's systemd
// version and hierarchy. On v1, memory has no unit-property equivalent
// at all (MemoryMax/MemorySwapMax are v2-only) and cpuset's AllowedCPUs
// requires v2 delegation semantics, so both are left to the embedded fs
// manager instead of attempted here. Errors here are
// ObsoleteSystemdError, ErrInvalidArgument for an invalid cpu list, or
// ErrInvalidLinuxResource for a memory+swap pair that cannot be
// converted.
func unitProperties(v2 bool, res *cgroups.Resources, have *version.Version) ([]Property, error) {
	var props []Property

	if res.CPU != nil {
		cpuProps, err := cpuProperties(v2, res.CPU, have)
		if err != nil {
			return nil, err
		}
		props = append(props, cpuProps...)

		if v2 {
			csProps, err := cpusetProperties(res.CPU, have)
			if err != nil {
				return nil, err
			}
			props = append(props, csProps...)
		}
	}

	if v2 && res.Memory != nil {
		memProps, err := memoryProperties(res.Memory)
		if err != nil {
			return nil, err
		}
		props = append(props, memProps...)
	}

	if res.Pids != nil {
		props = append(props, pidsProperties(res.Pids)...)
	}

	return props, nil
}
