// Package cgroups manages the lifecycle of a per-container Linux control
// group: creation, resource configuration, process attachment, freezing,
// statistics harvesting, and destruction. It works uniformly across
// cgroups v1 (multi-hierarchy) and v2 (unified hierarchy), and across two
// driver backends: direct cgroupfs manipulation (package fs) and systemd
// transient-unit orchestration over D-Bus (package systemd).
package cgroups

import (
	"strconv"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Pid is a process or thread identifier. Threads share the same numeric
// domain as process group leaders.
type Pid int64

// Resources is the OCI resource document consumed as an opaque value
// object. It is never mutated by the Manager.
type Resources = specs.LinuxResources

// FreezerState models the three observable states of the freezer
// controller. Freezing is a transient state the kernel reports; it is
// never a valid input to Manager.Freeze.
type FreezerState int

const (
	Thawed FreezerState = iota
	Freezing
	Frozen
)

func (s FreezerState) String() string {
	switch s {
	case Thawed:
		return "THAWED"
	case Freezing:
		return "FREEZING"
	case Frozen:
		return "FROZEN"
	default:
		return "UNKNOWN"
	}
}

// MaxValue models the kernel's "max" sentinel, used by memory.max,
// pids.max, and the first (quota) field of cpu.max. A Value is only meaningful
// when IsMax is false.
type MaxValue struct {
	IsMax bool
	Value int64
}

// Max constructs the kernel "max" sentinel.
func Max() MaxValue { return MaxValue{IsMax: true} }

// Limit constructs a concrete numeric limit.
func Limit(v int64) MaxValue { return MaxValue{Value: v} }

// String renders the value the way the kernel interface expects:
// "max" or a decimal integer.
func (m MaxValue) String() string {
	if m.IsMax {
		return "max"
	}
	return strconv.FormatInt(m.Value, 10)
}
