package systemd

import (
	systemdDbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/godbus/dbus/v5"
)

// Property is a systemd unit property assignment, sent verbatim over
// D-Bus as part of StartTransientUnit or SetUnitProperties.
type Property = systemdDbus.Property

func boolProp(name string, v bool) Property {
	return systemdDbus.Property{Name: name, Value: dbus.MakeVariant(v)}
}

func stringProp(name, v string) Property {
	return systemdDbus.Property{Name: name, Value: dbus.MakeVariant(v)}
}

func u64Prop(name string, v uint64) Property {
	return systemdDbus.Property{Name: name, Value: dbus.MakeVariant(v)}
}

func u32Prop(name string, v uint32) Property {
	return systemdDbus.Property{Name: name, Value: dbus.MakeVariant(v)}
}

func bytesProp(name string, v []byte) Property {
	return systemdDbus.Property{Name: name, Value: dbus.MakeVariant(v)}
}

func u32ArrayProp(name string, v []uint32) Property {
	return systemdDbus.Property{Name: name, Value: dbus.MakeVariant(v)}
}

// defaultProperties builds the fixed property set every transient unit
// this library creates carries, regardless of the caller's resources:
// accounting switched on so Stats has something to read back, and
// DefaultDependencies off since a container's cgroup has no business
// pulling in the normal boot ordering chain. Parenting differs by unit
// kind: a slice has no Slice= property of its own and is pulled in via
// Wants= on its parent, while a scope is parented with Slice= and
// carries Delegate=yes so the cgroup's own controllers stay writable by
// this process.
func defaultProperties(slice, unit, description string, v2 bool) []Property {
	if description == "" {
		description = defaultUnitDescription
	}
	props := []Property{
		stringProp(propDescription, description),
		boolProp(propDefaultDependencies, false),
		boolProp(propMemoryAccounting, true),
		boolProp(propTasksAccounting, true),
		boolProp(propCPUAccounting, true),
	}
	if IsSliceUnit(unit) {
		props = append(props, stringProp(propWants, slice))
	} else {
		props = append(props, stringProp(propSlice, slice), boolProp(propDelegate, true))
	}
	if v2 {
		props = append(props, boolProp(propIOAccounting, true))
	} else {
		props = append(props, boolProp(propBlockIOAccounting, true))
	}
	return props
}

// pidsProperty wraps the initial PIDs array every StartTransientUnit
// call must carry: systemd creates the unit's cgroup and moves these
// pids into it atomically, which is how this backend avoids the
// separate mkdir-then-attach race the fs backend has to serialize with
// its own mutex.
func pidsProperty(pids []uint32) Property {
	return u32ArrayProp(propPIDs, pids)
}
