package systemd

import (
	"context"
	"strings"

	systemdDbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/godbus/dbus/v5"
	"github.com/hashicorp/go-version"

	cgroups "github.com/kata-containers/cgroups-rs"
)

// client is the thin D-Bus transport this backend drives systemd
// through. It carries no cgroup-specific state; manager.go owns unit
// naming, path derivation and property construction and calls down
// into client only for the primitive systemd1 Manager operations.
type client struct {
	conn *systemdDbus.Conn
}

// newClient opens a private system-bus connection for this manager's
// exclusive use; go-systemd connections are not safe to multiplex
// across callers expecting independent method-call error handling.
func newClient(ctx context.Context) (*client, error) {
	conn, err := systemdDbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, &cgroups.SystemdDbusError{Method: "NewSystemConnection", Err: err}
	}
	return &client{conn: conn}, nil
}

func (c *client) Close() {
	c.conn.Close()
}

// start creates unit as a transient scope or slice with the given
// properties, replacing any stale unit of the same name still
// registered with systemd but no longer backed by a live cgroup.
func (c *client) start(ctx context.Context, unit string, props []Property) error {
	ch := make(chan string, 1)
	_, err := c.conn.StartTransientUnitContext(ctx, unit, unitModeReplace, props, ch)
	if err != nil {
		return &cgroups.SystemdDbusError{Unit: unit, Method: "StartTransientUnit", Err: err}
	}
	select {
	case result := <-ch:
		if result != "done" {
			return &cgroups.SystemdDbusError{Unit: unit, Method: "StartTransientUnit", Err: &cgroups.SystemdCgroupError{Reason: "job result: " + result}}
		}
	case <-ctx.Done():
		return &cgroups.SystemdDbusError{Unit: unit, Method: "StartTransientUnit", Err: ctx.Err()}
	}
	return nil
}

// stop tears unit down. A NoSuchUnit fault means the cgroup is already
// gone (or was never started), which Destroy treats as success; any
// other failure is surfaced. Once the stop job completes,
// ResetFailedUnit is called (its result ignored) so a unit left in
// "failed" state does not block a later unit of the same name.
func (c *client) stop(ctx context.Context, unit string) error {
	ch := make(chan string, 1)
	_, err := c.conn.StopUnitContext(ctx, unit, unitModeReplace, ch)
	if err != nil {
		if isNoSuchUnit(err) {
			return nil
		}
		return &cgroups.SystemdDbusError{Unit: unit, Method: "StopUnit", Err: err}
	}
	select {
	case <-ch:
	case <-ctx.Done():
		return &cgroups.SystemdDbusError{Unit: unit, Method: "StopUnit", Err: ctx.Err()}
	}
	_ = c.conn.ResetFailedUnitContext(ctx, unit)
	return nil
}

// setProperties updates unit's properties live, used to apply a Set
// call against an already-running unit without restarting it.
func (c *client) setProperties(ctx context.Context, unit string, props []Property) error {
	if err := c.conn.SetUnitPropertiesContext(ctx, unit, true, props...); err != nil {
		return &cgroups.SystemdDbusError{Unit: unit, Method: "SetUnitProperties", Err: err}
	}
	return nil
}

// exists reports whether unit is currently registered with systemd,
// in any state.
func (c *client) exists(ctx context.Context, unit string) bool {
	_, err := c.conn.GetUnitPropertiesContext(ctx, unit)
	return err == nil
}

// attachProcess adds pid to unit's cgroup after the unit already
// exists, used for AddProc calls against a live cgroup rather than
// the initial PIDs property on creation. subcgroup is the path below
// the unit's own cgroup to attach into, e.g. "/init/" under
// Docker-in-Docker on v2; "" attaches at the unit's root cgroup.
func (c *client) attachProcess(ctx context.Context, unit, subcgroup string, pid int) error {
	if err := c.conn.AttachProcessesToUnitContext(ctx, unit, subcgroup, []int{pid}); err != nil {
		return &cgroups.SystemdDbusError{Unit: unit, Method: "AttachProcessesToUnit", Err: err}
	}
	return nil
}

func (c *client) freeze(ctx context.Context, unit string) error {
	if err := c.conn.FreezeUnit(ctx, unit); err != nil {
		return &cgroups.SystemdDbusError{Unit: unit, Method: "FreezeUnit", Err: err}
	}
	return nil
}

func (c *client) thaw(ctx context.Context, unit string) error {
	if err := c.conn.ThawUnit(ctx, unit); err != nil {
		return &cgroups.SystemdDbusError{Unit: unit, Method: "ThawUnit", Err: err}
	}
	return nil
}

// version queries the systemd manager's own release, used to gate
// version-sensitive properties (CPUQuotaPerSecUSec, AllowedCPUs) before
// they are ever sent, rather than relying on the bus to reject them.
func (c *client) version(ctx context.Context) (*version.Version, error) {
	v, err := c.conn.GetManagerProperty("Version")
	if err != nil {
		return nil, &cgroups.SystemdDbusError{Method: "Version", Err: err}
	}
	raw := strings.Trim(v, `"`)
	return parseVersion(raw)
}

func isNoSuchUnit(err error) bool {
	dbusErr, ok := err.(dbus.Error)
	if !ok {
		return false
	}
	return dbusErr.Name == noSuchUnitErrorName
}
