package systemd

import (
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"

	cgroups "github.com/kata-containers/cgroups-rs"
)

// parseVersion extracts the leading integer release from systemd's
// "Version" manager property, discarding everything from the first
// dot onward: "249.11-0ubuntu3.16" yields 249, matching the original
// implementation's `version.split('.').next()`.
func parseVersion(raw string) (*version.Version, error) {
	s := strings.Trim(raw, `"`)
	s = strings.TrimPrefix(s, "v")
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		s = s[:idx]
	}
	if s == "" {
		return nil, &cgroups.CorruptedSystemdVersionError{Raw: raw}
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil, &cgroups.CorruptedSystemdVersionError{Raw: raw}
		}
	}

	v, err := version.NewVersion(s)
	if err != nil {
		return nil, &cgroups.CorruptedSystemdVersionError{Raw: raw}
	}
	return v, nil
}

// requireVersion returns an ObsoleteSystemdError when have is older
// than the dotted-integer minimum want, identifying the property that
// triggered the check.
func requireVersion(have *version.Version, want int, property string) error {
	wantVersion, err := version.NewVersion(strconv.Itoa(want))
	if err != nil {
		return err
	}
	if have.LessThan(wantVersion) {
		return &cgroups.ObsoleteSystemdError{Property: property, Have: have.String(), Want: wantVersion.String()}
	}
	return nil
}
