package host

import (
	"github.com/Masterminds/semver/v3"
)

// PermissionAccessFineLocation is the permission required for precise fixes.
const PermissionAccessFineLocation = "ACCESS_FINE_LOCATION"

// PermissionStatus is the outcome of a permission check.
type PermissionStatus int

const (
	PermissionDenied PermissionStatus = iota
	PermissionGranted
)

// Activity is the host's foreground context as seen by a plugin.
type Activity interface {
	CheckSelfPermission(permission string) PermissionStatus
	PlatformVersion() *semver.Version
}

// StaticActivity grants a fixed set of permissions on a fixed platform version.
type StaticActivity struct {
	granted map[string]struct{}
	version *semver.Version
}

// NewStaticActivity creates a StaticActivity. The version must be a valid
// semantic version such as "13.0.0".
func NewStaticActivity(version string, granted []string) (*StaticActivity, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[p] = struct{}{}
	}

	return &StaticActivity{
		granted: set,
		version: v,
	}, nil
}

// CheckSelfPermission reports whether permission was granted.
func (a *StaticActivity) CheckSelfPermission(permission string) PermissionStatus {
	if _, ok := a.granted[permission]; ok {
		return PermissionGranted
	}
	return PermissionDenied
}

// PlatformVersion returns the platform version the host runs on.
func (a *StaticActivity) PlatformVersion() *semver.Version {
	return a.version
}
