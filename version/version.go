package version

import goversion "github.com/hashicorp/go-version"

// version is overridden at build time with
// -ldflags "-X github.com/fleetlink/fleetlink/version.version=..."
var version = "development"

// FleetlinkVersion returns the build version of the agent.
func FleetlinkVersion() string {
	return version
}

// Semver returns the build version parsed as a semantic version. A
// non-semver build (e.g. "development") is reported as 0.0.0.
func Semver() *goversion.Version {
	v, err := goversion.NewVersion(version)
	if err != nil {
		v, _ = goversion.NewVersion("0.0.0")
	}
	return v
}
