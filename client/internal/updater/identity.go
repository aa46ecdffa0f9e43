package updater

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fleetlink/fleetlink/version"
)

// ServiceIdentity identifies the running agent to the remote update
// service. It is computed once at process start and never changes.
type ServiceIdentity struct {
	Name    string
	Version string
}

// NewServiceIdentity builds the identity from the executable's own base
// name and the build version.
func NewServiceIdentity() (ServiceIdentity, error) {
	exe, err := os.Executable()
	if err != nil {
		return ServiceIdentity{}, fmt.Errorf("resolve executable: %w", err)
	}

	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return ServiceIdentity{
		Name: name,
		// the update service expects a canonical semantic version, so a
		// non-semver development build advertises 0.0.0
		Version: version.Semver().String(),
	}, nil
}

// InstallationPaths holds the directory the currently executing
// binaries live in and the directory the upgrade is written to. The two
// must never be equal.
type InstallationPaths struct {
	RunningDir string
	TargetDir  string
}

// NewInstallationPaths resolves the running directory from the current
// executable and pairs it with the configured upgrade target.
func NewInstallationPaths(targetDir string) (InstallationPaths, error) {
	exe, err := os.Executable()
	if err != nil {
		return InstallationPaths{}, fmt.Errorf("resolve executable: %w", err)
	}

	return InstallationPaths{
		RunningDir: filepath.Dir(exe),
		TargetDir:  targetDir,
	}, nil
}

// SelfUpgrade reports whether the target directory is the running
// directory. The comparison is case-insensitive since the installation
// may live on a case-insensitive filesystem.
func (p InstallationPaths) SelfUpgrade() bool {
	return strings.EqualFold(filepath.Clean(p.RunningDir), filepath.Clean(p.TargetDir))
}
