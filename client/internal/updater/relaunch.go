package updater

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRelaunchTimeout    = time.Minute
	defaultStatusPollInterval = time.Second
)

// serviceController is the slice of the OS service manager needed to
// bring the upgraded copy back up. kardianos/service.Service satisfies
// it.
type serviceController interface {
	Start() error
	Status() (service.Status, error)
}

// Relauncher starts the upgraded copy after replication succeeds.
type Relauncher interface {
	Relaunch(ctx context.Context, installDir string) error
}

// NewRelauncher picks the relaunch strategy: a detached foreground
// process when the agent runs attended, the OS service manager
// otherwise.
func NewRelauncher(svc serviceController, serviceName, executable string, args []string) Relauncher {
	if service.Interactive() {
		return NewProcessRelauncher(executable, args)
	}
	return NewServiceRelauncher(svc, serviceName)
}

// ProcessRelauncher spawns the new executable directly as a detached
// process with the install directory as its working directory.
type ProcessRelauncher struct {
	executable string
	args       []string
}

func NewProcessRelauncher(executable string, args []string) *ProcessRelauncher {
	return &ProcessRelauncher{
		executable: executable,
		args:       args,
	}
}

func (r *ProcessRelauncher) Relaunch(_ context.Context, installDir string) error {
	exePath := filepath.Join(installDir, r.executable)

	cmd := exec.Command(exePath, r.args...)
	cmd.Dir = installDir

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %v", ErrRelaunchFailure, exePath, err)
	}

	log.Infof("relaunched %s with PID %d", exePath, cmd.Process.Pid)

	// Release the process so the OS can fully detach it
	if err := cmd.Process.Release(); err != nil {
		log.Warnf("failed to release relaunched process: %v", err)
	}

	return nil
}

// ServiceRelauncher instructs the OS service manager to start the named
// service and blocks until it reports a running state.
type ServiceRelauncher struct {
	svc  serviceController
	name string

	timeout      time.Duration
	pollInterval time.Duration
}

func NewServiceRelauncher(svc serviceController, name string) *ServiceRelauncher {
	return &ServiceRelauncher{
		svc:          svc,
		name:         name,
		timeout:      defaultRelaunchTimeout,
		pollInterval: defaultStatusPollInterval,
	}
}

func (r *ServiceRelauncher) Relaunch(ctx context.Context, _ string) error {
	if err := r.svc.Start(); err != nil {
		return fmt.Errorf("%w: start service %s: %v", ErrRelaunchFailure, r.name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	operation := func() error {
		status, err := r.svc.Status()
		if err != nil {
			return fmt.Errorf("query status of service %s: %w", r.name, err)
		}
		if status != service.StatusRunning {
			return fmt.Errorf("service %s not running yet", r.name)
		}
		return nil
	}

	bo := backoff.WithContext(backoff.NewConstantBackOff(r.pollInterval), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return fmt.Errorf("%w: %v", ErrRelaunchTimeout, err)
	}

	log.Infof("service %s reached running state", r.name)
	return nil
}
