package cmd

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/fleetlink/fleetlink/client/internal"
	"github.com/fleetlink/fleetlink/client/internal/updater"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the Fleetlink agent service",
}

type program struct {
	ctx     context.Context
	cancel  context.CancelFunc
	manager *updater.Manager
}

func init() {
	serviceCmd.AddCommand(runCmd, startCmd, stopCmd, restartCmd, installCmd, uninstallCmd)
}

func newProgram(ctx context.Context, cancel context.CancelFunc) *program {
	return &program{ctx: ctx, cancel: cancel}
}

func newSVCConfig() *service.Config {
	return &service.Config{
		Name:        serviceName,
		DisplayName: "Fleetlink",
		Description: "Fleetlink background agent",
		Option:      make(service.KeyValue),
	}
}

func newSVC(prg *program, conf *service.Config) (service.Service, error) {
	return service.New(prg, conf)
}

// buildUpdateManager wires the self-update background task for the
// running agent.
func buildUpdateManager(cfg *internal.Config, svc service.Service) (*updater.Manager, error) {
	orchestrator, err := buildOrchestrator(cfg, svc)
	if err != nil {
		return nil, err
	}
	return updater.NewManager(orchestrator, cfg.CheckInterval()), nil
}

func buildOrchestrator(cfg *internal.Config, svc service.Service) (*updater.Orchestrator, error) {
	identity, err := updater.NewServiceIdentity()
	if err != nil {
		return nil, err
	}

	paths, err := updater.NewInstallationPaths(cfg.TargetDir)
	if err != nil {
		return nil, err
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	relauncher := updater.NewRelauncher(svc, serviceName, filepath.Base(exe), serviceRunArguments())
	client := updater.NewHTTPClient(cfg.UpdateURL)

	return updater.NewOrchestrator(client, identity, paths, relauncher), nil
}

func serviceRunArguments() []string {
	return []string{
		"service",
		"run",
		"--config", configPath,
		"--log-level", logLevel,
		"--log-file", logFile,
	}
}

func configurePlatformSpecificSettings(svcConfig *service.Config) {
	if runtime.GOOS == "linux" {
		// Respected only by systemd systems
		svcConfig.Dependencies = []string{"After=network.target syslog.target"}
	}

	if runtime.GOOS == "windows" {
		svcConfig.Option["OnFailure"] = "restart"
	}
}
