package cmd

import (
	"context"

	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fleetlink/fleetlink/client/internal"
	"github.com/fleetlink/fleetlink/util"
)

func (p *program) Start(s service.Service) error {
	// Start should not block. Do the actual work async.
	log.Info("starting Fleetlink agent service")

	cfg, err := internal.UpdateOrCreateConfig(buildConfigInput())
	if err != nil {
		return err
	}

	manager, err := buildUpdateManager(cfg, s)
	if err != nil {
		return err
	}

	p.manager = manager
	p.manager.Start(p.ctx)
	return nil
}

func (p *program) Stop(s service.Service) error {
	log.Info("stopping Fleetlink agent service")
	if p.manager != nil {
		p.manager.Stop()
	}
	p.cancel()
	return nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "runs the Fleetlink agent as a service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := util.InitLog(logLevel, logFile); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		s, err := newSVC(newProgram(ctx, cancel), newSVCConfig())
		if err != nil {
			return err
		}

		return s.Run()
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "starts the Fleetlink service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		s, err := newSVC(newProgram(ctx, cancel), newSVCConfig())
		if err != nil {
			return err
		}
		if err := s.Start(); err != nil {
			return err
		}
		cmd.Println("Fleetlink service has been started")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "stops the Fleetlink service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		s, err := newSVC(newProgram(ctx, cancel), newSVCConfig())
		if err != nil {
			return err
		}
		if err := s.Stop(); err != nil {
			return err
		}
		cmd.Println("Fleetlink service has been stopped")
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "restarts the Fleetlink service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		s, err := newSVC(newProgram(ctx, cancel), newSVCConfig())
		if err != nil {
			return err
		}
		if err := s.Restart(); err != nil {
			return err
		}
		cmd.Println("Fleetlink service has been restarted")
		return nil
	},
}
