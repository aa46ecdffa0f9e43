package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the Fleetlink service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		svcConfig := newSVCConfig()
		svcConfig.Arguments = serviceRunArguments()
		configurePlatformSpecificSettings(svcConfig)

		s, err := newSVC(newProgram(ctx, cancel), svcConfig)
		if err != nil {
			return err
		}
		if err := s.Install(); err != nil {
			return err
		}
		cmd.Println("Fleetlink service has been installed")
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the Fleetlink service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		s, err := newSVC(newProgram(ctx, cancel), newSVCConfig())
		if err != nil {
			return err
		}
		if err := s.Uninstall(); err != nil {
			return err
		}
		cmd.Println("Fleetlink service has been uninstalled")
		return nil
	},
}
