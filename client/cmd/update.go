package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fleetlink/fleetlink/client/internal"
	"github.com/fleetlink/fleetlink/client/internal/updater"
	"github.com/fleetlink/fleetlink/util"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for a new Fleetlink build and apply it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := util.InitLog(logLevel, "console"); err != nil {
			return err
		}

		cfg, err := internal.UpdateOrCreateConfig(buildConfigInput())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		s, err := newSVC(newProgram(ctx, cancel), newSVCConfig())
		if err != nil {
			return err
		}

		orchestrator, err := buildOrchestrator(cfg, s)
		if err != nil {
			return err
		}

		if err := orchestrator.Run(ctx); err != nil {
			return err
		}

		if orchestrator.State() == updater.StateIdle {
			cmd.Println("No update available")
			return nil
		}

		cmd.Println("Update applied, the new instance is running")
		return nil
	},
}
