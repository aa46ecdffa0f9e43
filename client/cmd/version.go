package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fleetlink/fleetlink/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the Fleetlink version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.FleetlinkVersion())
	},
}
