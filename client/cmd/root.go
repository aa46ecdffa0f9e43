package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fleetlink/fleetlink/client/internal"
)

var (
	configPath  string
	logLevel    string
	logFile     string
	serviceName string
	updateURL   string
	targetDir   string

	rootCmd = &cobra.Command{
		Use:          "fleetlink",
		Short:        "Fleetlink keeps a fleet of machines connected and up to date",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultConfigPathDir := "/etc/fleetlink/"
	defaultLogFileDir := "/var/log/fleetlink/"
	if runtime.GOOS == "windows" {
		defaultConfigPathDir = os.Getenv("PROGRAMDATA") + "\\Fleetlink\\"
		defaultLogFileDir = os.Getenv("PROGRAMDATA") + "\\Fleetlink\\"
	}

	defaultServiceName := "fleetlink"
	if runtime.GOOS == "windows" {
		defaultServiceName = "Fleetlink"
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPathDir+"config.json", "Fleetlink config file location")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "sets Fleetlink log level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", defaultLogFileDir+"agent.log", "sets Fleetlink log path. If console is specified the log will be output to stdout")
	rootCmd.PersistentFlags().StringVarP(&serviceName, "service", "s", defaultServiceName, "Fleetlink system service name")
	rootCmd.PersistentFlags().StringVar(&updateURL, "update-url", "", fmt.Sprintf("Update service URL (default %q)", internal.DefaultUpdateURL))
	rootCmd.PersistentFlags().StringVar(&targetDir, "target-dir", "", "Installation directory upgrades are written to")

	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}

func buildConfigInput() internal.ConfigInput {
	input := internal.ConfigInput{ConfigPath: configPath}
	if updateURL != "" {
		input.UpdateURL = &updateURL
	}
	if targetDir != "" {
		input.TargetDir = &targetDir
	}
	return input
}
