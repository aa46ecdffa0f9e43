package main

import (
	"os"

	"github.com/fleetlink/fleetlink/client/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
