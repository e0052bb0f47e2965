package main

import (
	"fmt"
	"os"

	"github.com/0xADE/ade-launchd/client/launch"
	"github.com/spf13/cobra"
)

var socketPath string

var rootCmd = &cobra.Command{
	Use:          "ade-launch",
	Short:        "Query and launch applications through ade-launchd",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "daemon socket (default $ADE_LAUNCHD_SOCK or /tmp/ade-<uid>/launchd)")
}

// connect opens a session with the daemon
func connect() (*launch.Client, error) {
	if socketPath != "" {
		return launch.Dial(socketPath)
	}
	return launch.NewClient()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
