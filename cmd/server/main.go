package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ichat",
	Short: "Realtime group chat server",
	Long: `ichat is a realtime chat server. Clients connect over WebSocket to talk
in rooms, private conversations and ad-hoc groups, and share files through
the REST API.

Settings come from the YAML file given with --config, then from the
environment (a .env file in the working directory is loaded first).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ichat.yaml", "Path to the YAML configuration file")
	rootCmd.AddCommand(serveCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
