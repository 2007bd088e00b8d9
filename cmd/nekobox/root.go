package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nekobox",
	Short: "nekobox bridges a QQ account to the Satori bot protocol",
	Long: `nekobox is an adapter that exposes a QQ account through the Satori
chat-bot protocol. Bots written against any Satori SDK connect to the
adapter's HTTP/WebSocket surface while the underlying account speaks the
native IM protocol through a Lagrange-style client gateway.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
