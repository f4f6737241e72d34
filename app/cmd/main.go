package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pluginrelay",
	Short: "Relay that turns plain-language requests into WooCommerce plugins",
	Long: `pluginrelay wraps a request in a fixed WooCommerce instruction template,
asks an external text-generation API for a single-file plugin and returns
the cleaned PHP code.

Commands:
  serve       Run the HTTP relay
  generate    Ask a running relay for a plugin and save custom-plugin.php
  version     Show version info`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
