// pacserver runs the authoritative multiplayer server for the
// cooperative inverted-Pac-Man arcade game: humans control ghosts over
// WebSocket, the server runs the Pac-Man AI and owns the only copy of
// game state.
//
// Usage:
//
//	pacserver serve             - Start the HTTP/WebSocket server
//
// Global flags:
//
//	--config <path>   - Path to a YAML config file (default: ./config.yaml)
//	--debug           - Enable debug-level logging
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfigPath string
	flagDebug      bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pacserver",
	Short: "Authoritative server for the cooperative inverted-Pac-Man arcade game",
	Long: `pacserver hosts rooms in which up to four humans each control a
ghost over WebSocket while the server drives an AI-controlled Pac-Man.

Examples:
  pacserver serve
  pacserver serve --config ./config.yaml --debug`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Path to a YAML config file (default: ./config.yaml, else compiled defaults)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug-level logging")

	rootCmd.AddCommand(serveCmd)
}
