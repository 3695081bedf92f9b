// Castwatch watches cast receivers on the local network and reports what they
// are playing.
//
// It discovers receivers over mDNS, polls their media status, and exposes the
// result over HTTP, a WebSocket event stream and, optionally, MQTT.
//
// Usage:
//
//	castwatch [command] [flags]
//
// See 'castwatch --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/castwatch/castwatch/internal/config"
	"github.com/castwatch/castwatch/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "castwatch",
	Short: "Cast receiver status monitor",
	Long: `Castwatch discovers cast receivers on the local network and keeps track
of the media each one is playing.

Run 'castwatch serve' for the long-running monitor with its HTTP API, or
'castwatch scan' for a one-shot look at the network.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the config selected by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "castwatch %s\n", version.Full())
	},
}
