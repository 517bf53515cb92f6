// -----------------------------------------------------------------------
// Last Modified: Thursday, 15th October 2026 10:21:55 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/common"
)

var (
	// Command-line flags
	configFiles []string // Multiple -c flags supported, later files override earlier ones
	serverPort  int
	serverHost  string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "benchdash",
	Short: "Benchmark results dashboard",
	Long: `Benchdash archives benchmark runs and keeps the attribute lookup used by the
results dashboard in step with the tests each run declares.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times)")
	rootCmd.PersistentFlags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&serverHost, "host", "", "Server host (overrides config)")

	rootCmd.AddCommand(serveCmd, reconcileCmd, versionCmd)
}

// loadConfig runs the startup sequence shared by every command:
// defaults -> config files -> env -> CLI flags, then the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd == versionCmd {
		return nil
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("benchdash.toml"); err == nil {
			configFiles = append(configFiles, "benchdash.toml")
		} else if _, err := os.Stat("deployments/local/benchdash.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/benchdash.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration %v: %w", configFiles, err)
	}

	common.ApplyFlagOverrides(config, serverPort, serverHost)

	logger = common.InitLogger(config)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("storage_type", config.Storage.Type).
		Str("log_level", config.Logging.Level).
		Msg("Configuration loaded")

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
