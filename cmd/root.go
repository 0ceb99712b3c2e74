// ABOUTME: Root command for the technoshield console
// ABOUTME: Handles global flags and configuration

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drake-forum/technoshield/internal/config"
	"github.com/drake-forum/technoshield/internal/logger"
)

var (
	apiURL     string
	jsonOutput bool
	configPath string
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "technoshield",
	Short: "Analyst console for the TechnoShield alert backend",
	Long: `technoshield is a terminal console for security analysts.

It lists and inspects alerts and incidents, files new incidents, and runs a live
dashboard ("technoshield tui") that polls the backend while the terminal has focus.

Environment Variables:
  TECHNOSHIELD_API_URL              Backend API URL (default: http://localhost:8000)
  TECHNOSHIELD_CONFIG               YAML config file (default: ~/.config/technoshield/config.yaml)
  TECHNOSHIELD_REFETCH_INTERVAL_MS  Dashboard polling interval (default: 60000)
  TECHNOSHIELD_PAGE_SIZE            Rows per list page (default: 5)
  TECHNOSHIELD_TOKEN_FILE           Credential file (default: ~/.config/technoshield/token.json)
  LOG_LEVEL, LOG_FORMAT             Logging to stderr (default: info, text)`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(os.Stderr)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend API URL (overrides TECHNOSHIELD_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (overrides TECHNOSHIELD_CONFIG)")
}

// GetConfigPath returns the config file from flag or env. Empty means the default location.
func GetConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv("TECHNOSHIELD_CONFIG")
}

// LoadConfig loads configuration and applies the --api-url flag last.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.API.URL = apiURL
		if err := cfg.API.Validate(); err != nil {
			return nil, fmt.Errorf("--api-url: %w", err)
		}
	}
	return cfg, nil
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}
