// README: Entry point; cobra root command for the driver dispatch bot.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"driverbot/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "driverbot",
	Short:         "Telegram driver dispatch bot",
	SilenceUsage:  true,
	SilenceErrors: true,
	// serve is the default action.
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
