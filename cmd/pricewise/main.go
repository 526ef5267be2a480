// pricewise compares a model's price estimate for a product against prices
// found on the live web.
//
// Usage:
//
//	pricewise compare "Dell XPS 13 laptop" [--format=json|text|html|yaml] [--save] [--trace]
//	pricewise history [--limit=N] [--assessment=within_range|outside_range|none] [--since=24h]
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/FranksOps/pricewise/internal/config"
	"github.com/FranksOps/pricewise/internal/logging"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// cfg is loaded once per invocation by the root command's pre-run hook.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pricewise",
	Short: "Compare predicted product prices against the live market",
	Long: "pricewise asks a price model for an estimate, searches the web for listings,\n" +
		"extracts the prices they mention and explains how the estimate compares.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: loadConfig,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.configPath, "config", "", "Config file (YAML, TOML or JSON)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.Version = version
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(rootFlags.configPath)
	if err != nil {
		return err
	}
	if rootFlags.logLevel != "" {
		loaded.Log.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		loaded.Log.Format = rootFlags.logFormat
	}

	level, err := logging.ParseLevel(loaded.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, loaded.Log.Format, cmd.ErrOrStderr())
	slog.Debug("configuration loaded", "config", rootFlags.configPath)

	cfg = loaded
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
