package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/vynguyen175/vizion/internal/config"
	"github.com/vynguyen175/vizion/internal/logging"
	"github.com/vynguyen175/vizion/internal/store"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Overrides for the loaded configuration
	flagDatabaseURL string
	flagDataDir     string
	flagLogFormat   string

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "vizion",
	Short: "Vizion: upload CSV files, explore them with charts and keep your analyses",
	Long: `Vizion is a browser-based CSV analysis tool. "vizion serve" starts the web UI;
the other commands run the same summaries, cleaning and charts from the terminal.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.vizion/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagDatabaseURL, "database-url", "", "database URL, e.g. sqlite:///vizion.db (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory for uploaded datasets (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: console | json (overrides config)")
}

func loadConfig() {
	if err := applyConfig(); err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
	}
}

func applyConfig() error {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("database-url") && flagDatabaseURL != "" {
		cfg.DatabaseURL = flagDatabaseURL
	}
	if f.Changed("data-dir") && flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if f.Changed("log-format") && flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	return nil
}

// requireConfig returns the loaded configuration or the error that prevented loading it.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	if err := applyConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the loaded configuration.
func newLogger(c *cfgpkg.Global) (*zap.Logger, func(), error) {
	return logging.New(c.LogLevel, c.LogFormat)
}

// openStore opens the configured database, creating the schema if needed.
func openStore(ctx context.Context, c *cfgpkg.Global, log *zap.Logger) (*store.Store, error) {
	st, err := store.Open(ctx, c.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", c.DatabaseURL, err)
	}
	return st, nil
}
