package main

import (
	"context"
	"fmt"
	"os"

	"github.com/newthinker/tradesim/internal/app"
	"github.com/newthinker/tradesim/internal/config"
	"github.com/newthinker/tradesim/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "tradesim",
	Short: "tradesim - deterministic backtesting and risk monitoring",
	Long: `tradesim replays strategies over historical bars with an exact-decimal
portfolio ledger, scores portfolio risk bar by bar and raises alerts.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config, or falls back to defaults.
func loadConfig() (*config.Config, bool, error) {
	if cfgFile == "" {
		return config.Defaults(), false, nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, true, nil
}

// newLogger honours --debug over the configured level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	return logger.New(logger.Options{
		Level:       level,
		Development: debug || cfg.Log.Development,
		Format:      cfg.Log.Format,
	})
}

// setup loads config, builds the logger and assembles the app. The caller
// must Close the app and Sync the logger.
func setup(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, fromFile, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	if !fromFile {
		log.Debug("no config file specified, using defaults")
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, fmt.Errorf("initialising: %w", err)
	}
	return a, log, nil
}
