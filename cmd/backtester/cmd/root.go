package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "Backtest long-only strategies on KRX equity bars",
	Long: `Backtester replays daily or intraday KRX bars through a strategy and
simulates a single long position with stop-loss, take-profit and
strategy exits.

It provides tools for:
  - Running one strategy over one symbol and printing its metrics
  - Screening a directory of symbols with one strategy
  - Scanning the latest bars of a directory for entry signals
  - Comparing strategies on the same bars
  - Journaling runs to SQLite or CSV and exporting Org reports`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var (
	cfgFile  string
	envFiles []string
	logLevel string
	logJSON  bool

	// cfg is resolved once per invocation in setup.
	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file, YAML or JSON (defaults when empty)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", nil, "env files to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile, envFiles...)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if logJSON {
		c.Log.JSON = true
	}
	if err := logging.Setup(c.Log.Level, c.Log.JSON); err != nil {
		return err
	}
	cfg = c
	return nil
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}
