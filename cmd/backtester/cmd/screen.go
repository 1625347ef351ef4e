package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/report"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Run one strategy over every bar file in a directory",
	Long: `Screen runs the strategy over each *.csv in a directory in parallel and
ranks the symbols by total return. The file name is the symbol.

Example:
  backtester screen --dir data/daily --strategy limit_up --workers 8`,
	Args: cobra.NoArgs,
	RunE: runScreen,
}

var (
	scDir       string
	scStrategy  string
	scTimeframe string
	scWorkers   int
	scTop       int
	scDBPath    string
)

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().StringVar(&scDir, "dir", "", "directory of bar CSV files (required)")
	screenCmd.Flags().StringVarP(&scStrategy, "strategy", "s", "", "strategy id (default from config)")
	screenCmd.Flags().StringVarP(&scTimeframe, "timeframe", "t", "", "bar timeframe (default from config)")
	screenCmd.Flags().IntVarP(&scWorkers, "workers", "w", 0, "parallel runs (0 = one per CPU)")
	screenCmd.Flags().IntVar(&scTop, "top", 0, "print only the best n symbols (0 = all)")
	screenCmd.Flags().StringVar(&scDBPath, "db", "", "journal every successful run to this SQLite file")

	screenCmd.MarkFlagRequired("dir")
}

func runScreen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if cmd.Flags().Changed("strategy") {
		cfg.Strategy = config.StrategyConfig{ID: scStrategy}
	}
	if cmd.Flags().Changed("timeframe") {
		cfg.Data.Timeframe = scTimeframe
	}
	if scDBPath != "" {
		cfg.Journal = config.JournalConfig{Type: config.JournalSQLite, DBPath: scDBPath}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	files, err := filepath.Glob(filepath.Join(scDir, "*.csv"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no csv files in %s", scDir)
	}
	sort.Strings(files)

	tf, _ := cfg.Timeframe()
	start, end, _ := cfg.Range()

	var jobs []backtest.Job
	var failed []backtest.JobResult
	for _, f := range files {
		name := symbolFromPath(f)
		series, err := loadSeries(f, name, tf)
		if err != nil {
			log.WithField("file", f).WithError(err).Warn("skipping symbol")
			failed = append(failed, backtest.JobResult{Job: backtest.Job{Name: name}, Err: err})
			continue
		}
		strat, err := cfg.NewStrategy()
		if err != nil {
			return fmt.Errorf("strategy: %w", err)
		}
		jobs = append(jobs, backtest.Job{Name: name, Series: series, Strategy: strat, Start: start, End: end})
	}

	engine, err := backtest.NewEngine(cfg.Backtest())
	if err != nil {
		return err
	}
	runner := &backtest.Runner{Engine: engine, Workers: scWorkers}
	results, err := runner.Run(ctx, jobs)
	if err != nil {
		return fmt.Errorf("screen: %w", err)
	}

	for _, jr := range results {
		if jr.Err == nil {
			saveResult(ctx, cfg, id.New(), jr.Result)
		}
	}

	rows := report.Rank(append(results, failed...))
	if scTop > 0 && scTop < len(rows) {
		rows = rows[:scTop]
	}
	log.WithFields(log.Fields{
		"symbols":  len(files),
		"strategy": cfg.Strategy.ID,
	}).Info("screen finished")
	return report.WriteScreen(cmd.OutOrStdout(), rows)
}
