package cmd

import (
	"context"
	"fmt"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/notify"
	"github.com/rustyeddy/backtester/report"
	"github.com/rustyeddy/backtester/strategies"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run one strategy over one bar file",
	Long: `Backtest replays a bar CSV (timestamp,open,high,low,close,volume)
through a strategy and prints the performance metrics.

Supported strategies:
  - limit_up: daily limit-up follow-through inside a box range
  - breakout: daily box breakout on volume
  - minute15: 15-minute long candle on a volume spike above MA60
  - minute30: 30-minute pullback to MA60 support
  - noop: never trades (baseline)

Flags override the values of the config file.

Example:
  backtester backtest --data data/005930.csv --strategy breakout --start 2023-01-02 --db runs.sqlite`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

var (
	btData      string
	btSymbol    string
	btStrategy  string
	btParams    map[string]string
	btTimeframe string
	btStart     string
	btEnd       string
	btCapital   float64
	btDBPath    string
	btCSVDir    string
	btNotify    bool
	btTrades    bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btData, "data", "d", "", "bar CSV file")
	backtestCmd.Flags().StringVar(&btSymbol, "symbol", "", "symbol (default: file name)")
	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "", "strategy id")
	backtestCmd.Flags().StringToStringVarP(&btParams, "param", "p", nil, "strategy parameter override, key=value")
	backtestCmd.Flags().StringVarP(&btTimeframe, "timeframe", "t", "", "bar timeframe: 1d, 30m, 15m ...")
	backtestCmd.Flags().StringVar(&btStart, "start", "", "first bar of the range (inclusive)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "last bar of the range (inclusive)")
	backtestCmd.Flags().Float64Var(&btCapital, "capital", 0, "initial capital in KRW")
	backtestCmd.Flags().StringVar(&btDBPath, "db", "", "journal the run to this SQLite file")
	backtestCmd.Flags().StringVar(&btCSVDir, "csv-dir", "", "journal the run as CSV files in this directory")
	backtestCmd.Flags().BoolVar(&btNotify, "notify", false, "send signals and the result to Telegram")
	backtestCmd.Flags().BoolVar(&btTrades, "trades", false, "also print the trade list")

	backtestCmd.MarkFlagsMutuallyExclusive("db", "csv-dir")
}

// applyBacktestFlags copies explicitly set flags over c.
func applyBacktestFlags(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	if f.Changed("data") {
		c.Data.CSV = btData
	}
	if f.Changed("symbol") {
		c.Data.Symbol = btSymbol
	}
	if f.Changed("strategy") {
		c.Strategy.ID = btStrategy
		c.Strategy.Params = nil
	}
	if f.Changed("param") {
		p, err := parseParams(btParams)
		if err != nil {
			return err
		}
		c.Strategy.Params = p
	}
	if f.Changed("timeframe") {
		c.Data.Timeframe = btTimeframe
	}
	if f.Changed("start") {
		c.Data.Start = btStart
	}
	if f.Changed("end") {
		c.Data.End = btEnd
	}
	if f.Changed("capital") {
		c.Account.InitialCapital = btCapital
	}
	if f.Changed("db") {
		c.Journal = config.JournalConfig{Type: config.JournalSQLite, DBPath: btDBPath}
	}
	if f.Changed("csv-dir") {
		c.Journal = config.JournalConfig{Type: config.JournalCSV, Dir: btCSVDir}
	}
	if btNotify {
		c.Notify.Telegram = true
	}
	return c.Validate()
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := applyBacktestFlags(cmd, cfg); err != nil {
		return err
	}

	tf, _ := cfg.Timeframe()
	series, err := loadSeries(cfg.Data.CSV, cfg.Data.Symbol, tf)
	if err != nil {
		return err
	}
	strat, err := cfg.NewStrategy()
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	start, end, _ := cfg.Range()

	var opts []backtest.Option
	var d *notify.Dispatcher
	if cfg.Notify.Telegram {
		if d, err = newDispatcher(cfg); err != nil {
			return err
		}
		defer d.Close()
		opts = append(opts, backtest.WithSignalHook(func(_ context.Context, sig strategies.Signal) {
			d.Publish(notify.SignalEvent(sig))
		}))
	}

	engine, err := backtest.NewEngine(cfg.Backtest(), opts...)
	if err != nil {
		return err
	}
	res, err := engine.Run(ctx, strat, series, start, end)
	if err != nil {
		if d != nil {
			d.Publish(notify.ErrorEvent(err))
		}
		return fmt.Errorf("backtest: %w", err)
	}

	runID := id.New()
	saved := saveResult(ctx, cfg, runID, res)

	out := cmd.OutOrStdout()
	if err := report.WriteResult(out, res); err != nil {
		return err
	}
	if btTrades {
		fmt.Fprintln(out)
		if err := report.WriteTrades(out, res.Trades); err != nil {
			return err
		}
	}
	if saved {
		fmt.Fprintf(out, "run: %s\n", runID)
	}

	if d != nil {
		d.Publish(notify.ResultEvent(res))
	}
	return nil
}

// saveResult journals res when a sink is configured. Failures are logged and
// the result is still reported.
func saveResult(ctx context.Context, c *config.Config, runID string, res *backtest.Result) bool {
	sink, err := openSink(c)
	if err != nil {
		log.WithError(err).Error("journal unavailable, run not saved")
		return false
	}
	if sink == nil {
		return false
	}
	defer sink.Close()

	logger := log.WithContext(ctx).WithFields(log.Fields{"run": runID, "journal": c.Journal.Type})
	if err := sink.SaveResult(ctx, runID, res); err != nil {
		logger.WithError(err).Error("run not saved")
		return false
	}
	logger.Info("run saved")
	return true
}
