package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rustyeddy/backtester/report"
	"github.com/rustyeddy/backtester/screener"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find symbols whose latest bar passes the filters and triggers an entry",
	Long: `Scan applies a filter preset to the latest bars of every *.csv in a
directory, asks each strategy for a signal on the last bar and ranks the
entries by signal strength. The file name is the symbol.

Presets: default, aggressive, conservative, volume_focus, breakout.

Example:
  backtester scan --dir data/daily --strategies limit_up,breakout --preset breakout --notify`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	snDir        string
	snStrategies []string
	snPreset     string
	snTimeframe  string
	snWorkers    int
	snTop        int
	snNotify     bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&snDir, "dir", "", "directory of bar CSV files (required)")
	scanCmd.Flags().StringSliceVar(&snStrategies, "strategies", nil, "strategy ids (default: every strategy but noop)")
	scanCmd.Flags().StringVar(&snPreset, "preset", screener.PresetDefault, "filter preset")
	scanCmd.Flags().StringVarP(&snTimeframe, "timeframe", "t", "", "bar timeframe (default from config)")
	scanCmd.Flags().IntVarP(&snWorkers, "workers", "w", 0, "parallel symbols (0 = one per CPU)")
	scanCmd.Flags().IntVar(&snTop, "top", 20, "print and notify the best n signals (0 = all)")
	scanCmd.Flags().BoolVar(&snNotify, "notify", false, "send the summary to Telegram")

	scanCmd.MarkFlagRequired("dir")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if cmd.Flags().Changed("timeframe") {
		cfg.Data.Timeframe = snTimeframe
	}
	if snNotify {
		cfg.Notify.Telegram = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc, err := screener.New(snStrategies, snPreset)
	if err != nil {
		return err
	}
	sc.Workers = snWorkers

	files, err := filepath.Glob(filepath.Join(snDir, "*.csv"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no csv files in %s", snDir)
	}
	sort.Strings(files)

	tf, _ := cfg.Timeframe()
	stocks := make([]screener.Stock, 0, len(files))
	for _, f := range files {
		code := symbolFromPath(f)
		series, err := loadSeries(f, code, tf)
		if err != nil {
			log.WithField("file", f).WithError(err).Warn("skipping symbol")
			continue
		}
		stocks = append(stocks, screener.Stock{Code: code, Name: code, Series: series})
	}

	rep, err := sc.ScreenStocks(ctx, stocks)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if cfg.Notify.Telegram {
		d, err := newDispatcher(cfg)
		if err != nil {
			return err
		}
		rep.Notify(d, snTop)
		d.Close()
		log.WithFields(log.Fields{
			"delivered": d.Delivered(),
			"failed":    d.Failed(),
		}).Debug("scan notifications sent")
	}
	return report.WriteScan(cmd.OutOrStdout(), rep, snTop)
}
