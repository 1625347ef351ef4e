package cmd

import (
	"fmt"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/report"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run several strategies over the same bars",
	Long: `Compare runs each strategy over one bar file and prints their metrics
side by side, best total return first. Strategies written for another
timeframe are reported as failures.

Example:
  backtester compare --data data/005930.csv --strategies limit_up,breakout,noop`,
	Args: cobra.NoArgs,
	RunE: runCompare,
}

var (
	cmpData       string
	cmpSymbol     string
	cmpTimeframe  string
	cmpStrategies []string
)

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringVarP(&cmpData, "data", "d", "", "bar CSV file (default from config)")
	compareCmd.Flags().StringVar(&cmpSymbol, "symbol", "", "symbol (default: file name)")
	compareCmd.Flags().StringVarP(&cmpTimeframe, "timeframe", "t", "", "bar timeframe (default from config)")
	compareCmd.Flags().StringSliceVar(&cmpStrategies, "strategies", nil, "comma separated strategy ids (default: all)")
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if cmd.Flags().Changed("data") {
		cfg.Data.CSV = cmpData
	}
	if cmd.Flags().Changed("symbol") {
		cfg.Data.Symbol = cmpSymbol
	}
	if cmd.Flags().Changed("timeframe") {
		cfg.Data.Timeframe = cmpTimeframe
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	tf, _ := cfg.Timeframe()
	series, err := loadSeries(cfg.Data.CSV, cfg.Data.Symbol, tf)
	if err != nil {
		return err
	}
	start, end, _ := cfg.Range()

	names := cmpStrategies
	if len(names) == 0 {
		for _, id := range strategies.IDs() {
			names = append(names, string(id))
		}
	}

	jobs := make([]backtest.Job, 0, len(names))
	for _, name := range names {
		strat, err := strategies.ByName(name, nil)
		if err != nil {
			return err
		}
		jobs = append(jobs, backtest.Job{
			Name:     string(strat.ID()),
			Series:   series,
			Strategy: strat,
			Start:    start,
			End:      end,
		})
	}

	engine, err := backtest.NewEngine(cfg.Backtest())
	if err != nil {
		return err
	}
	results, err := (&backtest.Runner{Engine: engine}).Run(ctx, jobs)
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	out := cmd.OutOrStdout()
	var ok []*backtest.Result
	for _, jr := range results {
		if jr.Err != nil {
			fmt.Fprintf(out, "%s: %v\n", jr.Job.Name, jr.Err)
			continue
		}
		ok = append(ok, jr.Result)
	}
	return report.WriteComparison(out, ok)
}
