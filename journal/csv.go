package journal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rustyeddy/backtester/backtest"
)

// CSV writes each run to its own trades and equity files under Dir and
// appends a summary line to runs.csv.
type CSV struct {
	Dir string

	mu sync.Mutex
}

func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &CSV{Dir: dir}, nil
}

func (j *CSV) TradesPath(runID string) string {
	return filepath.Join(j.Dir, runID+"-trades.csv")
}

func (j *CSV) EquityPath(runID string) string {
	return filepath.Join(j.Dir, runID+"-equity.csv")
}

func (j *CSV) RunsPath() string {
	return filepath.Join(j.Dir, "runs.csv")
}

func (j *CSV) SaveResult(_ context.Context, runID string, res *backtest.Result) error {
	run, trades, equity, err := Records(runID, time.Now(), res)
	if err != nil {
		return err
	}

	if err := writeCSV(j.TradesPath(runID), &trades); err != nil {
		return fmt.Errorf("trades csv: %w", err)
	}
	if err := writeCSV(j.EquityPath(runID), &equity); err != nil {
		return fmt.Errorf("equity csv: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return appendRun(j.RunsPath(), run)
}

func writeCSV(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(rows, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// appendRun writes the header only when the file is new.
func appendRun(path string, run RunRecord) error {
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	rows := []RunRecord{run}
	if fresh {
		err = gocsv.Marshal(&rows, f)
	} else {
		err = gocsv.MarshalWithoutHeaders(&rows, f)
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("runs csv: %w", err)
	}
	return f.Close()
}

// ReadTrades loads a trades file written by SaveResult.
func ReadTrades(path string) ([]TradeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []TradeRecord
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rows, nil
}

func ReadRuns(path string) ([]RunRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []RunRecord
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rows, nil
}

func (j *CSV) Close() error { return nil }
