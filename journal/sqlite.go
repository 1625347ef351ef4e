package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/backtester/backtest"
)

// SQLite keeps every run in one database file. Times are stored in UTC so
// that range queries compare correctly as text.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// SaveResult writes the run, its trades and its equity curve in one
// transaction.
func (j *SQLite) SaveResult(ctx context.Context, runID string, res *backtest.Result) error {
	run, trades, equity, err := Records(runID, time.Now(), res)
	if err != nil {
		return err
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertRun(ctx, tx, run); err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	for _, t := range trades {
		if err := insertTrade(ctx, tx, t); err != nil {
			return fmt.Errorf("insert trade %s: %w", t.TradeID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO equity (run_id, time, equity) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range equity {
		if _, err := stmt.ExecContext(ctx, e.RunID, e.Time.UTC(), e.Equity); err != nil {
			return fmt.Errorf("insert equity %s: %w", e.Time.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

func insertRun(ctx context.Context, tx *sql.Tx, r RunRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, created, strategy, symbol, timeframe, start_time, end_time, initial_capital, final_equity, trades, config, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created.UTC(), r.Strategy, r.Symbol, r.Timeframe,
		r.Start.UTC(), r.End.UTC(), r.InitialCapital, r.FinalEquity, r.Trades,
		string(r.Config), string(r.Metrics),
	)
	return err
}

func insertTrade(ctx context.Context, tx *sql.Tx, t TradeRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO trades
		(trade_id, run_id, symbol, strategy, entry_time, entry_price, exit_time, exit_price, shares, pnl, reason, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.RunID, t.Symbol, t.Strategy, t.EntryTime.UTC(), t.EntryPrice,
		t.ExitTime.UTC(), t.ExitPrice, t.Shares, t.PnL, t.Reason, t.Detail,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
