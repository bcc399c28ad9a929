package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/cryptosim/equity"
	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/ledger"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordFill(run string, f ledger.Fill) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(fill_id, run_id, position_id, venue, symbol, side, quantity, price, market_price,
		 commission, slippage, time, realized_pnl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, run, f.PositionID, f.Instrument.Venue, f.Instrument.Symbol, string(f.Side),
		f.Quantity, f.Price, f.MarketPrice, f.Commission, f.Slippage,
		f.Time.UTC(), nullFloat(f.RealizedPnL), f.Reason,
	)
	return err
}

// RecordEquity upserts on (run, time) so a retried tick replaces its
// earlier point.
func (j *SQLite) RecordEquity(run string, p equity.Point) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (run_id, time, cash, positions_value, equity)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, time) DO UPDATE SET
			cash = excluded.cash,
			positions_value = excluded.positions_value,
			equity = excluded.equity`,
		run, p.Time.UTC(), p.Cash, p.PositionsValue, p.Equity,
	)
	return err
}

func (j *SQLite) RecordModeChange(tr guard.Transition) error {
	_, err := j.db.Exec(`
		INSERT INTO mode_changes (from_mode, to_mode, reason, time)
		VALUES (?, ?, ?, ?)`,
		string(tr.From), string(tr.To), tr.Reason, tr.At.UTC(),
	)
	return err
}

// RecordBacktest stores or replaces a run summary.
func (j *SQLite) RecordBacktest(r BacktestRun) error {
	if r.Created.IsZero() {
		r.Created = time.Now()
	}
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO backtest_runs
		(run_id, created, instruments, start_time, end_time, bars, initial_cash, final_equity,
		 total_return, sharpe, sortino, calmar, max_drawdown, trades, wins, losses, win_rate,
		 profit_factor, benchmark_return, excess_return, config, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Created.UTC(), r.Instruments, r.Start.UTC(), r.End.UTC(), r.Bars,
		r.InitialCash, r.FinalEquity, r.TotalReturn, r.Sharpe, r.Sortino, nullFloat(r.Calmar),
		r.MaxDrawdown, r.Trades, r.Wins, r.Losses, r.WinRate, nullFloat(r.ProfitFactor),
		r.BenchmarkReturn, r.ExcessReturn, r.Config, r.Result,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
