package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rustyeddy/cryptosim/equity"
	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/ledger"
	"github.com/rustyeddy/cryptosim/market"
)

// ListFills returns the fills of run with start <= time < end in time order.
func (j *SQLite) ListFills(run string, start, end time.Time) ([]ledger.Fill, error) {
	rows, err := j.db.Query(`
		SELECT fill_id, position_id, venue, symbol, side, quantity, price, market_price,
		       commission, slippage, time, realized_pnl, reason
		FROM fills
		WHERE run_id = ? AND time >= ? AND time < ?
		ORDER BY time ASC, fill_id ASC`, run, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Fill
	for rows.Next() {
		var (
			f    ledger.Fill
			side string
			pnl  sql.NullFloat64
		)
		if err := rows.Scan(
			&f.ID,
			&f.PositionID,
			&f.Instrument.Venue,
			&f.Instrument.Symbol,
			&side,
			&f.Quantity,
			&f.Price,
			&f.MarketPrice,
			&f.Commission,
			&f.Slippage,
			&f.Time,
			&pnl,
			&f.Reason,
		); err != nil {
			return nil, err
		}
		f.Side = ledger.Side(side)
		f.RealizedPnL = floatPtr(pnl)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityBetween returns the equity points of run with
// start <= time < end in time order.
func (j *SQLite) ListEquityBetween(run string, start, end time.Time) ([]equity.Point, error) {
	rows, err := j.db.Query(`
		SELECT time, cash, positions_value
		FROM equity
		WHERE run_id = ? AND time >= ? AND time < ?
		ORDER BY time ASC`, run, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []equity.Point
	for rows.Next() {
		var (
			ts          time.Time
			cash, value float64
		)
		if err := rows.Scan(&ts, &cash, &value); err != nil {
			return nil, err
		}
		out = append(out, equity.NewPoint(ts, cash, value))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListModeChanges returns every recorded mode transition, oldest first.
func (j *SQLite) ListModeChanges() ([]guard.Transition, error) {
	rows, err := j.db.Query(`
		SELECT from_mode, to_mode, reason, time
		FROM mode_changes
		ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []guard.Transition
	for rows.Next() {
		var (
			tr       guard.Transition
			from, to string
		)
		if err := rows.Scan(&from, &to, &tr.Reason, &tr.At); err != nil {
			return nil, err
		}
		tr.From, tr.To = guard.Mode(from), guard.Mode(to)
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const backtestColumns = `run_id, created, instruments, start_time, end_time, bars, initial_cash,
	final_equity, total_return, sharpe, sortino, calmar, max_drawdown, trades, wins, losses,
	win_rate, profit_factor, benchmark_return, excess_return, config, result`

type scanner interface {
	Scan(dest ...any) error
}

func scanBacktest(s scanner) (BacktestRun, error) {
	var (
		r          BacktestRun
		calmar, pf sql.NullFloat64
	)
	err := s.Scan(
		&r.RunID, &r.Created, &r.Instruments, &r.Start, &r.End, &r.Bars, &r.InitialCash,
		&r.FinalEquity, &r.TotalReturn, &r.Sharpe, &r.Sortino, &calmar, &r.MaxDrawdown,
		&r.Trades, &r.Wins, &r.Losses, &r.WinRate, &pf, &r.BenchmarkReturn, &r.ExcessReturn,
		&r.Config, &r.Result,
	)
	r.Calmar, r.ProfitFactor = floatPtr(calmar), floatPtr(pf)
	return r, err
}

// GetBacktestRun returns one run summary by ID.
func (j *SQLite) GetBacktestRun(runID string) (BacktestRun, error) {
	r, err := scanBacktest(j.db.QueryRow(
		`SELECT `+backtestColumns+` FROM backtest_runs WHERE run_id = ?`, runID))
	if err != nil {
		if err == sql.ErrNoRows {
			return BacktestRun{}, fmt.Errorf("backtest run %q not found", runID)
		}
		return BacktestRun{}, err
	}
	return r, nil
}

// ListBacktestRuns returns up to limit runs, newest first. limit <= 0
// returns all.
func (j *SQLite) ListBacktestRuns(limit int) ([]BacktestRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(
		`SELECT `+backtestColumns+` FROM backtest_runs ORDER BY created DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BacktestRun
	for rows.Next() {
		r, err := scanBacktest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FilterInstrument keeps the fills of inst.
func FilterInstrument(fills []ledger.Fill, inst market.Instrument) []ledger.Fill {
	var out []ledger.Fill
	for _, f := range fills {
		if f.Instrument == inst {
			out = append(out, f)
		}
	}
	return out
}
