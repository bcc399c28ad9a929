package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/cryptosim/equity"
	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/ledger"
)

var (
	fillHeader   = []string{"fill_id", "run_id", "position_id", "instrument", "side", "quantity", "price", "market_price", "commission", "slippage", "time", "realized_pnl", "reason"}
	equityHeader = []string{"run_id", "time", "cash", "positions_value", "equity"}
)

// CSVJournal appends fills and equity points to two CSV files. Equity rows
// are appended, not upserted; mode changes are not written.
type CSVJournal struct {
	mu     sync.Mutex
	fills  *csv.Writer
	equity *csv.Writer
	ff, ef *os.File
}

func NewCSV(fillsPath, equityPath string) (*CSVJournal, error) {
	ff, err := os.Create(fillsPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		_ = ff.Close()
		return nil, err
	}

	j := &CSVJournal{fills: csv.NewWriter(ff), equity: csv.NewWriter(ef), ff: ff, ef: ef}
	if err := j.write(j.fills, fillHeader); err != nil {
		return nil, err
	}
	if err := j.write(j.equity, equityHeader); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) RecordFill(run string, fl ledger.Fill) error {
	pnl := ""
	if fl.RealizedPnL != nil {
		pnl = f(*fl.RealizedPnL)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.write(j.fills, []string{
		fl.ID,
		run,
		fl.PositionID,
		fl.Instrument.Key(),
		string(fl.Side),
		f(fl.Quantity),
		f(fl.Price),
		f(fl.MarketPrice),
		f(fl.Commission),
		f(fl.Slippage),
		fl.Time.UTC().Format(time.RFC3339),
		pnl,
		fl.Reason,
	})
}

func (j *CSVJournal) RecordEquity(run string, p equity.Point) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.write(j.equity, []string{
		run,
		p.Time.UTC().Format(time.RFC3339),
		f(p.Cash),
		f(p.PositionsValue),
		f(p.Equity),
	})
}

func (j *CSVJournal) RecordModeChange(guard.Transition) error { return nil }

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.fills.Flush()
	if err := j.fills.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.ff.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 8, 64)
}
