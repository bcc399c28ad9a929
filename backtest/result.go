package backtest

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/rustyeddy/cryptosim/equity"
	"github.com/rustyeddy/cryptosim/journal"
	"github.com/rustyeddy/cryptosim/ledger"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/rustyeddy/cryptosim/sim"
)

// Stats are the strategy statistics of a run. Calmar and ProfitFactor are
// null when undefined.
type Stats struct {
	TotalReturn  float64         `json:"total_return"`
	Sharpe       float64         `json:"sharpe"`
	Sortino      float64         `json:"sortino"`
	Calmar       *float64        `json:"calmar"`
	MaxDrawdown  equity.Drawdown `json:"max_drawdown"`
	Trades       int             `json:"trades"`
	Wins         int             `json:"wins"`
	Losses       int             `json:"losses"`
	WinRate      float64         `json:"win_rate"`
	AvgWin       float64         `json:"avg_win"`
	AvgLoss      float64         `json:"avg_loss"`
	ProfitFactor *float64        `json:"profit_factor"`
	ExposureTime float64         `json:"exposure_time"`
	Commission   float64         `json:"commission"`
	Slippage     float64         `json:"slippage"`
}

// Benchmark is buy-and-hold over the same bars and cost model.
type Benchmark struct {
	Quantity     float64         `json:"quantity"`
	FinalEquity  float64         `json:"final_equity"`
	TotalReturn  float64         `json:"total_return"`
	Sharpe       float64         `json:"sharpe"`
	MaxDrawdown  equity.Drawdown `json:"max_drawdown"`
	ExcessReturn float64         `json:"excess_return"`
	Beats        bool            `json:"beats_benchmark"`
}

// StepError is a per-bar failure that did not abort the run.
type StepError struct {
	Time    time.Time `json:"time"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

type Result struct {
	RunID          string            `json:"run_id"`
	Instrument     market.Instrument `json:"instrument"`
	Config         Config            `json:"config"`
	Start          time.Time         `json:"start"`
	End            time.Time         `json:"end"`
	Bars           int               `json:"bars"`
	PeriodsPerYear float64           `json:"periods_per_year"`
	InitialCash    float64           `json:"initial_cash"`
	FinalEquity    float64           `json:"final_equity"`
	Stats          Stats             `json:"stats"`
	Benchmark      Benchmark         `json:"benchmark"`
	Trades         []ledger.Fill     `json:"trades"`
	EquityCurve    []equity.Point    `json:"equity_curve"`
	Returns        []float64         `json:"returns"`
	Rejected       []sim.Rejection   `json:"rejected"`
	Errors         []StepError       `json:"errors"`
}

// JSON encodes the result with stable field order, so two identical runs
// give identical bytes.
func (r Result) JSON() ([]byte, error) {
	return sonic.ConfigStd.MarshalIndent(r, "", "  ")
}

// Run converts the result into a journal row carrying the JSON config and
// result.
func (r Result) Run(created time.Time) (journal.BacktestRun, error) {
	cfg, err := sonic.ConfigStd.Marshal(r.Config)
	if err != nil {
		return journal.BacktestRun{}, err
	}
	body, err := r.JSON()
	if err != nil {
		return journal.BacktestRun{}, err
	}
	return journal.BacktestRun{
		RunID:           r.RunID,
		Created:         created,
		Instruments:     r.Instrument.Key(),
		Start:           r.Start,
		End:             r.End,
		Bars:            r.Bars,
		InitialCash:     r.InitialCash,
		FinalEquity:     r.FinalEquity,
		TotalReturn:     r.Stats.TotalReturn,
		Sharpe:          r.Stats.Sharpe,
		Sortino:         r.Stats.Sortino,
		Calmar:          r.Stats.Calmar,
		MaxDrawdown:     r.Stats.MaxDrawdown.Pct,
		Trades:          r.Stats.Trades,
		Wins:            r.Stats.Wins,
		Losses:          r.Stats.Losses,
		WinRate:         r.Stats.WinRate,
		ProfitFactor:    r.Stats.ProfitFactor,
		BenchmarkReturn: r.Benchmark.TotalReturn,
		ExcessReturn:    r.Benchmark.ExcessReturn,
		Config:          cfg,
		Result:          body,
	}, nil
}
