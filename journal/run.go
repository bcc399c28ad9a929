package journal

import "time"

// BacktestRun mirrors the backtest_runs table. Calmar and ProfitFactor are
// nil when undefined.
type BacktestRun struct {
	RunID       string
	Created     time.Time
	Instruments string

	Start time.Time
	End   time.Time
	Bars  int

	InitialCash float64
	FinalEquity float64
	TotalReturn float64
	Sharpe      float64
	Sortino     float64
	Calmar      *float64
	MaxDrawdown float64

	Trades       int
	Wins         int
	Losses       int
	WinRate      float64
	ProfitFactor *float64

	BenchmarkReturn float64
	ExcessReturn    float64

	Config []byte // JSON
	Result []byte // JSON
}
