package backtest

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/cryptosim/journal"
	"github.com/rustyeddy/cryptosim/ledger"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/rustyeddy/cryptosim/risk"
	"github.com/rustyeddy/cryptosim/simerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func hourlyBars(closes ...float64) []market.Bar {
	out := make([]market.Bar, len(closes))
	prev := closes[0]
	for i, c := range closes {
		out[i] = market.Bar{
			Time:  t0.Add(time.Duration(i) * time.Hour),
			Open:  prev,
			High:  max(prev, c),
			Low:   min(prev, c),
			Close: c,
		}
		prev = c
	}
	return out
}

func scenarioConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialCash = 1000
	cfg.Policy = risk.Policy{StopLossPct: 0.10, Cooldown: 6 * time.Hour, MinBars: 5}
	return cfg
}

func scenarioInputs() ([]market.Bar, []market.Signal) {
	bars := hourlyBars(100, 110, 121, 90, 95)
	signals := []market.Signal{
		{Time: bars[0].Time, Direction: market.Buy, Probability: 0.7},
		{Time: bars[3].Time, Direction: market.Buy, Probability: 0.8},
	}
	return bars, signals
}

func TestRunStopLossScenario(t *testing.T) {
	t.Parallel()

	bars, signals := scenarioInputs()
	cfg := scenarioConfig()
	cfg.Logger = zaptest.NewLogger(t)

	res, err := Run(context.Background(), bars, signals, cfg)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	entry, exit := res.Trades[0], res.Trades[1]
	assert.Equal(t, ledger.Buy, entry.Side)
	assert.Equal(t, bars[1].Time, entry.Time)
	assert.Equal(t, 100.0, entry.MarketPrice)
	assert.Equal(t, string(risk.StopLoss), exit.Reason)
	assert.Equal(t, bars[3].Time, exit.Time)

	pnl := *exit.RealizedPnL
	assert.InDelta(t, -0.10*entry.Quantity*100, pnl, 0.01*entry.Quantity*100)
	assert.Less(t, pnl, 0.0)

	var cooldown bool
	for _, r := range res.Rejected {
		if r.Code == "COOLDOWN" {
			cooldown = true
		}
	}
	assert.True(t, cooldown, "bar 4 entry suppressed by cooldown")

	assert.Equal(t, 1, res.Stats.Trades)
	assert.Equal(t, 1, res.Stats.Losses)
	assert.Zero(t, res.Stats.WinRate)
	require.NotNil(t, res.Stats.ProfitFactor)
	assert.Zero(t, *res.Stats.ProfitFactor)
	assert.InDelta(t, entry.Commission+exit.Commission, res.Stats.Commission, 1e-12)

	require.Len(t, res.EquityCurve, 5)
	assert.InDelta(t, 1000+pnl-entry.Commission, res.FinalEquity, 1e-9)
	assert.InDelta(t, res.FinalEquity/1000-1, res.Stats.TotalReturn, 1e-12)
	assert.InDelta(t, 0.4, res.Stats.ExposureTime, 1e-12)

	assert.Less(t, res.Benchmark.TotalReturn, 0.0)
	assert.False(t, res.Benchmark.Beats)
	assert.InDelta(t, res.Stats.TotalReturn-res.Benchmark.TotalReturn, res.Benchmark.ExcessReturn, 1e-12)
	assert.Empty(t, res.Errors)
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()

	bars, signals := scenarioInputs()
	a, err := Run(context.Background(), bars, signals, scenarioConfig())
	require.NoError(t, err)
	b, err := Run(context.Background(), bars, signals, scenarioConfig())
	require.NoError(t, err)

	ja, err := a.JSON()
	require.NoError(t, err)
	jb, err := b.JSON()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(ja, jb))
	assert.NotEmpty(t, a.RunID)
	assert.Equal(t, a.RunID, b.RunID)
}

func TestRunFirstReturnIsZero(t *testing.T) {
	t.Parallel()

	bars, signals := scenarioInputs()
	cfg := scenarioConfig()
	cfg.SignalLatencyBars = 0

	res, err := Run(context.Background(), bars, signals, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, res.Returns)
	assert.Equal(t, 0.0, res.Returns[0])
	assert.Less(t, res.EquityCurve[0].Equity, 1000.0, "entry costs hit the first point")
}

func TestRunFlatCurve(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 12)
	for i := range closes {
		closes[i] = 100
	}
	cfg := DefaultConfig()
	cfg.CommissionBps, cfg.SlippageBps = 0, 0

	res, err := Run(context.Background(), hourlyBars(closes...), nil, cfg)
	require.NoError(t, err)
	assert.Zero(t, res.Stats.Sharpe)
	assert.Zero(t, res.Stats.Sortino)
	assert.Nil(t, res.Stats.Calmar)
	assert.Nil(t, res.Stats.ProfitFactor)
	assert.Zero(t, res.Stats.Trades)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 8760.0, res.PeriodsPerYear)
	assert.InDelta(t, 0, res.Benchmark.TotalReturn, 1e-12)
	assert.False(t, res.Benchmark.Beats)
}

func TestRunInsufficientData(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), hourlyBars(1, 2, 3), nil, DefaultConfig())
	assert.ErrorIs(t, err, simerr.ErrInsufficientData)
}

func TestRunRejectsBadInput(t *testing.T) {
	t.Parallel()

	bars, _ := scenarioInputs()
	cfg := scenarioConfig()

	bad := cfg
	bad.Policy.StopLossPct = 2
	_, err := Run(context.Background(), bars, nil, bad)
	assert.ErrorIs(t, err, simerr.ErrInvalidPolicy)

	bad = cfg
	bad.InitialCash = 0
	_, err = Run(context.Background(), bars, nil, bad)
	assert.Error(t, err)

	unordered := append([]market.Bar(nil), bars...)
	unordered[2], unordered[3] = unordered[3], unordered[2]
	_, err = Run(context.Background(), unordered, nil, cfg)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, bars, nil, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunReportsSignalProblems(t *testing.T) {
	t.Parallel()

	bars, signals := scenarioInputs()
	signals = append(signals,
		market.Signal{Time: bars[0].Time, Direction: market.Sell, Probability: 0.1},
		market.Signal{Time: bars[0].Time.Add(time.Minute), Direction: market.Buy, Probability: 0.9},
	)

	res, err := Run(context.Background(), bars, signals, scenarioConfig())
	require.NoError(t, err)
	var codes []string
	for _, e := range res.Errors {
		codes = append(codes, e.Code)
	}
	assert.Equal(t, []string{"DUPLICATE", "UNMATCHED_SIGNAL"}, codes)
	assert.Len(t, res.Trades, 2, "the first signal for a bar wins")
}

func TestRunClosesAtEnd(t *testing.T) {
	t.Parallel()

	bars := hourlyBars(100, 101, 102, 103, 104)
	signals := []market.Signal{{Time: bars[0].Time, Direction: market.Buy, Probability: 0.9}}
	cfg := scenarioConfig()

	res, err := Run(context.Background(), bars, signals, cfg)
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, string(risk.EndOfData), res.Trades[1].Reason)
	assert.Zero(t, res.EquityCurve[len(res.EquityCurve)-1].PositionsValue)
	assert.Equal(t, 1, res.Stats.Wins)
	assert.Nil(t, res.Stats.ProfitFactor)

	cfg.CloseAtEnd = false
	open, err := Run(context.Background(), bars, signals, cfg)
	require.NoError(t, err)
	assert.Len(t, open.Trades, 1)
	assert.Greater(t, open.EquityCurve[len(open.EquityCurve)-1].PositionsValue, 0.0)
}

func TestRunJournals(t *testing.T) {
	t.Parallel()

	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "bt.db"))
	require.NoError(t, err)
	defer j.Close()

	bars, signals := scenarioInputs()
	cfg := scenarioConfig()
	cfg.Journal = j

	res, err := Run(context.Background(), bars, signals, cfg)
	require.NoError(t, err)

	fills, err := j.ListFills(res.RunID, res.Start, res.End.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, fills, len(res.Trades))

	pts, err := j.ListEquityBetween(res.RunID, res.Start, res.End.Add(time.Second))
	require.NoError(t, err)
	assert.Len(t, pts, len(res.EquityCurve))

	run, err := res.Run(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, j.RecordBacktest(run))
	got, err := j.GetBacktestRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Stats.Trades, got.Trades)
	assert.Equal(t, run.Result, got.Result)
}

func TestRunsWithDifferentConfigsJournalSeparately(t *testing.T) {
	t.Parallel()

	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "bt.db"))
	require.NoError(t, err)
	defer j.Close()

	bars, signals := scenarioInputs()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	record := func(stopLoss float64) Result {
		cfg := scenarioConfig()
		cfg.Policy.StopLossPct = stopLoss
		cfg.Journal = j
		res, err := Run(context.Background(), bars, signals, cfg)
		require.NoError(t, err)
		run, err := res.Run(created)
		require.NoError(t, err)
		require.NoError(t, j.RecordBacktest(run))
		return res
	}
	a := record(0.10)
	b := record(0.20)

	// same seed and bars, different policy
	require.NotEqual(t, a.RunID, b.RunID)

	runs, err := j.ListBacktestRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	ids := map[string]bool{}
	for _, res := range []Result{a, b} {
		fills, err := j.ListFills(res.RunID, res.Start, res.End.Add(time.Second))
		require.NoError(t, err)
		assert.Len(t, fills, len(res.Trades))
		for _, f := range fills {
			assert.False(t, ids[f.ID], "fill %s shared between runs", f.ID)
			ids[f.ID] = true
		}
	}
	assert.Greater(t, len(ids), 0)
}
