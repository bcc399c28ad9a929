// Package backtest replays historical bars and signals through the same
// engine the live runner uses and summarizes the outcome.
package backtest

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/bytedance/sonic"

	"github.com/rustyeddy/cryptosim/equity"
	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/ledger"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/rustyeddy/cryptosim/pkg/id"
	"github.com/rustyeddy/cryptosim/risk"
	"github.com/rustyeddy/cryptosim/sim"
	"github.com/rustyeddy/cryptosim/simerr"
	"go.uber.org/zap"
)

// Run replays bars in order with signals keyed by bar time. Fewer bars than
// the policy minimum fails with ErrInsufficientData; any other per-bar
// failure is collected in Result.Errors and the replay continues.
func Run(ctx context.Context, bars []market.Bar, signals []market.Signal, cfg Config) (Result, error) {
	policy, err := risk.NewPolicy(cfg.Policy)
	if err != nil {
		return Result{}, err
	}
	cfg.Policy = policy
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}
	if len(bars) < policy.MinBars {
		return Result{}, fmt.Errorf("backtest: %d bars, need %d: %w", len(bars), policy.MinBars, simerr.ErrInsufficientData)
	}
	if err := market.ValidateBars(bars); err != nil {
		return Result{}, fmt.Errorf("backtest: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	seed, err := runSeed(cfg, bars, signals)
	if err != nil {
		return Result{}, err
	}
	if cfg.RunID == "" {
		cfg.RunID = id.NewSeeded(seed).At(bars[0].Time)
	}
	logger = logger.With(zap.String("run", cfg.RunID), zap.String("instrument", cfg.Instrument.Key()))

	res := Result{
		RunID:          cfg.RunID,
		Instrument:     cfg.Instrument,
		Config:         cfg,
		Start:          bars[0].Time.UTC(),
		End:            bars[len(bars)-1].Time.UTC(),
		Bars:           len(bars),
		PeriodsPerYear: cfg.PeriodsPerYear,
		InitialCash:    cfg.InitialCash,
		Rejected:       []sim.Rejection{},
		Errors:         []StepError{},
	}
	if res.PeriodsPerYear == 0 {
		res.PeriodsPerYear = equity.PeriodsPerYear(market.Interval(bars))
	}

	byTime, dupes := indexSignals(signals)
	for _, s := range dupes {
		res.Errors = append(res.Errors, StepError{Time: s.Time.UTC(), Code: "DUPLICATE", Message: "second signal for bar dropped"})
	}
	barTimes := make(map[int64]bool, len(bars))
	for _, b := range bars {
		barTimes[b.Time.UnixNano()] = true
	}
	for _, s := range signals {
		if !barTimes[s.Time.UnixNano()] {
			res.Errors = append(res.Errors, StepError{Time: s.Time.UTC(), Code: "UNMATCHED_SIGNAL", Message: "no bar at signal time"})
		}
	}

	costs := sim.Costs{CommissionBps: cfg.CommissionBps, SlippageBps: cfg.SlippageBps}
	engine := sim.NewEngine(
		ledger.New(cfg.InitialCash, id.NewSeeded(seed)),
		equity.NewRecorder(0, 0),
		sim.Config{Costs: costs, SignalLatencyBars: cfg.SignalLatencyBars, RunID: cfg.RunID},
		cfg.Journal,
		logger,
	)

	logger.Info("backtest started", zap.Int("bars", len(bars)), zap.Int("signals", len(signals)))
	for _, b := range bars {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		in := sim.StepInput{Instrument: cfg.Instrument, Bar: b, Policy: policy, Mode: guard.Live}
		if s, ok := byTime[b.Time.UnixNano()]; ok {
			in.Signal = &s
		}
		step, err := engine.Step(ctx, in)
		res.Rejected = append(res.Rejected, step.Rejected...)
		if err != nil {
			res.Errors = append(res.Errors, StepError{Time: b.Time.UTC(), Code: simerr.Code(err), Message: err.Error()})
		}
	}

	if cfg.CloseAtEnd {
		if _, err := engine.Liquidate(ctx, cfg.Instrument, risk.EndOfData, guard.Live); err != nil {
			res.Errors = append(res.Errors, StepError{Time: res.End, Code: simerr.Code(err), Message: err.Error()})
		}
	}

	res.Trades = engine.Ledger().Fills()
	if res.Trades == nil {
		res.Trades = []ledger.Fill{}
	}
	res.EquityCurve = engine.Recorder().Points()
	summary := equity.Summarize(res.EquityCurve, res.PeriodsPerYear)
	res.Returns = summary.Returns
	res.FinalEquity = summary.EndEquity
	res.Stats = tradeStats(res.Trades, res.EquityCurve)
	res.Stats.TotalReturn = res.FinalEquity/cfg.InitialCash - 1
	res.Stats.Sharpe = summary.Sharpe
	res.Stats.Sortino = summary.Sortino
	res.Stats.MaxDrawdown = summary.MaxDrawdown
	res.Stats.Calmar = equity.Calmar(res.Stats.TotalReturn, summary.MaxDrawdown.Pct)

	res.Benchmark, err = benchmark(bars, cfg, costs, res.PeriodsPerYear)
	if err != nil {
		return Result{}, err
	}
	res.Benchmark.ExcessReturn = res.Stats.TotalReturn - res.Benchmark.TotalReturn
	res.Benchmark.Beats = res.Benchmark.ExcessReturn > 0

	logger.Info("backtest finished",
		zap.Float64("final_equity", res.FinalEquity),
		zap.Float64("total_return", res.Stats.TotalReturn),
		zap.Int("trades", res.Stats.Trades),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

// runSeed mixes cfg.Seed with a hash of the config and inputs. Identical
// replays keep identical run and fill IDs; a replay with different costs,
// policy or data gets its own.
func runSeed(cfg Config, bars []market.Bar, signals []market.Signal) (int64, error) {
	cfg.RunID = ""
	data, err := sonic.ConfigStd.Marshal(struct {
		Config  Config          `json:"config"`
		Bars    []market.Bar    `json:"bars"`
		Signals []market.Signal `json:"signals"`
	}{cfg, bars, signals})
	if err != nil {
		return 0, fmt.Errorf("backtest fingerprint: %w", err)
	}
	h := fnv.New64a()
	h.Write(data)
	return cfg.Seed ^ int64(h.Sum64()), nil
}

// indexSignals keys signals by bar time, keeping the first of duplicates.
func indexSignals(signals []market.Signal) (map[int64]market.Signal, []market.Signal) {
	out := make(map[int64]market.Signal, len(signals))
	var dupes []market.Signal
	for _, s := range signals {
		k := s.Time.UnixNano()
		if _, ok := out[k]; ok {
			dupes = append(dupes, s)
			continue
		}
		out[k] = s
	}
	return out, dupes
}

func tradeStats(fills []ledger.Fill, curve []equity.Point) Stats {
	var (
		st             Stats
		gross, lossSum float64
	)
	for _, f := range fills {
		st.Commission += f.Commission
		st.Slippage += f.Slippage
		if !f.Closing() {
			continue
		}
		st.Trades++
		switch pnl := *f.RealizedPnL; {
		case pnl > 0:
			st.Wins++
			gross += pnl
		case pnl < 0:
			st.Losses++
			lossSum += -pnl
		}
	}
	if st.Trades > 0 {
		st.WinRate = float64(st.Wins) / float64(st.Trades)
	}
	if st.Wins > 0 {
		st.AvgWin = gross / float64(st.Wins)
	}
	if st.Losses > 0 {
		st.AvgLoss = -lossSum / float64(st.Losses)
		pf := gross / lossSum
		st.ProfitFactor = &pf
	}

	if len(curve) > 0 {
		held := 0
		for _, p := range curve {
			if p.PositionsValue > 0 {
				held++
			}
		}
		st.ExposureTime = float64(held) / float64(len(curve))
	}
	return st
}

// benchmark buys with all cash at the first close and holds, through its
// own ledger with the same costs.
func benchmark(bars []market.Bar, cfg Config, costs sim.Costs, periodsPerYear float64) (Benchmark, error) {
	inst := cfg.Instrument
	s := sim.NewSimulator(ledger.New(cfg.InitialCash, id.NewSeeded(cfg.Seed)), costs)
	first := bars[0]
	qty := risk.EntryQuantity(risk.SizingInputs{
		Cash:          cfg.InitialCash,
		Price:         first.Close,
		EntryFraction: 1,
		SlippageBps:   costs.SlippageBps,
		CommissionBps: costs.CommissionBps,
	})
	if _, err := s.Execute(sim.Intent{Kind: guard.Open, Instrument: inst, Quantity: qty, Price: first.Close, Time: first.Time, Reason: "BENCHMARK"}, guard.Live); err != nil {
		return Benchmark{}, fmt.Errorf("benchmark entry: %w", err)
	}

	curve := make([]equity.Point, 0, len(bars))
	for _, b := range bars {
		curve = append(curve, equity.NewPoint(b.Time, s.Ledger().Cash(), qty*b.Close))
	}
	if cfg.CloseAtEnd {
		last := bars[len(bars)-1]
		if _, err := s.Execute(sim.Intent{Kind: guard.Close, Instrument: inst, Price: last.Close, Time: last.Time, Reason: risk.EndOfData}, guard.Live); err != nil {
			return Benchmark{}, fmt.Errorf("benchmark exit: %w", err)
		}
		curve[len(curve)-1] = equity.NewPoint(last.Time, s.Ledger().Cash(), 0)
	}

	sum := equity.Summarize(curve, periodsPerYear)
	return Benchmark{
		Quantity:    qty,
		FinalEquity: sum.EndEquity,
		TotalReturn: sum.EndEquity/cfg.InitialCash - 1,
		Sharpe:      sum.Sharpe,
		MaxDrawdown: sum.MaxDrawdown,
	}, nil
}
