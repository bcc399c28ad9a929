package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/cryptosim/equity"
	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/journal"
	"github.com/rustyeddy/cryptosim/ledger"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/rustyeddy/cryptosim/risk"
	"github.com/rustyeddy/cryptosim/simerr"
	"go.uber.org/zap"
)

// Config holds the engine settings fixed for its lifetime.
type Config struct {
	Costs Costs
	// SignalLatencyBars delays a signal computed at bar t until bar
	// t+latency. With latency 0 the signal fills at its own bar's close,
	// otherwise at the open of the actionable bar.
	SignalLatencyBars int
	// RunID tags journal records.
	RunID string
}

// StepInput is one closed bar for one instrument, with the signal computed
// from it if any. Mode is read once by the caller so a mode change applies
// from the next bar.
type StepInput struct {
	Instrument market.Instrument
	Bar        market.Bar
	Signal     *market.Signal
	Policy     risk.Policy
	Mode       guard.Mode
}

// StepResult is everything one Step did. Skipped is set when the bar was
// already processed and nothing happened.
type StepResult struct {
	Instrument    market.Instrument   `json:"instrument"`
	Time          time.Time           `json:"time"`
	Fills         []ledger.Fill       `json:"fills"`
	EquityPoint   equity.Point        `json:"equity_point"`
	Rejected      []Rejection         `json:"rejected"`
	Interventions []risk.Intervention `json:"interventions"`
	Skipped       bool                `json:"skipped,omitempty"`
}

// Engine runs the per-bar pipeline: protective exits first, then the due
// signal, then an equity point. Steps for one instrument are serialized;
// different instruments may step concurrently.
type Engine struct {
	cfg      Config
	sim      *Simulator
	ledger   *ledger.Ledger
	marks    *market.MarkStore
	recorder *equity.Recorder
	journal  journal.Journal
	logger   *zap.Logger

	// entryMu serializes sizing and opening so concurrent instruments
	// never size against the same cash.
	entryMu sync.Mutex

	mu    sync.Mutex
	books map[market.Instrument]*book
}

// PendingSignal is a signal waiting for its actionable bar.
type PendingSignal struct {
	Signal market.Signal `json:"signal"`
	Due    int           `json:"due"`
}

// book is the per-instrument state the engine keeps between bars.
type book struct {
	mu         sync.Mutex
	lastBar    time.Time
	lastSignal time.Time
	bars       int
	pending    []PendingSignal
	trail      risk.TrailState
}

func NewEngine(l *ledger.Ledger, rec *equity.Recorder, cfg Config, j journal.Journal, logger *zap.Logger) *Engine {
	if rec == nil {
		rec = equity.NewRecorder(0, 0)
	}
	if j == nil {
		j = journal.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SignalLatencyBars < 0 {
		cfg.SignalLatencyBars = 0
	}
	return &Engine{
		cfg:      cfg,
		sim:      NewSimulator(l, cfg.Costs),
		ledger:   l,
		marks:    market.NewMarkStore(),
		recorder: rec,
		journal:  j,
		logger:   logger,
		books:    make(map[market.Instrument]*book),
	}
}

func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }
func (e *Engine) Recorder() *equity.Recorder { return e.recorder }
func (e *Engine) Marks() *market.MarkStore { return e.marks }

func (e *Engine) book(inst market.Instrument) *book {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[inst]
	if !ok {
		b = &book{}
		e.books[inst] = b
	}
	return b
}

// Step evaluates one closed bar. A bar at or before the last processed bar
// of the instrument is a no-op, so a retried or replayed tick never
// duplicates fills. Per-intent failures are reported in Rejected; the
// returned error is reserved for bad input and valuation failures.
func (e *Engine) Step(ctx context.Context, in StepInput) (StepResult, error) {
	res := StepResult{Instrument: in.Instrument, Time: in.Bar.Time.UTC()}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if in.Bar.Close <= 0 || in.Bar.Open <= 0 {
		return res, fmt.Errorf("step %s at %s: non-positive price", in.Instrument, res.Time.Format(time.RFC3339))
	}

	b := e.book(in.Instrument)
	b.mu.Lock()
	defer b.mu.Unlock()

	bar := in.Bar
	if !b.lastBar.IsZero() && !bar.Time.After(b.lastBar) {
		res.Skipped = true
		if in.Signal != nil {
			e.reject(&res, Rejection{
				Instrument: in.Instrument,
				Reason:     risk.Signal,
				Code:       "DUPLICATE",
				Message:    "bar already processed",
				Time:       bar.Time,
			}, nil)
		}
		return res, nil
	}
	b.lastBar = bar.Time
	b.bars++
	e.marks.Set(in.Instrument, bar.Close, bar.Time)

	if in.Signal != nil {
		e.enqueueLocked(b, &res, in.Instrument, bar, *in.Signal)
	}

	e.exitsLocked(b, &res, in)
	e.signalsLocked(b, &res, in)

	cash := e.ledger.Cash()
	value, err := e.ledger.MarkToMarket(e.marks.Prices())
	if err != nil {
		return res, fmt.Errorf("step %s: %w", in.Instrument, err)
	}
	pt, err := e.recorder.Record(bar.Time, cash, value)
	switch {
	case errors.Is(err, simerr.ErrOutOfOrder):
		// another instrument already recorded a later point
		pt = equity.NewPoint(bar.Time, cash, value)
		e.logger.Debug("equity point not recorded", zap.Error(err))
	case err != nil:
		return res, err
	default:
		if jerr := e.journal.RecordEquity(e.cfg.RunID, pt); jerr != nil {
			e.logger.Error("journal equity", zap.Error(jerr))
		}
	}
	res.EquityPoint = pt
	return res, nil
}

func (e *Engine) enqueueLocked(b *book, res *StepResult, inst market.Instrument, bar market.Bar, sig market.Signal) {
	if sig.Time.IsZero() {
		sig.Time = bar.Time
	}
	bad := func(code, msg string) {
		e.reject(res, Rejection{Instrument: inst, Reason: risk.Signal, Code: code, Message: msg, Time: bar.Time}, nil)
	}
	if err := sig.Validate(); err != nil {
		bad("INVALID_SIGNAL", err.Error())
		return
	}
	if !sig.Time.Equal(bar.Time) {
		bad("INVALID_SIGNAL", fmt.Sprintf("signal at %s for bar at %s",
			sig.Time.Format(time.RFC3339), bar.Time.Format(time.RFC3339)))
		return
	}
	if !b.lastSignal.IsZero() && !sig.Time.After(b.lastSignal) {
		bad("DUPLICATE", "signal for this bar already accepted")
		return
	}
	b.lastSignal = sig.Time
	if sig.Direction == market.Hold {
		return
	}
	b.pending = append(b.pending, PendingSignal{Signal: sig, Due: b.bars + e.cfg.SignalLatencyBars})
}

// exitsLocked runs the risk rules against the instrument's open position
// and executes at most one protective exit at the bar close.
func (e *Engine) exitsLocked(b *book, res *StepResult, in StepInput) {
	pos, ok := e.ledger.Position(in.Instrument)
	if !ok {
		b.trail = risk.TrailState{}
		return
	}

	plan := risk.PlanExposure(in.Policy, risk.ExposureInputs{
		Positions:    e.ledger.Positions(),
		Prices:       e.marks.Prices(),
		Cash:         e.ledger.Cash(),
		CostFraction: risk.CostFraction(e.cfg.Costs.SlippageBps, e.cfg.Costs.CommissionBps),
	})

	ivs, trail := risk.Evaluate(in.Policy, pos, in.Bar, risk.State{
		Trail:             b.trail,
		ExposureReduction: plan[in.Instrument],
	})
	b.trail = trail

	for _, iv := range ivs {
		res.Interventions = append(res.Interventions, iv)
		kind := guard.Close
		if !iv.Full {
			kind = guard.PartialClose
		}
		_ = e.execute(res, Intent{
			Kind:       kind,
			Instrument: iv.Instrument,
			Quantity:   iv.Quantity,
			Price:      iv.Price,
			Time:       in.Bar.Time,
			Reason:     iv.Reason,
		}, in.Mode)
	}

	if _, still := e.ledger.Position(in.Instrument); !still {
		b.trail = risk.TrailState{}
	}
}

// signalsLocked acts on queued signals that are due at this bar.
func (e *Engine) signalsLocked(b *book, res *StepResult, in StepInput) {
	var due []PendingSignal
	keep := b.pending[:0]
	for _, p := range b.pending {
		if p.Due <= b.bars {
			due = append(due, p)
		} else {
			keep = append(keep, p)
		}
	}
	b.pending = keep

	price := in.Bar.Open
	if e.cfg.SignalLatencyBars == 0 {
		price = in.Bar.Close
	}

	for _, p := range due {
		last, _ := e.ledger.LastFill(in.Instrument)
		dec := risk.CheckEntry(in.Policy, risk.EntryCheck{Now: in.Bar.Time, Signal: p.Signal, LastFill: last})
		if !dec.Allowed {
			kind := guard.Open
			if p.Signal.Direction == market.Sell {
				kind = guard.Close
			}
			e.reject(res, Rejection{
				Kind:       kind,
				Instrument: in.Instrument,
				Reason:     risk.Signal,
				Code:       dec.Reason(),
				Message:    dec.Violations[0].Msg,
				Time:       in.Bar.Time,
			}, nil)
			continue
		}

		switch p.Signal.Direction {
		case market.Buy:
			e.open(res, in, price)
		case market.Sell:
			if _, ok := e.ledger.Position(in.Instrument); !ok {
				continue
			}
			_ = e.execute(res, Intent{
				Kind:       guard.Close,
				Instrument: in.Instrument,
				Price:      price,
				Time:       in.Bar.Time,
				Reason:     risk.Signal,
			}, in.Mode)
		}
	}
}

func (e *Engine) open(res *StepResult, in StepInput, price float64) {
	e.entryMu.Lock()
	defer e.entryMu.Unlock()

	qty := risk.EntryQuantity(risk.SizingInputs{
		Cash:          e.ledger.Cash(),
		Price:         price,
		EntryFraction: in.Policy.EntryFraction,
		SlippageBps:   e.cfg.Costs.SlippageBps,
		CommissionBps: e.cfg.Costs.CommissionBps,
	})
	if qty <= 0 {
		e.reject(res, Rejection{
			Kind:       guard.Open,
			Instrument: in.Instrument,
			Reason:     risk.Signal,
			Code:       "NO_CASH",
			Message:    "no cash available to size an entry",
			Time:       in.Bar.Time,
		}, nil)
		return
	}
	_ = e.execute(res, Intent{
		Kind:       guard.Open,
		Instrument: in.Instrument,
		Quantity:   qty,
		Price:      price,
		Time:       in.Bar.Time,
		Reason:     risk.Signal,
	}, in.Mode)
}

func (e *Engine) execute(res *StepResult, in Intent, mode guard.Mode) error {
	fill, err := e.sim.Execute(in, mode)
	if err != nil {
		e.reject(res, Rejection{
			Kind:       in.Kind,
			Instrument: in.Instrument,
			Reason:     in.Reason,
			Code:       simerr.Code(err),
			Message:    err.Error(),
			Time:       in.Time,
		}, err)
		return err
	}
	res.Fills = append(res.Fills, fill)
	e.logger.Info("fill",
		zap.String("instrument", fill.Instrument.Key()),
		zap.String("side", string(fill.Side)),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("price", fill.Price),
		zap.String("reason", fill.Reason),
	)
	if jerr := e.journal.RecordFill(e.cfg.RunID, fill); jerr != nil {
		e.logger.Error("journal fill", zap.String("fill", fill.ID), zap.Error(jerr))
	}
	return nil
}

// reject records r and logs it at a level matching how surprising err is:
// gating and policy suppressions are routine, anything else is a bug.
func (e *Engine) reject(res *StepResult, r Rejection, err error) {
	res.Rejected = append(res.Rejected, r)
	fields := []zap.Field{
		zap.String("instrument", r.Instrument.Key()),
		zap.String("kind", string(r.Kind)),
		zap.String("reason", string(r.Reason)),
		zap.String("code", r.Code),
		zap.String("message", r.Message),
	}
	if err == nil || simerr.Expected(err) {
		e.logger.Debug("intent rejected", fields...)
		return
	}
	e.logger.Error("intent failed", fields...)
}

// Liquidate closes the instrument's position at its last mark, for end of
// data or an operator request. It returns a nil fill when flat.
func (e *Engine) Liquidate(ctx context.Context, inst market.Instrument, reason risk.Reason, mode guard.Mode) (*ledger.Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := e.book(inst)
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := e.ledger.Position(inst); !ok {
		return nil, nil
	}
	mark, err := e.marks.Get(inst)
	if err != nil {
		return nil, err
	}
	var res StepResult
	err = e.execute(&res, Intent{
		Kind:       guard.Close,
		Instrument: inst,
		Price:      mark.Price,
		Time:       mark.Time,
		Reason:     reason,
	}, mode)
	if err != nil {
		return nil, fmt.Errorf("liquidate %s: %w", inst, err)
	}
	b.trail = risk.TrailState{}

	if value, err := e.ledger.MarkToMarket(e.marks.Prices()); err == nil {
		if pt, err := e.recorder.Record(mark.Time, e.ledger.Cash(), value); err == nil {
			if jerr := e.journal.RecordEquity(e.cfg.RunID, pt); jerr != nil {
				e.logger.Error("journal equity", zap.Error(jerr))
			}
		}
	}
	return &res.Fills[0], nil
}

// Positions returns the open positions ordered by instrument.
func (e *Engine) Positions() []ledger.Position {
	return e.ledger.Positions()
}

// Equity values the account at the latest marks.
func (e *Engine) Equity() (equity.Point, error) {
	prices := e.marks.Prices()
	value, err := e.ledger.MarkToMarket(prices)
	if err != nil {
		return equity.Point{}, err
	}
	var at time.Time
	for inst := range prices {
		if m, err := e.marks.Get(inst); err == nil && m.Time.After(at) {
			at = m.Time
		}
	}
	return equity.NewPoint(at, e.ledger.Cash(), value), nil
}
