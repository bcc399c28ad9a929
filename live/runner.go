// Package live drives the engine from a stream of closed bars. Each
// instrument has one worker goroutine fed by a bounded queue, so two
// evaluations for the same instrument never overlap while different
// instruments proceed in parallel.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rustyeddy/cryptosim/equity"
	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/journal"
	"github.com/rustyeddy/cryptosim/ledger"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/rustyeddy/cryptosim/pkg/logger"
	"github.com/rustyeddy/cryptosim/risk"
	"github.com/rustyeddy/cryptosim/sim"
	"github.com/rustyeddy/cryptosim/store"
	"go.uber.org/zap"
)

var (
	ErrNotRunning        = errors.New("runner not running")
	ErrUnknownInstrument = errors.New("instrument not watched")
)

// Tick is one closed bar and the signal computed from it, if any.
type Tick struct {
	Instrument market.Instrument
	Bar        market.Bar
	Signal     *market.Signal
}

type Options struct {
	Instruments []market.Instrument
	QueueSize   int
	// Now stamps mode transitions and snapshots. Defaults to time.Now.
	Now func() time.Time
	// OnResult sees every evaluated tick, on the instrument's worker.
	OnResult func(sim.StepResult)
}

// Runner owns the engine, the mode guard and the state repository for a
// live session. Repo may be nil for an in-memory run.
type Runner struct {
	engine  *sim.Engine
	guard   *guard.Guard
	repo    *store.Repository
	journal journal.Journal
	logger  *zap.Logger
	opts    Options

	policy atomic.Pointer[risk.Policy]

	mu      sync.RWMutex
	queues  map[market.Instrument]chan Tick
	running bool
	wg      sync.WaitGroup

	// persistMu orders snapshots so an older one never replaces a newer one.
	persistMu sync.Mutex
}

func New(eng *sim.Engine, g *guard.Guard, repo *store.Repository, j journal.Journal, policy risk.Policy, opts Options, log *zap.Logger) (*Runner, error) {
	if eng == nil || g == nil {
		return nil, fmt.Errorf("live runner needs an engine and a guard")
	}
	if len(opts.Instruments) == 0 {
		return nil, fmt.Errorf("live runner needs at least one instrument")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if j == nil {
		j = journal.Discard
	}

	r := &Runner{
		engine:  eng,
		guard:   g,
		repo:    repo,
		journal: j,
		logger:  logger.OrNop(log).Named("live"),
		opts:    opts,
	}
	if err := r.SetPolicy(policy); err != nil {
		return nil, err
	}
	g.OnChange = r.onModeChange
	return r, nil
}

// Start restores the last persisted state and launches one worker per
// instrument. Workers outlive ctx; use Stop to end them.
func (r *Runner) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("runner already started")
	}
	if err := r.restore(); err != nil {
		return err
	}

	r.queues = make(map[market.Instrument]chan Tick, len(r.opts.Instruments))
	for _, inst := range r.opts.Instruments {
		q := make(chan Tick, r.opts.QueueSize)
		r.queues[inst] = q
		r.wg.Add(1)
		go r.work(inst, q)
	}
	r.running = true
	r.logger.Info("live runner started",
		zap.Int("instruments", len(r.opts.Instruments)),
		zap.String("mode", string(r.guard.Mode())),
	)
	return nil
}

func (r *Runner) restore() error {
	if r.repo == nil {
		return nil
	}
	st, err := r.repo.LoadAll()
	if err != nil {
		return err
	}
	if st.Mode != nil {
		if err := r.guard.Restore(*st.Mode); err != nil {
			return err
		}
	}
	if st.Engine != nil {
		if err := r.engine.Restore(*st.Engine); err != nil {
			return err
		}
	}
	if st.Equity != nil {
		if err := r.engine.Recorder().Restore(*st.Equity); err != nil {
			return err
		}
	}
	r.logger.Info("state restored",
		zap.Bool("ledger", st.Engine != nil),
		zap.Bool("mode", st.Mode != nil),
		zap.Bool("equity", st.Equity != nil),
	)
	return nil
}

// Submit queues t for its instrument's worker, blocking while the queue
// is full.
func (r *Runner) Submit(ctx context.Context, t Tick) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.running {
		return ErrNotRunning
	}
	q, ok := r.queues[t.Instrument]
	if !ok {
		return fmt.Errorf("%s: %w", t.Instrument, ErrUnknownInstrument)
	}
	select {
	case q <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) work(inst market.Instrument, q <-chan Tick) {
	defer r.wg.Done()
	for t := range q {
		r.evaluate(t)
	}
	r.logger.Debug("worker drained", zap.String("instrument", inst.Key()))
}

func (r *Runner) evaluate(t Tick) {
	res, err := r.engine.Step(context.Background(), sim.StepInput{
		Instrument: t.Instrument,
		Bar:        t.Bar,
		Signal:     t.Signal,
		Policy:     r.Policy(),
		Mode:       r.guard.Mode(),
	})
	if err != nil {
		r.logger.Error("evaluation failed",
			zap.String("instrument", t.Instrument.Key()),
			zap.Time("bar", t.Bar.Time),
			zap.Error(err),
		)
		return
	}
	if r.opts.OnResult != nil {
		r.opts.OnResult(res)
	}
	if !res.Skipped {
		r.persist()
	}
}

// Stop refuses new ticks, lets every worker finish what is queued and then
// persists. If ctx ends first the state is still persisted as it stands.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	for _, q := range r.queues {
		close(q)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("drain workers: %w", ctx.Err())
	}
	if perr := r.persistErr(); perr != nil && err == nil {
		err = perr
	}
	r.logger.Info("live runner stopped", zap.Error(err))
	return err
}

func (r *Runner) persist() {
	if err := r.persistErr(); err != nil {
		r.logger.Error("persist state", zap.Error(err))
	}
}

func (r *Runner) persistErr() error {
	if r.repo == nil {
		return nil
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	now := r.opts.Now()
	eng := r.engine.Snapshot(now)
	mode := r.guard.Record(now)
	hist := r.engine.Recorder().History()
	return r.repo.SaveAll(store.State{Engine: &eng, Mode: &mode, Equity: &hist})
}

func (r *Runner) onModeChange(tr guard.Transition) {
	if err := r.journal.RecordModeChange(tr); err != nil {
		r.logger.Error("journal mode change", zap.Error(err))
	}
	if r.repo == nil {
		return
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	rec := r.guard.Record(r.opts.Now())
	if err := r.repo.SaveAll(store.State{Mode: &rec}); err != nil {
		r.logger.Error("persist mode", zap.Error(err))
	}
}

// Mode is the current trading mode.
func (r *Runner) Mode() guard.Mode { return r.guard.Mode() }

// SetMode changes the trading mode from the next evaluated bar. The change
// is journaled and persisted before SetMode returns.
func (r *Runner) SetMode(m guard.Mode, reason string) (bool, error) {
	return r.guard.Set(m, reason, r.opts.Now())
}

// Policy returns the policy the next evaluation will use.
func (r *Runner) Policy() risk.Policy { return *r.policy.Load() }

// SetPolicy validates p and swaps it in whole. Evaluations already running
// finish with the policy they started with.
func (r *Runner) SetPolicy(p risk.Policy) error {
	p, err := risk.NewPolicy(p)
	if err != nil {
		return err
	}
	r.policy.Store(&p)
	return nil
}

func (r *Runner) Positions() []ledger.Position { return r.engine.Positions() }

func (r *Runner) Equity() (equity.Point, error) { return r.engine.Equity() }

// History returns the recorded equity points in [from, to].
func (r *Runner) History(from, to time.Time) []equity.Point {
	return r.engine.Recorder().Window(from, to)
}

// Close liquidates inst at its last mark on operator request. It waits
// for any evaluation of inst in progress and is gated by the current mode.
func (r *Runner) Close(ctx context.Context, inst market.Instrument) (*ledger.Fill, error) {
	f, err := r.engine.Liquidate(ctx, inst, risk.Manual, r.guard.Mode())
	if err != nil {
		return nil, err
	}
	if f != nil {
		r.persist()
	}
	return f, nil
}
