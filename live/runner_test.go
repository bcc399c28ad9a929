package live

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/cryptosim/equity"
	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/journal"
	"github.com/rustyeddy/cryptosim/ledger"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/rustyeddy/cryptosim/pkg/id"
	"github.com/rustyeddy/cryptosim/risk"
	"github.com/rustyeddy/cryptosim/sim"
	"github.com/rustyeddy/cryptosim/simerr"
	"github.com/rustyeddy/cryptosim/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	btc = market.Instrument{Venue: "binance", Symbol: "BTCUSDT"}
	eth = market.Instrument{Venue: "binance", Symbol: "ETHUSDT"}
	t0  = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

type harness struct {
	runner *Runner
	engine *sim.Engine
	guard  *guard.Guard
}

func newHarness(t *testing.T, dir string, j journal.Journal, opts Options) harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	eng := sim.NewEngine(
		ledger.New(1000, id.NewSeeded(3)),
		equity.NewRecorder(100, 0),
		sim.Config{Costs: sim.Costs{CommissionBps: 10, SlippageBps: 5}, SignalLatencyBars: 1, RunID: journal.LiveRun},
		j,
		log,
	)
	g, err := guard.New(guard.Live, log)
	require.NoError(t, err)

	var repo *store.Repository
	if dir != "" {
		repo = store.NewRepository(dir)
	}
	if len(opts.Instruments) == 0 {
		opts.Instruments = []market.Instrument{btc, eth}
	}
	opts.Now = func() time.Time { return t0 }
	r, err := New(eng, g, repo, j, risk.DefaultPolicy(), opts, log)
	require.NoError(t, err)
	return harness{runner: r, engine: eng, guard: g}
}

func bar(i int, open, close float64) market.Bar {
	hi, lo := open, close
	if close > hi {
		hi, lo = close, open
	}
	return market.Bar{Time: t0.Add(time.Duration(i) * time.Hour), Open: open, High: hi, Low: lo, Close: close}
}

func TestRunnerPersistsAndRestores(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	h := newHarness(t, dir, nil, Options{})
	require.NoError(t, h.runner.Start(ctx))

	sig := &market.Signal{Time: t0, Direction: market.Buy, Probability: 0.7}
	require.NoError(t, h.runner.Submit(ctx, Tick{Instrument: btc, Bar: bar(0, 100, 100), Signal: sig}))
	require.NoError(t, h.runner.Submit(ctx, Tick{Instrument: btc, Bar: bar(1, 100, 104)}))
	require.NoError(t, h.runner.Stop(ctx))

	require.Len(t, h.runner.Positions(), 1)
	pos := h.runner.Positions()[0]
	assert.Equal(t, btc, pos.Instrument)

	eq, err := h.runner.Equity()
	require.NoError(t, err)

	// a fresh process picks up where the last one stopped
	h2 := newHarness(t, dir, nil, Options{})
	require.NoError(t, h2.runner.Start(ctx))
	defer h2.runner.Stop(ctx)

	require.Len(t, h2.runner.Positions(), 1)
	assert.Equal(t, pos.ID, h2.runner.Positions()[0].ID)
	assert.InDelta(t, pos.Quantity, h2.runner.Positions()[0].Quantity, 1e-12)

	eq2, err := h2.runner.Equity()
	require.NoError(t, err)
	assert.InDelta(t, eq.Equity, eq2.Equity, 1e-9)
	assert.Len(t, h2.runner.History(time.Time{}, time.Time{}), 2)

	// the bar already processed before the restart is a no-op
	var got []sim.StepResult
	var mu sync.Mutex
	h3 := newHarness(t, dir, nil, Options{OnResult: func(r sim.StepResult) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
	}})
	require.NoError(t, h3.runner.Start(ctx))
	require.NoError(t, h3.runner.Submit(ctx, Tick{Instrument: btc, Bar: bar(1, 100, 104)}))
	require.NoError(t, h3.runner.Stop(ctx))
	require.Len(t, got, 1)
	assert.True(t, got[0].Skipped)
	assert.Empty(t, got[0].Fills)
}

func TestRunnerModeIsJournaledAndPersisted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	j, err := journal.NewSQLite(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	var res []sim.StepResult
	var mu sync.Mutex
	h := newHarness(t, dir, j, Options{OnResult: func(r sim.StepResult) { mu.Lock(); res = append(res, r); mu.Unlock() }})
	require.NoError(t, h.runner.Start(ctx))

	changed, err := h.runner.SetMode(guard.Locked, "exchange maintenance")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = h.runner.SetMode(guard.Locked, "again")
	require.NoError(t, err)
	assert.False(t, changed)

	// persisted before SetMode returned, not only on Stop
	rec, ok, err := store.NewRepository(dir).Mode.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, guard.Locked, rec.Mode)

	trs, err := j.ListModeChanges()
	require.NoError(t, err)
	require.Len(t, trs, 1)
	assert.Equal(t, guard.Live, trs[0].From)
	assert.Equal(t, "exchange maintenance", trs[0].Reason)

	// locked: the buy is rejected and nothing is opened
	sig := &market.Signal{Time: t0, Direction: market.Buy, Probability: 0.9}
	require.NoError(t, h.runner.Submit(ctx, Tick{Instrument: eth, Bar: bar(0, 10, 10), Signal: sig}))
	require.NoError(t, h.runner.Submit(ctx, Tick{Instrument: eth, Bar: bar(1, 10, 11)}))
	require.NoError(t, h.runner.Stop(ctx))
	assert.Empty(t, h.runner.Positions())
	require.Len(t, res, 2)
	require.NotEmpty(t, res[1].Rejected)
	assert.Equal(t, simerr.Code(simerr.ErrTradingLocked), res[1].Rejected[0].Code)

	h2 := newHarness(t, dir, nil, Options{})
	require.NoError(t, h2.runner.Start(ctx))
	defer h2.runner.Stop(ctx)
	assert.Equal(t, guard.Locked, h2.runner.Mode())
}

func TestRunnerSubmitErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, "", nil, Options{Instruments: []market.Instrument{btc}})

	assert.ErrorIs(t, h.runner.Submit(ctx, Tick{Instrument: btc, Bar: bar(0, 1, 1)}), ErrNotRunning)

	require.NoError(t, h.runner.Start(ctx))
	assert.Error(t, h.runner.Start(ctx))
	assert.ErrorIs(t, h.runner.Submit(ctx, Tick{Instrument: eth, Bar: bar(0, 1, 1)}), ErrUnknownInstrument)

	require.NoError(t, h.runner.Stop(ctx))
	require.NoError(t, h.runner.Stop(ctx))
	assert.ErrorIs(t, h.runner.Submit(ctx, Tick{Instrument: btc, Bar: bar(1, 1, 1)}), ErrNotRunning)
}

func TestRunnerSetPolicy(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "", nil, Options{})
	err := h.runner.SetPolicy(risk.Policy{StopLossPct: 2})
	assert.ErrorIs(t, err, simerr.ErrInvalidPolicy)
	assert.Equal(t, 0.0, h.runner.Policy().StopLossPct)

	require.NoError(t, h.runner.SetPolicy(risk.Policy{StopLossPct: 0.05}))
	assert.Equal(t, 0.05, h.runner.Policy().StopLossPct)
	assert.Equal(t, 0.95, h.runner.Policy().EntryFraction)
}

func TestRunnerSerializesPerInstrument(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var mu sync.Mutex
	seen := map[market.Instrument][]time.Time{}
	h := newHarness(t, "", nil, Options{QueueSize: 2, OnResult: func(r sim.StepResult) {
		mu.Lock()
		seen[r.Instrument] = append(seen[r.Instrument], r.Time)
		mu.Unlock()
	}})
	require.NoError(t, h.runner.Start(ctx))

	const n = 50
	var wg sync.WaitGroup
	for _, inst := range []market.Instrument{btc, eth} {
		wg.Add(1)
		go func(inst market.Instrument) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				assert.NoError(t, h.runner.Submit(ctx, Tick{Instrument: inst, Bar: bar(i, 50, 50)}))
			}
		}(inst)
	}
	wg.Wait()
	require.NoError(t, h.runner.Stop(ctx))

	for _, inst := range []market.Instrument{btc, eth} {
		times := seen[inst]
		require.Len(t, times, n, inst.Key())
		for i := 1; i < n; i++ {
			assert.True(t, times[i].After(times[i-1]))
		}
	}
}

func TestRunnerManualClose(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	h := newHarness(t, dir, nil, Options{})
	require.NoError(t, h.runner.Start(ctx))

	f, err := h.runner.Close(ctx, btc)
	require.NoError(t, err)
	assert.Nil(t, f)

	sig := &market.Signal{Time: t0, Direction: market.Buy, Probability: 0.7}
	require.NoError(t, h.runner.Submit(ctx, Tick{Instrument: btc, Bar: bar(0, 100, 100), Signal: sig}))
	require.NoError(t, h.runner.Submit(ctx, Tick{Instrument: btc, Bar: bar(1, 100, 120)}))
	require.NoError(t, h.runner.Stop(ctx))
	require.Len(t, h.runner.Positions(), 1)

	f, err = h.runner.Close(ctx, btc)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, string(risk.Manual), f.Reason)
	require.NotNil(t, f.RealizedPnL)
	assert.Greater(t, *f.RealizedPnL, 0.0)
	assert.Empty(t, h.runner.Positions())

	snap, ok, err := store.NewRepository(dir).Ledger.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, snap.Ledger.Positions)
}
