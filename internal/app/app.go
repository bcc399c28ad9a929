// Package app assembles the live daemon from its configuration with fx.
package app

import (
	"context"
	"fmt"

	"github.com/rustyeddy/cryptosim/config"
	"github.com/rustyeddy/cryptosim/equity"
	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/journal"
	"github.com/rustyeddy/cryptosim/ledger"
	"github.com/rustyeddy/cryptosim/live"
	"github.com/rustyeddy/cryptosim/pkg/id"
	"github.com/rustyeddy/cryptosim/pkg/logger"
	"github.com/rustyeddy/cryptosim/sim"
	"github.com/rustyeddy/cryptosim/store"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// New builds the daemon for cfg. extra options can add invokes that use
// the runner, or replace providers in tests.
func New(cfg *config.Config, extra ...fx.Option) *fx.App {
	opts := []fx.Option{
		fx.Supply(cfg),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		LoggerModule(),
		StoreModule(),
		JournalModule(),
		EngineModule(),
		RunnerModule(),
	}
	return fx.New(append(opts, extra...)...)
}

func LoggerModule() fx.Option {
	return fx.Module("logger",
		fx.Provide(NewLogger),
	)
}

func NewLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	l, err := logger.New(cfg.Log.Level, cfg.Log.Service)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(func() { _ = l.Sync() }))
	return l, nil
}

func StoreModule() fx.Option {
	return fx.Module("store",
		fx.Provide(func(cfg *config.Config) *store.Repository {
			return store.NewRepository(cfg.State.Dir)
		}),
	)
}

func JournalModule() fx.Option {
	return fx.Module("journal",
		fx.Provide(NewJournal),
	)
}

// NewJournal opens the configured journal and closes it when the app
// stops, after the runner has drained.
func NewJournal(lc fx.Lifecycle, cfg *config.Config) (journal.Journal, error) {
	var (
		j   journal.Journal
		err error
	)
	switch cfg.Journal.Type {
	case "sqlite":
		j, err = journal.NewSQLite(cfg.Journal.DBPath)
	case "csv":
		j, err = journal.NewCSV(cfg.Journal.FillsFile, cfg.Journal.EquityFile)
	case "none":
		j = journal.Discard
	default:
		err = fmt.Errorf("unknown journal type %q", cfg.Journal.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	lc.Append(fx.StopHook(j.Close))
	return j, nil
}

func EngineModule() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			NewGuard,
			NewEngine,
		),
	)
}

func NewGuard(cfg *config.Config, l *zap.Logger) (*guard.Guard, error) {
	return guard.New(cfg.Engine.InitialMode, l.Named("guard"))
}

func NewEngine(cfg *config.Config, j journal.Journal, l *zap.Logger) *sim.Engine {
	return sim.NewEngine(
		ledger.New(cfg.Account.InitialCash, id.NewGenerator()),
		equity.NewRecorder(cfg.State.EquityMaxPoints, cfg.State.EquityMaxAge),
		sim.Config{
			Costs: sim.Costs{
				CommissionBps: cfg.Engine.CommissionBps,
				SlippageBps:   cfg.Engine.SlippageBps,
			},
			SignalLatencyBars: cfg.Engine.SignalLatencyBars,
			RunID:             journal.LiveRun,
		},
		j,
		l.Named("engine"),
	)
}

func RunnerModule() fx.Option {
	return fx.Module("runner",
		fx.Provide(NewRunner),
		fx.Invoke(func(lc fx.Lifecycle, r *live.Runner) {
			lc.Append(fx.Hook{
				OnStart: r.Start,
				OnStop:  r.Stop,
			})
		}),
	)
}

func NewRunner(cfg *config.Config, eng *sim.Engine, g *guard.Guard, repo *store.Repository, j journal.Journal, l *zap.Logger) (*live.Runner, error) {
	policy, err := cfg.RiskPolicy()
	if err != nil {
		return nil, err
	}
	insts, err := cfg.ParseInstruments()
	if err != nil {
		return nil, err
	}
	return live.New(eng, g, repo, j, policy, live.Options{
		Instruments: insts,
		QueueSize:   cfg.Engine.QueueSize,
	}, l)
}

// Run starts app, runs work and stops app once work returns or ctx ends,
// within the app's stop timeout. A nil work waits for ctx. A work error is
// returned unless it came from ctx ending.
func Run(ctx context.Context, app *fx.App, work func(context.Context) error) error {
	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	var workErr error
	if work != nil {
		workErr = work(ctx)
	} else {
		<-ctx.Done()
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}
	if workErr != nil && ctx.Err() == nil {
		return workErr
	}
	return nil
}
