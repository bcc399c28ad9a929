package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rustyeddy/cryptosim/feed"
	"github.com/rustyeddy/cryptosim/internal/app"
	"github.com/rustyeddy/cryptosim/live"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Run the paper engine over a stream of closed bars",
	Long: `Live restores the persisted ledger, mode and equity history, evaluates
each closed bar for the configured instruments and persists state after
every evaluation. On SIGINT or SIGTERM it stops taking bars, finishes the
evaluations already queued and persists.

Bars come from --bars/--signals CSV files, or as JSON lines on stdin:

  {"venue":"binance","symbol":"BTCUSDT","bar":{...},"signal":{...}}

Example:
  trader live --config trader.yaml --bars data/btc_1h.csv --signals data/btc_signals.csv`,
	RunE: runLive,
}

var (
	liveBarsPath    string
	liveSignalsPath string
)

func init() {
	rootCmd.AddCommand(liveCmd)

	liveCmd.Flags().StringVarP(&liveBarsPath, "bars", "b", "", "bars CSV to replay (default: JSON lines on stdin)")
	liveCmd.Flags().StringVarP(&liveSignalsPath, "signals", "s", "", "signals CSV matched to bars by instrument and time")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runner *live.Runner
	daemon := app.New(cfg, fx.Populate(&runner))
	if err := daemon.Err(); err != nil {
		return err
	}

	err = app.Run(ctx, daemon, func(ctx context.Context) error {
		if liveBarsPath != "" {
			return pumpCSV(ctx, runner, liveBarsPath, liveSignalsPath)
		}
		return pumpJSON(ctx, runner, cmd.InOrStdin())
	})
	if err != nil {
		return err
	}

	eq, err := runner.Equity()
	if err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "mode=%s positions=%d equity=%.2f cash=%.2f\n",
			runner.Mode(), len(runner.Positions()), eq.Equity, eq.Cash)
	}
	return nil
}

type sigKey struct {
	inst market.Instrument
	at   int64
}

// pumpCSV submits every bar in file order, attaching the signal computed
// at the same bar time.
func pumpCSV(ctx context.Context, r *live.Runner, barsPath, signalsPath string) error {
	sigs := map[sigKey]market.Signal{}
	if signalsPath != "" {
		sf, err := feed.NewCSVSignalFeed(signalsPath, feed.Filter{})
		if err != nil {
			return err
		}
		defer sf.Close()
		for {
			row, ok, err := sf.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			sigs[sigKey{row.Instrument, row.Signal.Time.UnixNano()}] = row.Signal
		}
	}

	bf, err := feed.NewCSVBarFeed(barsPath, feed.Filter{})
	if err != nil {
		return err
	}
	defer bf.Close()

	var ticks []live.Tick
	for {
		row, ok, err := bf.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		t := live.Tick{Instrument: row.Instrument, Bar: row.Bar}
		if s, ok := sigs[sigKey{row.Instrument, row.Bar.Time.UnixNano()}]; ok {
			t.Signal = &s
		}
		ticks = append(ticks, t)
	}
	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].Bar.Time.Before(ticks[j].Bar.Time) })

	for _, t := range ticks {
		if err := r.Submit(ctx, t); err != nil {
			return fmt.Errorf("submit %s %s: %w", t.Instrument, t.Bar.Time.Format(time.RFC3339), err)
		}
	}
	return nil
}

type jsonTick struct {
	Venue  string         `json:"venue"`
	Symbol string         `json:"symbol"`
	Bar    market.Bar     `json:"bar"`
	Signal *market.Signal `json:"signal,omitempty"`
}

func pumpJSON(ctx context.Context, r *live.Runner, in io.Reader) error {
	sc := bufio.NewScanner(in)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var jt jsonTick
		if err := sonic.ConfigStd.Unmarshal(sc.Bytes(), &jt); err != nil {
			return fmt.Errorf("stdin line %d: %w", line, err)
		}
		t := live.Tick{
			Instrument: market.Instrument{Venue: jt.Venue, Symbol: jt.Symbol},
			Bar:        jt.Bar,
			Signal:     jt.Signal,
		}
		if err := r.Submit(ctx, t); err != nil {
			return fmt.Errorf("stdin line %d: %w", line, err)
		}
	}
	return sc.Err()
}
