package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rustyeddy/cryptosim/backtest"
	"github.com/rustyeddy/cryptosim/feed"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/spf13/cobra"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay bars and signals through the engine",
	Long: `Backtest replays one instrument's bars and model signals through the
same risk, execution and equity pipeline the live engine uses, then reports
returns, risk ratios, drawdown, trade statistics and a buy-and-hold
benchmark.

Bars CSV:    time,venue,symbol,open,high,low,close[,volume]
Signals CSV: time,venue,symbol,direction,probability

Costs, latency and the risk policy come from --config when given.

Example:
  trader backtest --bars data/btc_1h.csv --signals data/btc_signals.csv --format org`,
	RunE: runBacktest,
}

var (
	btBarsPath    string
	btSignalsPath string
	btInstrument  string
	btCash        float64
	btPPY         float64
	btSeed        int64
	btCloseEnd    bool
	btFormat      string
	btOutput      string
	btRecord      bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btBarsPath, "bars", "b", "", "path to bars CSV (required)")
	backtestCmd.Flags().StringVarP(&btSignalsPath, "signals", "s", "", "path to signals CSV (required)")
	backtestCmd.Flags().StringVarP(&btInstrument, "instrument", "i", "", "venue:symbol to replay (default: first configured instrument)")
	backtestCmd.Flags().Float64Var(&btCash, "cash", 0, "initial cash (default: account.initial_cash)")
	backtestCmd.Flags().Float64Var(&btPPY, "periods-per-year", 0, "annualization factor (0 infers it from bar spacing)")
	backtestCmd.Flags().Int64Var(&btSeed, "seed", 1, "ID seed")
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", true, "liquidate open positions at the last bar")
	backtestCmd.Flags().StringVarP(&btFormat, "format", "f", "text", "output format: text|json|org")
	backtestCmd.Flags().StringVarP(&btOutput, "output", "o", "", "write the report to a file instead of stdout")
	backtestCmd.Flags().BoolVar(&btRecord, "record", false, "record the run and its fills in the SQLite journal")

	backtestCmd.MarkFlagRequired("bars")
	backtestCmd.MarkFlagRequired("signals")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if btInstrument == "" {
		btInstrument = cfg.Instruments[0]
	}
	inst, err := market.ParseInstrument(btInstrument)
	if err != nil {
		return err
	}
	policy, err := cfg.RiskPolicy()
	if err != nil {
		return err
	}

	bars, err := feed.ReadAllBars(btBarsPath, feed.Filter{Instrument: inst})
	if err != nil {
		return fmt.Errorf("read bars: %w", err)
	}
	signals, err := feed.ReadAllSignals(btSignalsPath, feed.Filter{Instrument: inst})
	if err != nil {
		return fmt.Errorf("read signals: %w", err)
	}

	bc := backtest.DefaultConfig()
	bc.Instrument = inst
	bc.InitialCash = cfg.Account.InitialCash
	if btCash > 0 {
		bc.InitialCash = btCash
	}
	bc.CommissionBps = cfg.Engine.CommissionBps
	bc.SlippageBps = cfg.Engine.SlippageBps
	bc.SignalLatencyBars = cfg.Engine.SignalLatencyBars
	bc.Policy = policy
	bc.PeriodsPerYear = btPPY
	bc.CloseAtEnd = btCloseEnd
	bc.Seed = btSeed
	bc.Logger = log.Named("backtest")

	var record func(backtest.Result) error
	if btRecord {
		j, err := openJournal(cfg)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		bc.Journal = j
		record = func(res backtest.Result) error {
			run, err := res.Run(time.Now())
			if err != nil {
				return err
			}
			return j.RecordBacktest(run)
		}
	}

	res, err := backtest.Run(cmd.Context(), bars, signals, bc)
	if err != nil {
		return err
	}
	if record != nil {
		if err := record(res); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}
	return writeBacktest(cmd, res)
}

func writeBacktest(cmd *cobra.Command, res backtest.Result) error {
	var w io.Writer = cmd.OutOrStdout()
	if btOutput != "" {
		f, err := os.Create(btOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch btFormat {
	case "json":
		data, err := res.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "org":
		return backtest.WriteOrg(w, res)
	case "text", "":
		backtest.PrintResult(w, res)
		return nil
	default:
		return fmt.Errorf("unknown format %q (text, json, org)", btFormat)
	}
}
