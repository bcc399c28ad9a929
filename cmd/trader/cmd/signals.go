package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rustyeddy/cryptosim/feed"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/rustyeddy/cryptosim/strategy"
	"github.com/spf13/cobra"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Generate baseline signals from bars",
	Long: `Signals runs a baseline strategy over one instrument's bars and writes
the non-HOLD signals as a signals CSV, ready for backtest or live.

Example:
  trader signals --bars data/btc_1h.csv --fast 12 --slow 26 -o data/btc_signals.csv`,
	RunE: runSignals,
}

var (
	sgBarsPath   string
	sgInstrument string
	sgStrategy   string
	sgFast       int
	sgSlow       int
	sgATR        int
	sgMinSpread  float64
	sgADX        int
	sgMinADX     float64
	sgOutput     string
)

func init() {
	rootCmd.AddCommand(signalsCmd)

	signalsCmd.Flags().StringVarP(&sgBarsPath, "bars", "b", "", "path to bars CSV (required)")
	signalsCmd.Flags().StringVarP(&sgInstrument, "instrument", "i", "", "venue:symbol (default: first configured instrument)")
	signalsCmd.Flags().StringVar(&sgStrategy, "strategy", "ema-cross", "ema-cross or ema-cross-adx")
	signalsCmd.Flags().IntVar(&sgFast, "fast", 12, "fast EMA period")
	signalsCmd.Flags().IntVar(&sgSlow, "slow", 26, "slow EMA period")
	signalsCmd.Flags().IntVar(&sgATR, "atr", 0, "ATR period for probability scaling (0 uses --slow)")
	signalsCmd.Flags().Float64Var(&sgMinSpread, "min-spread", 0, "ignore crosses with |fast-slow| below this")
	signalsCmd.Flags().IntVar(&sgADX, "adx", 14, "ADX period for ema-cross-adx")
	signalsCmd.Flags().Float64Var(&sgMinADX, "min-adx", 0, "minimum ADX for a cross to count (0 disables; ema-cross-adx defaults to 20)")
	signalsCmd.Flags().StringVarP(&sgOutput, "output", "o", "", "write to a file instead of stdout")

	signalsCmd.MarkFlagRequired("bars")
}

func runSignals(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name := sgInstrument
	if name == "" {
		name = cfg.Instruments[0]
	}
	inst, err := market.ParseInstrument(name)
	if err != nil {
		return err
	}

	s, err := strategy.ByName(sgStrategy, strategy.EMACrossConfig{
		FastPeriod: sgFast,
		SlowPeriod: sgSlow,
		ATRPeriod:  sgATR,
		MinSpread:  sgMinSpread,
		ADXPeriod:  sgADX,
		MinADX:     sgMinADX,
	})
	if err != nil {
		return err
	}

	bars, err := feed.ReadAllBars(sgBarsPath, feed.Filter{Instrument: inst})
	if err != nil {
		return fmt.Errorf("read bars: %w", err)
	}
	if err := market.ValidateBars(bars); err != nil {
		return err
	}
	sigs := strategy.Generate(s, bars)

	var w io.Writer = cmd.OutOrStdout()
	if sgOutput != "" {
		f, err := os.Create(sgOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := feed.WriteSignals(w, inst, sigs); err != nil {
		return err
	}
	if sgOutput != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d signals from %d bars -> %s\n", s.Name(), len(sigs), len(bars), sgOutput)
	}
	return nil
}
