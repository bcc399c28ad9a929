package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/cryptosim/market"
	"github.com/spf13/cobra"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions from the persisted ledger",
	Args:  cobra.NoArgs,
	RunE:  runPositions,
}

func init() {
	rootCmd.AddCommand(positionsCmd)
}

func runPositions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, ok, err := openRepo(cfg).Ledger.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintf(out, "no ledger in %s (cash %.2f)\n", cfg.State.Dir, cfg.Account.InitialCash)
		return nil
	}

	marks := map[market.Instrument]float64{}
	for _, b := range st.Books {
		marks[b.Instrument] = b.Mark
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTRUMENT\tQTY\tAVG ENTRY\tMARK\tVALUE\tUNREALIZED\tOPENED")
	value := 0.0
	for _, p := range st.Ledger.Positions {
		mark := marks[p.Instrument]
		v := p.Value(mark)
		value += v
		fmt.Fprintf(tw, "%s\t%.8f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
			p.Instrument, p.Quantity, p.AvgEntryPrice, mark, v, v-p.Cost(), p.OpenedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\ncash %.2f  positions %.2f  equity %.2f  (saved %s)\n",
		st.Ledger.Cash, value, st.Ledger.Cash+value, st.Ledger.SavedAt.Format(time.RFC3339))
	return nil
}
