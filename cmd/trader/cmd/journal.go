package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/cryptosim/journal"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite journal",
	Long: `Query fills, equity points and backtest runs recorded in the SQLite
journal. Live fills are recorded under run "live"; backtests under their
run ID.

Examples:
  trader journal fills --day 2024-06-01
  trader journal fills --run 01J0ABC... --instrument binance:BTCUSDT
  trader journal equity --day 2024-06-01
  trader journal runs --limit 5
  trader journal run 01J0ABC...`,
}

var journalFillsCmd = &cobra.Command{
	Use:   "fills",
	Short: "List fills as Org entries",
	Args:  cobra.NoArgs,
	RunE:  runJournalFills,
}

var journalEquityCmd = &cobra.Command{
	Use:   "equity",
	Short: "List recorded equity points",
	Args:  cobra.NoArgs,
	RunE:  runJournalEquity,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded backtest runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalRunCmd = &cobra.Command{
	Use:   "run <run-id>",
	Short: "Print the stored result of one backtest run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalRun,
}

var (
	jrRun        string
	jrDay        string
	jrInstrument string
	jrLimit      int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalFillsCmd)
	journalCmd.AddCommand(journalEquityCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalRunCmd)

	for _, c := range []*cobra.Command{journalFillsCmd, journalEquityCmd} {
		c.Flags().StringVar(&jrRun, "run", journal.LiveRun, "run ID")
		c.Flags().StringVar(&jrDay, "day", "", "UTC day YYYY-MM-DD (default: all time)")
	}
	journalFillsCmd.Flags().StringVarP(&jrInstrument, "instrument", "i", "", "only fills for venue:symbol")
	journalRunsCmd.Flags().IntVarP(&jrLimit, "limit", "n", 20, "maximum runs to list (0 = all)")
}

func withJournal(fn func(j *journal.SQLite) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	j, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()
	return fn(j)
}

// dayBounds returns [day, day+24h) in UTC, or all time for "".
func dayBounds(day string) (time.Time, time.Time, error) {
	if day == "" {
		return time.Unix(0, 0).UTC(), time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC), nil
	}
	start, err := time.Parse("2006-01-02", day)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(24 * time.Hour), nil
}

func runJournalFills(cmd *cobra.Command, args []string) error {
	start, end, err := dayBounds(jrDay)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	return withJournal(func(j *journal.SQLite) error {
		fills, err := j.ListFills(jrRun, start, end)
		if err != nil {
			return fmt.Errorf("query fills: %w", err)
		}
		if jrInstrument != "" {
			inst, err := market.ParseInstrument(jrInstrument)
			if err != nil {
				return err
			}
			fills = journal.FilterInstrument(fills, inst)
		}
		fmt.Fprintln(cmd.OutOrStdout(), journal.FormatFillsOrg(fills))
		return nil
	})
}

func runJournalEquity(cmd *cobra.Command, args []string) error {
	start, end, err := dayBounds(jrDay)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	return withJournal(func(j *journal.SQLite) error {
		pts, err := j.ListEquityBetween(jrRun, start, end)
		if err != nil {
			return fmt.Errorf("query equity: %w", err)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "TIME\tCASH\tPOSITIONS\tEQUITY\t")
		for _, p := range pts {
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t\n", p.Time.Format(time.RFC3339), p.Cash, p.PositionsValue, p.Equity)
		}
		return tw.Flush()
	})
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	return withJournal(func(j *journal.SQLite) error {
		runs, err := j.ListBacktestRuns(jrLimit)
		if err != nil {
			return fmt.Errorf("query runs: %w", err)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tINSTRUMENT\tBARS\tRETURN\tSHARPE\tMAX DD\tTRADES\tVS BENCH")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f%%\t%.3f\t%.2f%%\t%d\t%+.2f%%\n",
				r.RunID, r.Instruments, r.Bars, r.TotalReturn*100, r.Sharpe,
				r.MaxDrawdown*100, r.Trades, r.ExcessReturn*100)
		}
		return tw.Flush()
	})
}

func runJournalRun(cmd *cobra.Command, args []string) error {
	return withJournal(func(j *journal.SQLite) error {
		r, err := j.GetBacktestRun(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(r.Result))
		return nil
	})
}
