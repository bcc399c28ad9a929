package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/cryptosim/equity"
	"github.com/spf13/cobra"
)

var equityCmd = &cobra.Command{
	Use:   "equity",
	Short: "Summarize the persisted equity history",
	Long: `Equity loads equity.json from the state directory and prints the
points in the requested window with return, Sharpe, Sortino and drawdown.

Example:
  trader equity --from 2024-06-01 --to 2024-06-30 --points`,
	Args: cobra.NoArgs,
	RunE: runEquity,
}

var (
	eqFrom   string
	eqTo     string
	eqPoints bool
)

func init() {
	rootCmd.AddCommand(equityCmd)

	equityCmd.Flags().StringVar(&eqFrom, "from", "", "first day (YYYY-MM-DD) or RFC3339 time")
	equityCmd.Flags().StringVar(&eqTo, "to", "", "last day (YYYY-MM-DD) or RFC3339 time, inclusive")
	equityCmd.Flags().BoolVar(&eqPoints, "points", false, "print every point")
}

func runEquity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	hist, ok, err := openRepo(cfg).Equity.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintf(out, "no equity history in %s\n", cfg.State.Dir)
		return nil
	}

	rec := equity.NewRecorder(0, 0)
	if err := rec.Restore(hist); err != nil {
		return err
	}
	from, err := parseWhen(eqFrom, false)
	if err != nil {
		return err
	}
	to, err := parseWhen(eqTo, true)
	if err != nil {
		return err
	}
	pts := rec.Window(from, to)
	if len(pts) == 0 {
		fmt.Fprintln(out, "no points in window")
		return nil
	}

	var interval time.Duration
	if len(pts) > 1 {
		interval = pts[1].Time.Sub(pts[0].Time)
	}
	s := equity.Summarize(pts, equity.PeriodsPerYear(interval))

	if eqPoints {
		for _, p := range pts {
			fmt.Fprintf(out, "%s  cash %12.2f  positions %12.2f  equity %12.2f\n",
				p.Time.Format(time.RFC3339), p.Cash, p.PositionsValue, p.Equity)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Points:        %d (%s .. %s)\n", len(pts),
		pts[0].Time.Format(time.RFC3339), pts[len(pts)-1].Time.Format(time.RFC3339))
	fmt.Fprintf(out, "Equity:        %.2f -> %.2f\n", s.StartEquity, s.EndEquity)
	fmt.Fprintf(out, "Return:        %.2f%%\n", s.TotalReturn*100)
	fmt.Fprintf(out, "Sharpe:        %.3f\n", s.Sharpe)
	fmt.Fprintf(out, "Sortino:       %.3f\n", s.Sortino)
	fmt.Fprintf(out, "Max drawdown:  %.2f%%\n", s.MaxDrawdown.Pct*100)
	return nil
}

// parseWhen accepts a date or an RFC3339 time. A bare date used as an end
// bound covers the whole day.
func parseWhen(s string, end bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q (want YYYY-MM-DD or RFC3339)", s)
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
