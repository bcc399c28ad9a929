package backtest

import (
	"fmt"
	"io"
	"time"
)

func PrintResult(w io.Writer, r Result) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	fmt.Fprintf(w, "Instrument:    %s\n", r.Instrument)
	fmt.Fprintf(w, "Bars:          %d\n", r.Bars)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Execution")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Commission:    %.1f bps\n", r.Config.CommissionBps)
	fmt.Fprintf(w, "Slippage:      %.1f bps\n", r.Config.SlippageBps)
	fmt.Fprintf(w, "Latency:       %d bars\n", r.Config.SignalLatencyBars)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", r.Stats.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Stats.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Stats.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.Stats.WinRate*100)
	fmt.Fprintf(w, "Avg Win:       %.2f\n", r.Stats.AvgWin)
	fmt.Fprintf(w, "Avg Loss:      %.2f\n", r.Stats.AvgLoss)
	fmt.Fprintf(w, "Profit Factor: %s\n", optional(r.Stats.ProfitFactor))
	fmt.Fprintf(w, "Exposure:      %.2f%%\n", r.Stats.ExposureTime*100)
	fmt.Fprintf(w, "Costs:         %.2f commission, %.2f slippage\n", r.Stats.Commission, r.Stats.Slippage)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Cash:    %.2f\n", r.InitialCash)
	fmt.Fprintf(w, "End Equity:    %.2f\n", r.FinalEquity)
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.Stats.TotalReturn*100)
	fmt.Fprintf(w, "Sharpe:        %.3f\n", r.Stats.Sharpe)
	fmt.Fprintf(w, "Sortino:       %.3f\n", r.Stats.Sortino)
	fmt.Fprintf(w, "Calmar:        %s\n", optional(r.Stats.Calmar))
	if dd := r.Stats.MaxDrawdown; dd.Pct > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%% over %s", dd.Pct*100, dd.Duration)
		if dd.Recovery != nil {
			fmt.Fprintf(w, ", recovered in %s\n", *dd.Recovery)
		} else {
			fmt.Fprintln(w, ", not recovered")
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Benchmark (buy and hold)")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.Benchmark.TotalReturn*100)
	fmt.Fprintf(w, "Excess:        %.2f%%\n", r.Benchmark.ExcessReturn*100)
	fmt.Fprintf(w, "Beats:         %t\n", r.Benchmark.Beats)

	if len(r.Errors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "- %s %s: %s\n", e.Time.Format(time.RFC3339), e.Code, e.Message)
		}
	}

	fmt.Fprintln(w)
}

func optional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}
