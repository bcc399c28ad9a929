package backtest

import (
	"io"
	"text/template"
	"time"
)

var orgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"opt": func(v *float64) string {
		return optional(v)
	},
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
}

var orgTemplate = template.Must(template.New("backtest").Funcs(orgFuncs).Parse(BacktestOrgTemplate))

// WriteOrg renders r as an Org-mode entry.
func WriteOrg(w io.Writer, r Result) error {
	return orgTemplate.Execute(w, r)
}

const BacktestOrgTemplate = `* BACKTEST: {{.Instrument}} {{date .Start}} to {{date .End}}
:PROPERTIES:
:RUN_ID:       {{.RunID}}
:INSTRUMENT:   {{.Instrument}}
:BARS:         {{.Bars}}
:START_DATE:   {{date .Start}}
:END_DATE:     {{date .End}}
:START_CASH:   {{printf "%.2f" .InitialCash}}
:END_EQUITY:   {{printf "%.2f" .FinalEquity}}
:RETURN_PCT:   {{printf "%.2f" (mul100 .Stats.TotalReturn)}}
:MAX_DD_PCT:   {{printf "%.2f" (mul100 .Stats.MaxDrawdown.Pct)}}
:SHARPE:       {{printf "%.3f" .Stats.Sharpe}}
:SORTINO:      {{printf "%.3f" .Stats.Sortino}}
:CALMAR:       {{opt .Stats.Calmar}}
:TRADES:       {{.Stats.Trades}}
:WINS:         {{.Stats.Wins}}
:LOSSES:       {{.Stats.Losses}}
:PROFIT_FAC:   {{opt .Stats.ProfitFactor}}
:BENCH_RETURN: {{printf "%.2f" (mul100 .Benchmark.TotalReturn)}}
:END:

** Configuration
| Parameter        | Value |
|------------------+-------|
| Commission (bps) | {{printf "%.1f" .Config.CommissionBps}} |
| Slippage (bps)   | {{printf "%.1f" .Config.SlippageBps}} |
| Latency (bars)   | {{.Config.SignalLatencyBars}} |
| Stop loss %      | {{printf "%.2f" (mul100 .Config.Policy.StopLossPct)}} |
| Take profit %    | {{printf "%.2f" (mul100 .Config.Policy.TakeProfitPct)}} |
| Max exposure %   | {{printf "%.2f" (mul100 .Config.Policy.MaxExposurePct)}} |
| Cooldown         | {{.Config.Policy.Cooldown}} |

** Performance Summary
- Return:           *{{printf "%.2f" (mul100 .Stats.TotalReturn)}}%*
- Max Drawdown:     *{{printf "%.2f" (mul100 .Stats.MaxDrawdown.Pct)}}%*
- Win Rate:         *{{printf "%.2f" (mul100 .Stats.WinRate)}}%*
- Exposure Time:    *{{printf "%.2f" (mul100 .Stats.ExposureTime)}}%*
- Benchmark:        *{{printf "%.2f" (mul100 .Benchmark.TotalReturn)}}%*{{if .Benchmark.Beats}} (beaten){{end}}

** Trades
| Time | Side | Quantity | Price | PnL | Reason |
|------+------+----------+-------+-----+--------|
{{- range .Trades }}
| {{.Time.Format "2006-01-02 15:04"}} | {{.Side}} | {{printf "%.6f" .Quantity}} | {{printf "%.4f" .Price}} | {{opt .RealizedPnL}} | {{.Reason}} |
{{- end }}
{{- if .Errors }}

** Errors
{{- range .Errors }}
- {{.Time.Format "2006-01-02 15:04"}} {{.Code}}: {{.Message}}
{{- end }}
{{- end }}
`
