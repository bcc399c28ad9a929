package equity

import (
	"math"
	"time"
)

// flatEpsilon treats rounding noise in a dispersion as zero.
const flatEpsilon = 1e-12

// StepReturns returns simple per-step returns of the curve. Index 0 is
// always 0 and a step from non-positive equity is 0, so the result never
// holds NaN or Inf.
func StepReturns(points []Point) []float64 {
	out := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Equity
		if prev <= 0 {
			continue
		}
		out[i] = points[i].Equity/prev - 1
	}
	return out
}

// Sharpe is mean/stdev of steps 1..n scaled by sqrt(periodsPerYear). A flat
// curve or fewer than two steps gives 0.
func Sharpe(returns []float64, periodsPerYear float64) float64 {
	steps := tail(returns)
	if len(steps) < 2 {
		return 0
	}
	m := mean(steps)
	sd := stdev(steps, m)
	if sd < flatEpsilon {
		return 0
	}
	return m / sd * math.Sqrt(periodsPerYear)
}

// Sortino is Sharpe with only downside steps in the denominator.
func Sortino(returns []float64, periodsPerYear float64) float64 {
	steps := tail(returns)
	if len(steps) < 2 {
		return 0
	}
	var sq float64
	for _, r := range steps {
		if r < 0 {
			sq += r * r
		}
	}
	dd := math.Sqrt(sq / float64(len(steps)-1))
	if dd < flatEpsilon {
		return 0
	}
	return mean(steps) / dd * math.Sqrt(periodsPerYear)
}

// Calmar is totalReturn/|maxDrawdown|, nil when there was no drawdown.
func Calmar(totalReturn, maxDrawdown float64) *float64 {
	if maxDrawdown == 0 {
		return nil
	}
	v := totalReturn / math.Abs(maxDrawdown)
	return &v
}

// Drawdown describes the deepest peak-to-trough decline of a curve.
// Duration runs from peak to trough; Recovery from trough to the first
// point back at the peak, nil if the curve never recovered.
type Drawdown struct {
	Pct      float64        `json:"pct"`
	Peak     time.Time      `json:"peak"`
	Trough   time.Time      `json:"trough"`
	Duration time.Duration  `json:"duration"`
	Recovery *time.Duration `json:"recovery"`
}

func MaxDrawdown(points []Point) Drawdown {
	var dd Drawdown
	if len(points) == 0 {
		return dd
	}

	peakIdx, troughIdx, bestPeak := 0, 0, 0
	for i, p := range points {
		if p.Equity > points[peakIdx].Equity {
			peakIdx = i
		}
		peak := points[peakIdx].Equity
		if peak <= 0 {
			continue
		}
		if d := (peak - p.Equity) / peak; d > dd.Pct {
			dd.Pct = d
			bestPeak, troughIdx = peakIdx, i
		}
	}
	if dd.Pct == 0 {
		return dd
	}

	dd.Peak = points[bestPeak].Time
	dd.Trough = points[troughIdx].Time
	dd.Duration = dd.Trough.Sub(dd.Peak)
	for _, p := range points[troughIdx+1:] {
		if p.Equity >= points[bestPeak].Equity {
			rec := p.Time.Sub(dd.Trough)
			dd.Recovery = &rec
			break
		}
	}
	return dd
}

// Summary is the curve-level statistics of a run.
type Summary struct {
	StartEquity float64   `json:"start_equity"`
	EndEquity   float64   `json:"end_equity"`
	TotalReturn float64   `json:"total_return"`
	Sharpe      float64   `json:"sharpe"`
	Sortino     float64   `json:"sortino"`
	Calmar      *float64  `json:"calmar"`
	MaxDrawdown Drawdown  `json:"max_drawdown"`
	Returns     []float64 `json:"-"`
}

func Summarize(points []Point, periodsPerYear float64) Summary {
	s := Summary{Returns: StepReturns(points)}
	if len(points) == 0 {
		return s
	}
	s.StartEquity = points[0].Equity
	s.EndEquity = points[len(points)-1].Equity
	if s.StartEquity > 0 {
		s.TotalReturn = s.EndEquity/s.StartEquity - 1
	}
	s.Sharpe = Sharpe(s.Returns, periodsPerYear)
	s.Sortino = Sortino(s.Returns, periodsPerYear)
	s.MaxDrawdown = MaxDrawdown(points)
	s.Calmar = Calmar(s.TotalReturn, s.MaxDrawdown.Pct)
	return s
}

// PeriodsPerYear infers the annualization factor from bar spacing on a
// 365-day year.
func PeriodsPerYear(interval time.Duration) float64 {
	if interval <= 0 {
		return 0
	}
	return float64(365*24*time.Hour) / float64(interval)
}

func tail(returns []float64) []float64 {
	if len(returns) < 2 {
		return nil
	}
	return returns[1:]
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// stdev is the sample standard deviation.
func stdev(xs []float64, m float64) float64 {
	var s float64
	for _, x := range xs {
		d := x - m
		s += d * d
	}
	return math.Sqrt(s / float64(len(xs)-1))
}
