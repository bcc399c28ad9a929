package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/cryptosim/market"
)

// ATR is a streaming Average True Range with Wilder smoothing.
type ATR struct {
	period    int
	atr       float64
	count     int
	warmupSum float64
	prev      market.Bar
	hasPrev   bool
}

func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string { return fmt.Sprintf("ATR(%d)", a.period) }

// Warmup needs period+1 bars because a true range needs the previous close.
func (a *ATR) Warmup() int { return a.period + 1 }

func (a *ATR) Reset() {
	a.atr = 0
	a.count = 0
	a.warmupSum = 0
	a.hasPrev = false
}

func (a *ATR) Update(b market.Bar) {
	if !a.hasPrev {
		a.prev = b
		a.hasPrev = true
		return
	}

	tr := trueRange(b, a.prev)
	if a.count < a.period {
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
	} else {
		a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
	}
	a.prev = b
}

func (a *ATR) Ready() bool { return a.count >= a.period }

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}

func trueRange(cur, prev market.Bar) float64 {
	return math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
}
